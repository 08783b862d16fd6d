package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/rpr-kontrol/kontrol/internal/audit"
	"github.com/rpr-kontrol/kontrol/internal/domain"
	"github.com/rpr-kontrol/kontrol/internal/ids"
	"github.com/rpr-kontrol/kontrol/internal/store"
	"github.com/rpr-kontrol/kontrol/internal/veto"
)

const defaultDBPath = "./data/kontrol.db"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kontrolctl",
		Short:         "kontrolctl - RPR-KONTROL governance tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newVetoCmd(), newIDsCmd(), newSessionsCmd(), newDecisionsCmd(), newReportCmd())
	return root
}

func newVetoCmd() *cobra.Command {
	var phrasesPath string

	vetoCmd := &cobra.Command{
		Use:   "veto",
		Short: "Content veto filter",
	}
	checkCmd := &cobra.Command{
		Use:   "check <text>...",
		Short: "Check text against the veto phrase list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := veto.NewFilter(nil)
			if phrasesPath != "" {
				phrases, err := veto.LoadPhrases(phrasesPath)
				if err != nil {
					return err
				}
				filter.Replace(phrases)
			}
			out := cmd.OutOrStdout()
			if phrase, vetoed := filter.Match(strings.Join(args, " ")); vetoed {
				fmt.Fprintf(out, "VETOED: matched %q\n", phrase)
				return nil
			}
			fmt.Fprintln(out, "CLEAR")
			return nil
		},
	}
	checkCmd.Flags().StringVar(&phrasesPath, "phrases", os.Getenv("VETO_PHRASES_PATH"), "YAML phrase list (defaults to the built-in list)")
	vetoCmd.AddCommand(checkCmd)
	return vetoCmd
}

func newIDsCmd() *cobra.Command {
	idsCmd := &cobra.Command{
		Use:   "ids",
		Short: "Generate session identifiers and project codes",
	}
	idsCmd.AddCommand(&cobra.Command{
		Use:   "session",
		Short: "Print a new session id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), ids.NewGenerator().SessionID())
			return nil
		},
	})
	idsCmd.AddCommand(&cobra.Command{
		Use:   "project <client> <task-number>",
		Short: "Print the project code for a client and task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse task number %q: %w", args[1], err)
			}
			if err := ids.ValidateProjectCodeInput(args[0], task); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ids.NewGenerator().ProjectCode(args[0], task))
			return nil
		},
	})
	return idsCmd
}

// archiveFlags opens the session archive named by --db.
type archiveFlags struct {
	dbPath string
}

func (f *archiveFlags) register(cmd *cobra.Command) {
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = defaultDBPath
	}
	cmd.PersistentFlags().StringVar(&f.dbPath, "db", path, "SQLite archive path")
}

func (f *archiveFlags) list(ctx context.Context, filter string) ([]*domain.Session, error) {
	repo, err := store.NewSQLite(f.dbPath)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.ListSessions(ctx, filter)
}

func newSessionsCmd() *cobra.Command {
	var archive archiveFlags
	var filter string

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect archived sessions",
	}
	archive.register(sessionsCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := archive.list(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeSessions(cmd.OutOrStdout(), sessions)
		},
	}
	listCmd.Flags().StringVar(&filter, "filter", store.FilterAll, "project code substring")

	searchCmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search session names, ids and conversations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := archive.list(cmd.Context(), store.FilterAll)
			if err != nil {
				return err
			}
			res := audit.Search(sessions, args[0])
			if len(res.Sessions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No sessions match %q\n", args[0])
				return nil
			}
			return writeSessions(cmd.OutOrStdout(), res.Sessions)
		},
	}

	sessionsCmd.AddCommand(listCmd, searchCmd)
	return sessionsCmd
}

func writeSessions(out io.Writer, sessions []*domain.Session) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPROJECT CODE\tCLASSIFICATION\tPOSTURE\tTURNS\tPROJECT")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.SessionID, s.ProjectCode, s.Classification, s.DualState.ValidationPosture, len(s.Conversation), s.Context.ProjectName)
	}
	return tw.Flush()
}

func newDecisionsCmd() *cobra.Command {
	var archive archiveFlags
	var scope, minLevel, keyword string

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List archived decisions by scope and classification floor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ps, err := domain.ParseProjectScope(scope)
			if err != nil {
				return err
			}
			floor, err := domain.ParseClassification(minLevel)
			if err != nil {
				return err
			}
			filter := ps.Substring()
			if filter == "" {
				filter = store.FilterAll
			}
			sessions, err := archive.list(cmd.Context(), filter)
			if err != nil {
				return err
			}
			decisions := audit.FilterDecisions(sessions, audit.Criteria{Scope: ps, MinClassification: floor, Keyword: keyword})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIMESTAMP\tSESSION\tAUTHORITY\tDECISION")
			for _, d := range decisions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Timestamp.UTC().Format(time.RFC3339), d.SourceSessionID, d.Authority, d.Decision)
			}
			return tw.Flush()
		},
	}
	archive.register(cmd)
	cmd.Flags().StringVar(&scope, "scope", string(domain.ScopeAll), "ALL, MYAUDIT or RPR-INTERNAL")
	cmd.Flags().StringVar(&minLevel, "min", string(domain.ClassificationAny), "minimum classification")
	cmd.Flags().StringVar(&keyword, "keyword", "", "case-insensitive keyword")
	return cmd
}

func newReportCmd() *cobra.Command {
	var style string
	var width int

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Work with generated reports",
	}
	renderCmd := &cobra.Command{
		Use:   "render <file|->",
		Short: "Render a markdown report in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src []byte
			var err error
			if args[0] == "-" {
				src, err = io.ReadAll(cmd.InOrStdin())
			} else {
				src, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}

			styleOpt := glamour.WithAutoStyle()
			if style != "auto" {
				styleOpt = glamour.WithStylePath(style)
			}
			renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
			if err != nil {
				return fmt.Errorf("create renderer: %w", err)
			}
			out, err := renderer.Render(string(src))
			if err != nil {
				return fmt.Errorf("render report: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	renderCmd.Flags().StringVar(&style, "style", "auto", "glamour style name or path (auto, dark, light, notty)")
	renderCmd.Flags().IntVar(&width, "width", 80, "word wrap width")
	reportCmd.AddCommand(renderCmd)
	return reportCmd
}
