package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// Full method names of the remote report service. Messages are
// google.protobuf.Struct on both sides, so no generated stubs are needed.
const (
	reportServiceName         = "rprkontrol.report.v1.ReportService"
	methodPerformanceReport   = "/" + reportServiceName + "/GeneratePerformanceReport"
	methodAuditDefenseReport  = "/" + reportServiceName + "/GenerateAuditDefenseReport"
	markdownReportField       = "markdownReport"
	defaultGrpcConnectTimeout = 5 * time.Second
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcConfig holds configuration for the remote report generator.
type GrpcConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcConfig returns default configuration for addr.
func DefaultGrpcConfig(addr string) GrpcConfig {
	return GrpcConfig{
		Address:          addr,
		ConnectTimeout:   defaultGrpcConnectTimeout,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcGenerator delegates report generation to a remote service.
type GrpcGenerator struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// NewGrpcGenerator connects to the report service and waits until the
// connection is ready so a bad endpoint fails at startup.
func NewGrpcGenerator(cfg GrpcConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GrpcGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("report service address is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultGrpcConnectTimeout
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.KeepaliveTime > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}))
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to report service at %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("report service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to report service", "address", cfg.Address)
	return &GrpcGenerator{conn: conn, addr: cfg.Address, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (g *GrpcGenerator) Close() {
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			g.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// GeneratePerformanceReport calls the remote GeneratePerformanceReport method.
func (g *GrpcGenerator) GeneratePerformanceReport(ctx context.Context, sessionID, projectName string, classification domain.Classification) (*PerformanceReport, error) {
	req, err := structpb.NewStruct(map[string]any{
		"sessionId":      sessionID,
		"projectName":    projectName,
		"classification": string(classification),
	})
	if err != nil {
		return nil, fmt.Errorf("build performance request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, methodPerformanceReport, req, resp); err != nil {
		return nil, fmt.Errorf("performance report request failed: %w", err)
	}

	var report PerformanceReport
	if err := decodeStruct(resp, &report); err != nil {
		return nil, fmt.Errorf("decode performance report: %w", err)
	}
	if strings.TrimSpace(report.MarkdownReport) == "" {
		return nil, ErrEmptyResponse
	}
	return &report, nil
}

// GenerateAuditDefenseReport sends the whole session and returns the markdown.
func (g *GrpcGenerator) GenerateAuditDefenseReport(ctx context.Context, session *domain.Session) (string, error) {
	sessionStruct, err := encodeStruct(session)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"session": structpb.NewStructValue(sessionStruct),
	}}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, methodAuditDefenseReport, req, resp); err != nil {
		return "", fmt.Errorf("audit defense report request failed: %w", err)
	}

	markdown := strings.TrimSpace(resp.GetFields()[markdownReportField].GetStringValue())
	if markdown == "" {
		return "", ErrEmptyResponse
	}
	return markdown, nil
}

// encodeStruct converts v to a Struct through its JSON form so the wire
// field names match the JSON API.
func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeStruct(s *structpb.Struct, v any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
