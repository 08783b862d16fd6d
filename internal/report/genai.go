package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// DefaultGenAIModel is used when no model is configured.
const DefaultGenAIModel = "gemini-2.5-flash"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIGenerator generates reports with the Gemini API.
type GenAIGenerator struct {
	models contentGenerator
	model  string
}

// NewGenAIGenerator creates a Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGenAIGenerator(client.Models, model), nil
}

func newGenAIGenerator(models contentGenerator, model string) *GenAIGenerator {
	if model == "" {
		model = DefaultGenAIModel
	}
	return &GenAIGenerator{models: models, model: model}
}

// GeneratePerformanceReport asks for a JSON document and decodes it.
func (g *GenAIGenerator) GeneratePerformanceReport(ctx context.Context, sessionID, projectName string, classification domain.Classification) (*PerformanceReport, error) {
	text, err := g.generate(ctx, performancePrompt(sessionID, projectName, classification), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	var report PerformanceReport
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		return nil, fmt.Errorf("decode performance report: %w", err)
	}
	if strings.TrimSpace(report.MarkdownReport) == "" {
		return nil, ErrEmptyResponse
	}
	return &report, nil
}

// GenerateAuditDefenseReport returns the markdown brief for session.
func (g *GenAIGenerator) GenerateAuditDefenseReport(ctx context.Context, session *domain.Session) (string, error) {
	return g.generate(ctx, auditPrompt(session), nil)
}

func (g *GenAIGenerator) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
