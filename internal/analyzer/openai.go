package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloudzy/photofind/internal/models"
)

const describePrompt = `Describe this image in the following exact format:

{
  "tags": [list of tags related to the image],
  "description": "a detailed multi-sentence description of the image",
  "caption": "a short one-sentence caption for the image"
}`

// OpenAIAnalyzer describes images through an OpenAI-compatible vision chat
// model (OpenAI, or any router exposing the same chat completions endpoint).
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// OpenAIConfig holds the vision provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewOpenAIAnalyzer creates a vision analyzer.
func NewOpenAIAnalyzer(cfg OpenAIConfig) *OpenAIAnalyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIAnalyzer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Describe sends the image as a data URL and parses the structured reply.
func (a *OpenAIAnalyzer) Describe(ctx context.Context, imagePath string) (*models.Analysis, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %w", ErrAnalyzer, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: describePrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		a.logger.Warn("vision request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrAnalyzer, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrAnalyzer)
	}
	return parseAnalysis(resp.Choices[0].Message.Content)
}

// parseAnalysis extracts the JSON object from the model output, which may be
// wrapped in prose or a code fence.
func parseAnalysis(content string) (*models.Analysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrAnalyzer)
	}
	var analysis models.Analysis
	if err := json.Unmarshal([]byte(content[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("%w: parse model output: %w", ErrAnalyzer, err)
	}
	return &analysis, nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (a *OpenAIAnalyzer) Close() error {
	return nil
}
