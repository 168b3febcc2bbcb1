// Package gemini implements the integration with Google's Gemini API. It
// turns session history into role-tagged contents, uploads media files, and
// extracts reply text from the model's responses.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/dkazakov/gemrelay/internal/config"
	"github.com/dkazakov/gemrelay/internal/session"
)

// Part is one element of a live request: either literal text or a reference
// to a file uploaded through the Files API. It keeps genai types out of the
// handler code.
type Part struct {
	Text     string
	FileURI  string
	MIMEType string
}

// TextPart creates a literal text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// Client defines the inference operations used by the dispatch pipeline.
type Client interface {
	// Reply sends the chat's prior history plus the new request parts and
	// returns the model's reply text. The call is made once; errors are not
	// retried.
	Reply(ctx context.Context, history []session.Turn, parts []Part) (string, error)

	// Upload registers a local file with the Files API and returns an opaque
	// part referencing it. The local file stays the caller's to delete.
	Upload(ctx context.Context, path, mimeType string) (Part, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
}

// NewClient creates a Gemini client from the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,

		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.Model,
	}, nil
}

func (c *sdkClient) Reply(ctx context.Context, history []session.Turn, parts []Part) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("no request parts provided")
	}

	c.log.DebugContext(ctx, "Generating reply", "history_turns", len(history), "request_parts", len(parts))

	contents := toContents(history)
	contents = append(contents, genai.NewContentFromParts(toGenaiParts(parts), genai.RoleUser))

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini API call failed", "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	return c.extractText(ctx, resp)
}

func (c *sdkClient) Upload(ctx context.Context, path, mimeType string) (Part, error) {
	if path == "" {
		return Part{}, fmt.Errorf("empty path for upload")
	}

	file, err := c.genaiClient.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini file upload failed", "path", path, "error", err)
		return Part{}, fmt.Errorf("gemini file upload failed: %w", err)
	}

	c.log.DebugContext(ctx, "Uploaded file to Gemini", "name", file.Name, "uri", file.URI, "mime_type", file.MIMEType)
	return Part{FileURI: file.URI, MIMEType: file.MIMEType}, nil
}

// toContents converts session turns into role-tagged contents for the API.
func toContents(history []session.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == session.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text(), role))
	}
	return contents
}

func toGenaiParts(parts []Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.FileURI != "" {
			out = append(out, genai.NewPartFromURI(p.FileURI, p.MIMEType))
			continue
		}
		out = append(out, &genai.Part{Text: p.Text})
	}
	return out
}

func (c *sdkClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("request blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("model returned no content, finish reason: %s", finishReason)
	}

	text := resp.Text()
	if text == "" {
		c.log.WarnContext(ctx, "Gemini response text is empty")
		return "", fmt.Errorf("model returned empty text")
	}

	return text, nil
}
