// Package gemini implements listing rewrite and photo OCR on Google's Gemini
// API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"

	"github.com/vroommarket/listingbot/internal/config"
	"github.com/vroommarket/listingbot/internal/extractor"
	"github.com/vroommarket/listingbot/internal/pipeline"
	"github.com/vroommarket/listingbot/internal/retry"
)

// Client rewrites listing text and reads text from listing photos.
type Client interface {
	Rewrite(ctx context.Context, rawText, ocrText, customID string, markupPercent float64) (string, error)
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	ocrModelName  string
}

var (
	_ pipeline.Rewriter = (*sdkClient)(nil)
	_ pipeline.OCR      = (*sdkClient)(nil)
)

// NewClient creates a Gemini client from cfg.
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

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	ocrModel := cfg.OCRModelName
	if ocrModel == "" {
		ocrModel = cfg.ModelName
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName, "ocr_model", ocrModel)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.ModelName,
		ocrModelName:  ocrModel,
	}, nil
}

// Rewrite produces publish-ready listing text. Errors are classified into
// the retry taxonomy so the caller's policy can decide on retries.
func (c *sdkClient) Rewrite(ctx context.Context, rawText, ocrText, customID string, markupPercent float64) (string, error) {
	c.log.DebugContext(ctx, "Rewriting listing", "custom_id", customID, "raw_len", len(rawText), "ocr_len", len(ocrText))

	prompt := BuildRewritePrompt(rawText, ocrText, markupPercent)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	copyCfg := *c.contentConfig
	copyCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: RewriteSystemInstruction}}}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, &copyCfg)
	if err != nil {
		return "", fmt.Errorf("gemini rewrite failed: %w", retry.Classify(err))
	}
	return c.extractTextFromResponse(ctx, "rewrite", resp)
}

// ExtractText reads the text visible on the image at imagePath. It returns
// "" when the model reports no text.
func (c *sdkClient) ExtractText(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("file %s is %s, not an image", imagePath, mime.String())
	}

	c.log.DebugContext(ctx, "Running OCR", "path", imagePath, "size", len(data), "mime_type", mime.String())

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mime.String()),
			genai.NewPartFromText(OCRInstruction),
		}, genai.RoleUser),
	}

	copyCfg := *c.contentConfig
	zero := float32(0)
	copyCfg.Temperature = &zero

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.ocrModelName, contents, &copyCfg)
	if err != nil {
		return "", fmt.Errorf("gemini OCR failed: %w", retry.Classify(err))
	}

	text, err := c.extractTextFromResponse(ctx, "ocr", resp)
	if err != nil {
		return "", err
	}
	return CleanOCR(text), nil
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, op string, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", fmt.Errorf("%s blocked by safety filter: %s", op, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "operation", op, "finish_reason", finishReason)
		return "", fmt.Errorf("%s returned no content, finish reason: %s", op, finishReason)
	}

	text := strings.TrimSpace(StripCodeFence(resp.Text()))
	if text == "" && op != "ocr" {
		return "", fmt.Errorf("%s returned empty text", op)
	}
	return text, nil
}

// BuildRewritePrompt renders the rewrite prompt. When a price can be read
// from rawText the marked-up price is computed here, so the model only has
// to copy it.
func BuildRewritePrompt(rawText, ocrText string, markupPercent float64) string {
	ocr := strings.TrimSpace(ocrText)
	if ocr == "" {
		ocr = "нет"
	}

	priceLine := fmt.Sprintf("Найди цену в тексте и увеличь её на %s%%.", formatPercent(markupPercent))
	if attrs := extractor.Extract(rawText); attrs.Price != nil {
		final := pipeline.ApplyMarkup(*attrs.Price, markupPercent)
		priceLine = fmt.Sprintf("Исходная цена %s %s. Цена с наценкой: %s %s. Используй именно её.",
			attrs.Price.StringFixed(0), attrs.Currency, final.StringFixed(0), attrs.Currency)
	}

	return fmt.Sprintf(rewritePromptTemplate, strings.TrimSpace(rawText), ocr, priceLine, formatPercent(markupPercent))
}

// CleanOCR normalises a model OCR answer: the no-text marker and parser
// error echoes become "", whitespace runs collapse to single spaces.
func CleanOCR(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, noTextMarker) || strings.HasPrefix(text, "Ошибка разбора ответа") {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// StripCodeFence removes a surrounding ``` block the model sometimes adds.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 && !strings.ContainsAny(t[:i], " \t") {
		t = t[i+1:]
	}
	return t
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
