// Package vision is an OCR engine backed by DeepSeek-OCR served behind an
// OpenAI-compatible chat/completions endpoint (vLLM, SGLang and similar).
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config for the vision client.
type Config struct {
	BaseURL   string // default http://localhost:8000/v1
	APIKey    string // optional; sent as a bearer token when set
	Model     string // default deepseek-ai/DeepSeek-OCR
	Prompt    string // default "<image>\nFree OCR."
	BaseSize  int
	ImageSize int
	MaxTokens int
	Timeout   time.Duration // http client timeout
}

// imagePlaceholder marks where the image goes in DeepSeek-OCR prompts. The
// chat API carries the image as its own content part, so it is stripped.
const imagePlaceholder = "<image>"

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-ai/DeepSeek-OCR"
	}
	if cfg.Prompt == "" {
		cfg.Prompt = imagePlaceholder + "\nFree OCR."
	}
	if cfg.BaseSize <= 0 {
		cfg.BaseSize = 1024
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = 640
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) Name() string { return "deepseek" }

// Recognize sends one page image and returns the model's markdown text.
func (c *Client) Recognize(ctx context.Context, imagePath string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, mt, err := readAsDataURL(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	c.logger.Info("vision.ocr.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"image", filepath.Base(imagePath),
		"mime", mt,
		"bytes", len(dataURL),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": 0,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
					{"type": "text", "text": c.promptText()},
				},
			},
		},
		"mm_processor_kwargs": map[string]any{
			"base_size":  c.cfg.BaseSize,
			"image_size": c.cfg.ImageSize,
			"crop_mode":  true,
		},
	}

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := sendJSON(ctx, c.http, endpoint, body, headers, rid, c.logger)
	if err != nil {
		c.logger.Error("vision.ocr.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("vision.ocr.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in vision response")
	}
	text := strings.TrimSpace(cc.Choices[0].Message.Content)

	c.logger.Info("vision.ocr.ok",
		"req_id", rid,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) promptText() string {
	p := strings.TrimSpace(strings.Replace(c.cfg.Prompt, imagePlaceholder, "", 1))
	if p == "" {
		return "Free OCR."
	}
	return p
}

func readAsDataURL(path string) (string, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		default:
			mt = "application/octet-stream"
		}
	}
	data := base64.StdEncoding.EncodeToString(b)
	return "data:" + mt + ";base64," + data, mt, nil
}
