package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FormatOpenRouter = "openrouter"
	FormatGemini     = "gemini"
)

const systemInstruction = "You are an expert at generating high-quality, realistic images based on detailed text descriptions. " +
	"Your output must be a single, detailed image. " +
	"When a user provides a product image, you must seamlessly blend it into the described scene, " +
	"matching lighting, perspective, and context accurately. " +
	"Ensure the product's specific details (logo, color, shape) are preserved. " +
	"Return ONLY the generated image as base64 data, no additional text."

var (
	// ErrStatus marks a non-200 answer from the generation API.
	ErrStatus = errors.New("image API returned non-OK status")
	// ErrNoImage marks a 200 answer none of the extractors could read an image from.
	ErrNoImage = errors.New("no image data in API response")
)

type Options struct {
	Format     string
	APIKey     string
	URL        string
	Model      string
	HTTPClient *http.Client

	// Retries is the number of extra attempts after the first one.
	Retries    int
	RetryDelay time.Duration

	// DebugDir receives the raw body of responses without an image.
	DebugDir string
	Logger   *slog.Logger
}

type Client struct {
	format     string
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	debugDir   string
	logger     *slog.Logger
}

func New(opts Options) *Client {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != FormatGemini {
		format = FormatOpenRouter
	}

	url := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if url == "" {
		if format == FormatGemini {
			url = "https://generativelanguage.googleapis.com/v1beta"
		} else {
			url = "https://openrouter.ai/api/v1/chat/completions"
		}
	}

	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		format:     format,
		apiKey:     opts.APIKey,
		url:        url,
		model:      opts.Model,
		httpClient: httpClient,
		retries:    retries,
		retryDelay: opts.RetryDelay,
		debugDir:   opts.DebugDir,
		logger:     logger.With("component", "imagegen"),
	}
}

// Generate calls the API until an image comes back or retries+1 attempts have
// failed, waiting RetryDelay between attempts. The last error is returned.
func (c *Client) Generate(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is empty")
	}

	body, err := c.encodeRequest(req)
	if err != nil {
		return nil, err
	}

	attempts := c.retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("calling image API", "attempt", attempt, "of", attempts, "format", c.format, "model", c.model)

		image, err := c.generateOnce(ctx, body)
		if err == nil {
			c.logger.Info("image extracted", "bytes", len(image))
			return image, nil
		}
		lastErr = err
		c.logger.Warn("image API attempt failed", "attempt", attempt, "err", err)

		if attempt == attempts {
			break
		}
		if err := wait(ctx, c.retryDelay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("image generation failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	if c.format == FormatGemini {
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
	} else {
		httpReq.Header.Set("authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("http-referer", "http://localhost:3000")
		httpReq.Header.Set("x-title", "Storyforge")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", ErrStatus, httpResp.Status, truncate(strings.TrimSpace(string(rawBody)), 500))
	}

	var decoded apiResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		c.dumpResponse(rawBody)
		return nil, fmt.Errorf("decode response: %w", err)
	}

	image, strategy := extractImage(&decoded)
	if image == nil {
		c.dumpResponse(rawBody)
		return nil, ErrNoImage
	}
	c.logger.Debug("image found", "strategy", strategy)
	return image, nil
}

func (c *Client) endpoint() string {
	if c.format == FormatGemini {
		return fmt.Sprintf("%s/models/%s:generateContent", c.url, c.model)
	}
	return c.url
}

func (c *Client) encodeRequest(req Request) ([]byte, error) {
	var payload any
	if c.format == FormatGemini {
		payload = buildGeminiRequest(req)
	} else {
		payload = buildOpenRouterRequest(c.model, req)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

func buildOpenRouterRequest(model string, req Request) openRouterRequest {
	userParts := []contentPart{{Type: "text", Text: req.Prompt}}
	if req.Image != nil && len(req.Image.Data) > 0 {
		userParts = append(userParts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: dataURL(req.Image)},
		})
	}

	return openRouterRequest{
		Model: model,
		Messages: []openRouterMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: userParts},
		},
		Modalities:  []string{"image", "text"},
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

func buildGeminiRequest(req Request) generateContentRequest {
	parts := []part{{Text: req.Prompt}}
	if req.Image != nil && len(req.Image.Data) > 0 {
		parts = append(parts, part{InlineData: &blob{
			Data:     base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType: req.Image.MimeType,
		}})
	}

	return generateContentRequest{
		Contents:          []content{{Role: "user", Parts: parts}},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: systemInstruction}}},
		GenerationConfig: generationConfig{
			Temperature:        0.7,
			ResponseModalities: []string{"IMAGE", "TEXT"},
			ImageConfig:        &imageConfig{AspectRatio: "16:9"},
		},
	}
}

// dumpResponse keeps the raw body for postmortem inspection. Failures are
// only logged; they never change the outcome of the call.
func (c *Client) dumpResponse(raw []byte) {
	if c.debugDir == "" {
		return
	}
	if err := os.MkdirAll(c.debugDir, 0o755); err != nil {
		c.logger.Warn("create debug dir failed", "dir", c.debugDir, "err", err)
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}

	name := fmt.Sprintf("api_response_debug_%d_%s.json", time.Now().Unix(), uuid.NewString()[:8])
	path := filepath.Join(c.debugDir, name)
	if err := os.WriteFile(path, pretty.Bytes(), 0o644); err != nil {
		c.logger.Warn("write debug response failed", "path", path, "err", err)
		return
	}
	c.logger.Info("saved debug response", "path", path)
}

func dataURL(img *InlineImage) string {
	mime := img.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data))
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}
