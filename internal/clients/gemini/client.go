// Package gemini is a hand-rolled client for the Google Generative Language
// API. It rotates over several API-key slots and model tiers: quota errors,
// timeouts and empty answers move on to the next configuration instead of
// failing the call.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/revalidafacil/stations-backend/internal/logger"
	"github.com/revalidafacil/stations-backend/internal/prompts"
	"github.com/revalidafacil/stations-backend/internal/utils"
)

// ModelPreference selects the model tier tried first. Fast prefers the flash
// family, Advanced prefers pro; both fall back through every other tier.
type ModelPreference string

const (
	PreferFast     ModelPreference = "fast"
	PreferAdvanced ModelPreference = "advanced"
)

// keySlots is the env lookup order. Slot 4 is the paid generation key and is
// always tried first.
var keySlots = []string{
	"GEMINI_API_KEY_4",
	"GEMINI_API_KEY_1",
	"GEMINI_API_KEY_2",
	"GEMINI_API_KEY_3",
	"GEMINI_API_KEY_5",
	"GEMINI_API_KEY_6",
	"GEMINI_API_KEY_7",
	"GEMINI_API_KEY_8",
}

var (
	fastModels     = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.0-flash-exp", "gemini-2.5-pro"}
	advancedModels = []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.0-flash-exp"}
)

// maxPromptRunes bounds the prompt sent to the API.
const maxPromptRunes = 1_000_000

// Client is the generation collaborator used by the service layer and, for
// last-resort JSON correction, by the station pipeline.
type Client interface {
	GenerateText(ctx context.Context, prompt string, pref ModelPreference) (string, error)
	CorrectJSON(ctx context.Context, broken string) (string, error)
}

type Options struct {
	BaseURL    string
	APIKeys    []string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKeys    []string
	timeout    time.Duration
	httpClient *http.Client
}

func New(log *logger.Logger, opts Options) (Client, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	if len(opts.APIKeys) == 0 {
		return nil, ErrNoAPIKeys
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &client{
		log:        log.With("service", "GeminiClient"),
		baseURL:    baseURL,
		apiKeys:    opts.APIKeys,
		timeout:    timeout,
		httpClient: hc,
	}, nil
}

// NewFromEnv reads the key slots in priority order.
func NewFromEnv(log *logger.Logger) (Client, error) {
	var keys []string
	for _, slot := range keySlots {
		if key := strings.TrimSpace(os.Getenv(slot)); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoAPIKeys
	}
	seconds := utils.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", 120, log)
	if seconds <= 0 {
		seconds = 120
	}
	timeout := time.Duration(seconds) * time.Second
	return New(log, Options{
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
		APIKeys: keys,
		Timeout: timeout,
	})
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      generateContent `json:"content"`
		FinishReason string          `json:"finishReason"`
	} `json:"candidates"`
}

func newGenerateRequest(prompt string) generateRequest {
	return generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	}
}

// GenerateText walks every (model, key) configuration in preference order and
// returns the first usable answer.
func (c *client) GenerateText(ctx context.Context, prompt string, pref ModelPreference) (string, error) {
	prompt = truncatePrompt(prompt)

	models := advancedModels
	if pref == PreferFast {
		models = fastModels
	}

	var lastErr error
	for _, model := range models {
		for i, key := range c.apiKeys {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			text, err := c.generateOnce(ctx, model, key, prompt)
			if err == nil {
				return text, nil
			}
			lastErr = err
			switch {
			case errors.Is(err, ErrQuotaExceeded):
				c.log.Warn("cota excedida, alternando chave", "model", model, "key_index", i+1)
			case errors.Is(err, ErrNoValidContent):
				c.log.Warn("resposta sem conteúdo válido, alternando configuração", "model", model, "key_index", i+1)
			case errors.Is(err, context.DeadlineExceeded):
				c.log.Warn("timeout na chamada, alternando configuração", "model", model, "key_index", i+1)
			default:
				c.log.Error("erro na API do Gemini", "model", model, "key_index", i+1, "error", err)
			}
		}
	}
	if lastErr == nil {
		lastErr = ErrNoValidContent
	}
	return "", fmt.Errorf("gemini: all configurations failed: %w", lastErr)
}

// CorrectJSON is the pipeline's last-resort syntax repair.
func (c *client) CorrectJSON(ctx context.Context, broken string) (string, error) {
	return c.GenerateText(ctx, prompts.JSONCorrection(broken), PreferFast)
}

func (c *client) generateOnce(ctx context.Context, model, key, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(newGenerateRequest(prompt)); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %s", ErrQuotaExceeded, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("gemini decode error: %w", err)
	}
	text := extractText(out)
	if strings.TrimSpace(text) == "" {
		return "", ErrNoValidContent
	}
	return text, nil
}

func extractText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func truncatePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= maxPromptRunes {
		return prompt
	}
	return string(runes[:maxPromptRunes])
}
