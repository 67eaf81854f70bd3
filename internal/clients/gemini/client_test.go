package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/revalidafacil/stations-backend/internal/logger"
)

type recordedCall struct {
	model string
	key   string
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(call recordedCall, w http.ResponseWriter)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Path shape: /v1beta/models/<model>:generateContent
	path := strings.TrimPrefix(r.URL.Path, "/v1beta/models/")
	call := recordedCall{
		model: strings.TrimSuffix(path, ":generateContent"),
		key:   r.Header.Get("x-goog-api-key"),
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	f.handler(call, w)
}

func writeText(w http.ResponseWriter, text string) {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			},
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, api *fakeAPI, keys []string) Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(logger.NewNop(), Options{BaseURL: srv.URL, APIKeys: keys})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGenerateText_FastPrefersFlash(t *testing.T) {
	api := &fakeAPI{handler: func(_ recordedCall, w http.ResponseWriter) {
		writeText(w, "resumo clínico")
	}}
	c := newTestClient(t, api, []string{"k1"})

	out, err := c.GenerateText(context.Background(), "tema", PreferFast)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "resumo clínico" {
		t.Fatalf("out = %q", out)
	}
	if api.calls[0].model != "gemini-2.5-flash" {
		t.Fatalf("first model = %q", api.calls[0].model)
	}
}

func TestGenerateText_AdvancedPrefersPro(t *testing.T) {
	api := &fakeAPI{handler: func(_ recordedCall, w http.ResponseWriter) {
		writeText(w, "ok")
	}}
	c := newTestClient(t, api, []string{"k1"})

	if _, err := c.GenerateText(context.Background(), "tema", PreferAdvanced); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if api.calls[0].model != "gemini-2.5-pro" {
		t.Fatalf("first model = %q", api.calls[0].model)
	}
}

func TestGenerateText_RotatesKeysOnQuota(t *testing.T) {
	api := &fakeAPI{handler: func(call recordedCall, w http.ResponseWriter) {
		if call.key == "paga" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"status": "RESOURCE_EXHAUSTED"}}`))
			return
		}
		writeText(w, "ok")
	}}
	c := newTestClient(t, api, []string{"paga", "reserva"})

	out, err := c.GenerateText(context.Background(), "tema", PreferFast)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "ok" {
		t.Fatalf("out = %q", out)
	}
	if len(api.calls) != 2 || api.calls[0].key != "paga" || api.calls[1].key != "reserva" {
		t.Fatalf("calls = %+v", api.calls)
	}
}

func TestGenerateText_AllQuotaExceeded(t *testing.T) {
	api := &fakeAPI{handler: func(_ recordedCall, w http.ResponseWriter) {
		w.WriteHeader(http.StatusTooManyRequests)
	}}
	c := newTestClient(t, api, []string{"k1", "k2"})

	_, err := c.GenerateText(context.Background(), "tema", PreferFast)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}
	// Every model tier must have tried every key.
	if len(api.calls) != len(fastModels)*2 {
		t.Fatalf("attempts = %d", len(api.calls))
	}
}

func TestGenerateText_EmptyCandidatesFallsThrough(t *testing.T) {
	api := &fakeAPI{handler: func(call recordedCall, w http.ResponseWriter) {
		if call.model == "gemini-2.5-flash" {
			_, _ = w.Write([]byte(`{"candidates": []}`))
			return
		}
		writeText(w, "recuperado")
	}}
	c := newTestClient(t, api, []string{"k1"})

	out, err := c.GenerateText(context.Background(), "tema", PreferFast)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "recuperado" {
		t.Fatalf("out = %q", out)
	}
	if api.calls[1].model != "gemini-2.5-flash-lite" {
		t.Fatalf("fallback model = %q", api.calls[1].model)
	}
}

func TestGenerateText_MultiPartAnswerConcatenated(t *testing.T) {
	api := &fakeAPI{handler: func(_ recordedCall, w http.ResponseWriter) {
		resp := map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{
					map[string]any{"text": "parte um "},
					map[string]any{"text": "parte dois"},
				}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}}
	c := newTestClient(t, api, []string{"k1"})

	out, err := c.GenerateText(context.Background(), "tema", PreferFast)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "parte um parte dois" {
		t.Fatalf("out = %q", out)
	}
}

func TestCorrectJSON_SendsCorrectionPrompt(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeText(w, `{"a": 1}`)
	}))
	defer srv.Close()

	c, err := New(logger.NewNop(), Options{BaseURL: srv.URL, APIKeys: []string{"k1"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.CorrectJSON(context.Background(), `{"a": 1,}`)
	if err != nil {
		t.Fatalf("CorrectJSON: %v", err)
	}
	if out != `{"a": 1}` {
		t.Fatalf("out = %q", out)
	}
	sent := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(sent, "Fix ALL syntax errors") || !strings.Contains(sent, `{"a": 1,}`) {
		t.Fatalf("prompt = %q", sent)
	}
}

func TestNew_RequiresKeys(t *testing.T) {
	if _, err := New(logger.NewNop(), Options{}); !errors.Is(err, ErrNoAPIKeys) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewFromEnv(t *testing.T) {
	for _, slot := range keySlots {
		// t.Setenv registers the restore; the slots themselves must be absent.
		t.Setenv(slot, "")
		os.Unsetenv(slot)
	}
	if _, err := NewFromEnv(logger.NewNop()); !errors.Is(err, ErrNoAPIKeys) {
		t.Fatalf("err without keys = %v", err)
	}

	t.Setenv("GEMINI_API_KEY_1", "chave")
	t.Setenv("GEMINI_TIMEOUT_SECONDS", "30")
	c, err := NewFromEnv(logger.NewNop())
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if got := c.(*client).timeout; got != 30*time.Second {
		t.Fatalf("timeout = %v", got)
	}

	// Unparseable and non-positive values fall back to the default.
	t.Setenv("GEMINI_TIMEOUT_SECONDS", "-5")
	c, err = NewFromEnv(logger.NewNop())
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if got := c.(*client).timeout; got != 120*time.Second {
		t.Fatalf("fallback timeout = %v", got)
	}
}
