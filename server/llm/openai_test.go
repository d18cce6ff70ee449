package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rpsbench/server/agent"
)

func TestSetHeaderPreserveCase(t *testing.T) {
	hdr := http.Header{}
	setHeaderPreserveCase(hdr, "HTTP-Referer", "https://example.com/app")
	if vals := hdr["HTTP-Referer"]; len(vals) != 1 || vals[0] != "https://example.com/app" {
		t.Fatalf("expected HTTP-Referer slice to be preserved, got %+v", vals)
	}
	if _, exists := hdr["Http-Referer"]; exists {
		t.Fatalf("unexpected canonical header variant present: %+v", hdr)
	}

	setHeaderPreserveCase(hdr, "Referer", "https://example.com/app")
	if got := hdr.Get("Referer"); got != "https://example.com/app" {
		t.Fatalf("expected Referer to be set via canonical path, got %q", got)
	}

	// Blank values should be ignored.
	setHeaderPreserveCase(hdr, "  ", "value")
	setHeaderPreserveCase(hdr, "X-Test", "   ")
	if _, exists := hdr[" "]; exists {
		t.Fatalf("expected blank header keys to be ignored")
	}
	if got := hdr.Get("X-Test"); got != "" {
		t.Fatalf("expected blank header values to be skipped, got %q", got)
	}
}

type capturedRequest struct {
	Model       string              `json:"model"`
	Messages    []map[string]string `json:"messages"`
	Temperature float64             `json:"temperature"`
	TopP        float64             `json:"top_p"`
	MaxTokens   int                 `json:"max_tokens"`
	Stop        []string            `json:"stop"`
	LogProbs    bool                `json:"logprobs"`
	TopLogProbs int                 `json:"top_logprobs"`
}

const logprobResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "Rock"},
    "finish_reason": "stop",
    "logprobs": {"content": [{
      "token": "Rock", "logprob": -0.05,
      "top_logprobs": [
        {"token": "Rock", "logprob": -0.05},
        {"token": "Paper", "logprob": -3.2},
        {"token": "Sc", "logprob": -4.1}
      ]
    }]}
  }]
}`

func testConfig(url string) APIConfig {
	return APIConfig{
		Kind:         providerOpenRouter,
		APIKey:       "test-key",
		Model:        "openai/gpt-4o",
		BaseURL:      url,
		HeaderName:   "Authorization",
		HeaderPrefix: "Bearer ",
		ExtraHeaders: map[string]string{"HTTP-Referer": "https://example.com", "X-Title": "rpsbench"},
	}
}

func TestCompleteSendsSamplingAndParsesCandidates(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("wrong auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Http-Referer") != "https://example.com" || r.Header.Get("X-Title") != "rpsbench" {
			t.Errorf("missing attribution headers: %+v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(logprobResponse))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	conv := agent.Conversation{
		{Role: agent.RoleUser, Content: "Choose one"},
		{Role: agent.RoleAssistant, Content: "My choice was: <revealed>"},
	}
	sc := SamplingConfig{
		Temperature: 0.5, TopP: 1, MaxOutputTokens: 100,
		StopSequences:         []string{"</revealed>"},
		ReturnTokenCandidates: true, NumCandidateTokens: 2,
	}
	res, err := c.Complete(context.Background(), conv, sc)
	if err != nil {
		t.Fatal(err)
	}

	if got.Model != "openai/gpt-4o" || got.MaxTokens != 100 || got.Temperature != 0.5 || got.TopP != 1 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Stop) != 1 || got.Stop[0] != "</revealed>" {
		t.Fatalf("unexpected stop: %v", got.Stop)
	}
	if !got.LogProbs || got.TopLogProbs != 2 {
		t.Fatalf("logprobs not requested: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[1]["role"] != "assistant" {
		t.Fatalf("prefill turn lost: %+v", got.Messages)
	}

	if res.Text != "Rock" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected candidates capped at 2, got %+v", res.Candidates)
	}
	if res.Candidates[0] != (TokenLogprob{Token: "Rock", Logprob: -0.05}) || res.Candidates[1].Token != "Paper" {
		t.Fatalf("unexpected candidates %+v", res.Candidates)
	}
}

func TestCompleteWithoutLogprobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"paper"}}]}`))
	}))
	defer srv.Close()

	res, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), nil, SamplingConfig{ReturnTokenCandidates: true, NumCandidateTokens: 5})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "paper" || len(res.Candidates) != 0 {
		t.Fatalf("unexpected completion %+v", res)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), nil, SamplingConfig{})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), nil, SamplingConfig{}); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestCustomKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("bearer header should be replaced, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Api-Key") != "test-key" {
			t.Errorf("wrong api-key header: %q", r.Header.Get("Api-Key"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"rock"}}]}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.HeaderName, cfg.HeaderPrefix = "api-key", ""
	if _, err := NewClient(cfg).Complete(context.Background(), nil, SamplingConfig{}); err != nil {
		t.Fatal(err)
	}
}

func TestBuildRequestKeepsZeroTemperature(t *testing.T) {
	req := buildRequest("gpt-4o", agent.Conversation{{Role: agent.RoleUser, Content: "Choose one"}},
		SamplingConfig{Temperature: 0, TopP: 1, MaxOutputTokens: 100})
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil {
		t.Fatal(err)
	}
	temp, ok := body["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request body: %s", b)
	}
	if temp <= 0 || temp > 1e-30 {
		t.Fatalf("expected near-zero temperature, got %g", temp)
	}

	req = buildRequest("gpt-4o", nil, SamplingConfig{Temperature: 0.7})
	if req.Temperature != float32(0.7) {
		t.Fatalf("non-zero temperature should pass through, got %g", req.Temperature)
	}
}

type countingTransport struct {
	n    int
	base http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.n++
	return c.base.RoundTrip(r)
}

func TestWithHTTPClientKeepsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header lost with custom client: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"rock"}}]}`))
	}))
	defer srv.Close()

	ct := &countingTransport{base: http.DefaultTransport}
	c := NewClient(testConfig(srv.URL), WithHTTPClient(&http.Client{Transport: ct}))
	if c.Model() != "openai/gpt-4o" {
		t.Fatalf("unexpected model %q", c.Model())
	}
	if _, err := c.Complete(context.Background(), nil, SamplingConfig{}); err != nil {
		t.Fatal(err)
	}
	if ct.n != 1 {
		t.Fatalf("expected the injected transport to carry 1 request, got %d", ct.n)
	}
}
