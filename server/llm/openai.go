package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"rpsbench/server/agent"
)

// ErrNoChoices is returned when a response carries an empty choices list.
var ErrNoChoices = errors.New("no choices returned")

// SamplingConfig carries the per-request generation knobs.
type SamplingConfig struct {
	Temperature           float64  `yaml:"temperature" json:"temperature"`
	TopP                  float64  `yaml:"top_p" json:"top_p"`
	MaxOutputTokens       int      `yaml:"max_output_tokens" json:"max_output_tokens"`
	StopSequences         []string `yaml:"stop_sequences" json:"stop_sequences"`
	ReturnTokenCandidates bool     `yaml:"return_token_candidates" json:"return_token_candidates"`
	NumCandidateTokens    int      `yaml:"num_candidate_tokens" json:"num_candidate_tokens"`
}

// TokenLogprob is one ranked alternative for the first generated token.
type TokenLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// Completion is the generated text plus the candidate list for its first
// token (empty when the endpoint returned no logprobs).
type Completion struct {
	Text       string
	Candidates []TokenLogprob
}

// Client is a synchronous chat-completions caller for one resolved
// endpoint. Requests are issued one at a time by the caller.
type Client struct {
	api   *openai.Client
	model string
	kind  providerKind
}

type Option func(*clientOptions)

type clientOptions struct {
	timeout    time.Duration
	httpClient *http.Client
}

// WithTimeout bounds a single HTTP round trip. Default 45s.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithHTTPClient replaces the underlying transport client; its Transport
// is still wrapped to apply auth and extra headers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// NewClient builds a go-openai client pointed at cfg.BaseURL.
func NewClient(cfg APIConfig, opts ...Option) *Client {
	o := clientOptions{timeout: 45 * time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	hc := &http.Client{Timeout: o.timeout}
	if o.httpClient != nil {
		cp := *o.httpClient
		hc = &cp
	}
	hc.Transport = &headerTransport{
		base:   hc.Transport,
		name:   cfg.HeaderName,
		prefix: cfg.HeaderPrefix,
		key:    cfg.APIKey,
		extra:  cfg.ExtraHeaders,
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.OrgID = cfg.Organization
	oc.HTTPClient = hc
	return &Client{api: openai.NewClientWithConfig(oc), model: cfg.Model, kind: cfg.Kind}
}

// Model is the endpoint-side model id requests are sent with.
func (c *Client) Model() string { return c.model }

// Complete sends the conversation as-is; a trailing assistant turn acts
// as the pre-seeded lead-in.
func (c *Client) Complete(ctx context.Context, conv agent.Conversation, sc SamplingConfig) (Completion, error) {
	req := buildRequest(c.model, conv, sc)
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("%s chat completion (%s): %w", c.kind, c.model, err)
	}
	return completionFromResponse(resp, sc)
}

func buildRequest(model string, conv agent.Conversation, sc SamplingConfig) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(conv))
	for _, m := range conv {
		role := openai.ChatMessageRoleUser
		if m.Role == agent.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	temp := float32(sc.Temperature)
	if temp == 0 {
		// temperature is omitempty upstream; a zero would be dropped and the
		// endpoint default (1.0) used instead.
		temp = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temp,
		TopP:        float32(sc.TopP),
		MaxTokens:   sc.MaxOutputTokens,
	}
	if len(sc.StopSequences) > 0 {
		req.Stop = append([]string(nil), sc.StopSequences...)
	}
	if sc.ReturnTokenCandidates {
		req.LogProbs = true
		req.TopLogProbs = sc.NumCandidateTokens
	}
	return req
}

// completionFromResponse reads the first choice. Missing logprob data is
// not an error: the candidate list is just left empty.
func completionFromResponse(resp openai.ChatCompletionResponse, sc SamplingConfig) (Completion, error) {
	if len(resp.Choices) == 0 {
		return Completion{}, ErrNoChoices
	}
	ch := resp.Choices[0]
	out := Completion{Text: ch.Message.Content}
	if !sc.ReturnTokenCandidates || ch.LogProbs == nil || len(ch.LogProbs.Content) == 0 {
		return out, nil
	}
	first := ch.LogProbs.Content[0]
	if len(first.TopLogProbs) == 0 {
		out.Candidates = []TokenLogprob{{Token: first.Token, Logprob: first.LogProb}}
		return out, nil
	}
	limit := len(first.TopLogProbs)
	if sc.NumCandidateTokens > 0 && sc.NumCandidateTokens < limit {
		limit = sc.NumCandidateTokens
	}
	out.Candidates = make([]TokenLogprob, 0, limit)
	for _, tp := range first.TopLogProbs[:limit] {
		out.Candidates = append(out.Candidates, TokenLogprob{Token: tp.Token, Logprob: tp.LogProb})
	}
	return out, nil
}

// headerTransport rewrites auth for endpoints that want a non-bearer
// header and adds the OpenRouter attribution headers.
type headerTransport struct {
	base   http.RoundTripper
	name   string
	prefix string
	key    string
	extra  map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.name != "" && (t.name != "Authorization" || t.prefix != "Bearer ") {
		r.Header.Del("Authorization")
		setHeaderPreserveCase(r.Header, t.name, t.prefix+t.key)
	}
	for k, v := range t.extra {
		setHeaderPreserveCase(r.Header, k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// setHeaderPreserveCase keeps non-canonical spellings such as
// "HTTP-Referer" that some gateways match literally.
func setHeaderPreserveCase(h http.Header, key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if http.CanonicalHeaderKey(key) == key {
		h.Set(key, value)
		return
	}
	delete(h, http.CanonicalHeaderKey(key))
	h[key] = []string{value}
}
