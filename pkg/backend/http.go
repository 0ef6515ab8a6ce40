package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPGenerator calls a downstream model service over HTTP with a pooled
// transport. The wire contract is a JSON POST to {base}/{target} carrying
// the prompt plus passthrough payload fields; the response is JSON with a
// "text" field (with "completion" and "response" accepted as aliases).
type HTTPGenerator struct {
	cfg    Config
	client *http.Client
}

// generateResponse is the downstream reply shape.
type generateResponse struct {
	Text       string `json:"text"`
	Completion string `json:"completion"`
	Response   string `json:"response"`
	Model      string `json:"model"`
}

// NewHTTPGenerator creates a generator over the configured base URL.
func NewHTTPGenerator(cfg Config) (*HTTPGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &HTTPGenerator{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// Generate performs one completion call.
func (g *HTTPGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	body := map[string]any{"prompt": req.Prompt}
	for k, v := range req.Payload {
		if k == "prompt" {
			continue
		}
		body[k] = v
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, NewError(req.Target, 0, "failed to encode request", err)
	}

	endpoint := strings.TrimSuffix(g.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(req.Target, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, NewError(req.Target, 0, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, NewError(req.Target, 0, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, NewError(req.Target, resp.StatusCode, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, NewError(req.Target, resp.StatusCode, msg, nil)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewError(req.Target, resp.StatusCode, "invalid response body", err)
	}

	text := parsed.Text
	if text == "" {
		text = parsed.Completion
	}
	if text == "" {
		text = parsed.Response
	}
	return &Result{
		Text:    text,
		Model:   parsed.Model,
		Latency: time.Since(start),
	}, nil
}
