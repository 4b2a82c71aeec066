package provider

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
)

const (
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
	defaultHTTPTimeout = 120 * time.Second
)

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropic creates an Anthropic provider with the given API key.
func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{
		apiKey:     apiKey,
		baseURL:    anthropicBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewAnthropicWithBaseURL creates a provider pointing at a custom base URL (for testing).
func NewAnthropicWithBaseURL(apiKey, baseURL string) *Anthropic {
	a := NewAnthropic(apiKey)
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicMaxTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return "", &Error{Kind: KindMalformedRequest, Provider: a.Name(), Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindMalformedRequest, Provider: a.Name(), Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(a.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", classifyStatus(a.Name(), resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: a.Name(), Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if len(result.Content) == 0 {
		return "", &Error{Kind: KindUnavailable, Provider: a.Name(), Message: "empty content in response"}
	}
	return result.Content[0].Text, nil
}

// classifyStatus maps an HTTP error status to a provider error kind.
func classifyStatus(name string, status int, body string) *Error {
	kind := KindUnavailable
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status >= 400 && status < 500:
		kind = KindMalformedRequest
	}
	msg := body
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return &Error{Kind: kind, Provider: name, Status: status, Message: msg}
}

func classifyTransportError(name string, err error) *Error {
	kind := KindUnavailable
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: name, Message: err.Error()}
}
