package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const openaiBaseURL = "https://api.openai.com"

// OpenAI calls the OpenAI chat completions API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI provider with the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    openaiBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewOpenAIWithBaseURL creates a provider pointing at a custom base URL (for testing).
func NewOpenAIWithBaseURL(apiKey, baseURL string) *OpenAI {
	o := NewOpenAI(apiKey)
	o.baseURL = strings.TrimRight(baseURL, "/")
	return o
}

func (o *OpenAI) Name() string { return "openai" }

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := []openaiMessage{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.User},
	}
	// Reasoning models reject system messages; fold the instruction into
	// the user turn for those.
	if isReasoningModel(req.Model) {
		messages = []openaiMessage{{Role: "user", Content: req.System + "\n\n" + req.User}}
	}

	body, err := json.Marshal(openaiRequest{
		Model:               req.Model,
		Messages:            messages,
		MaxCompletionTokens: anthropicMaxTokens,
	})
	if err != nil {
		return "", &Error{Kind: KindMalformedRequest, Provider: o.Name(), Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindMalformedRequest, Provider: o.Name(), Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(o.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", classifyStatus(o.Name(), resp.StatusCode, string(respBody))
	}

	var result openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: o.Name(), Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if len(result.Choices) == 0 {
		return "", &Error{Kind: KindUnavailable, Provider: o.Name(), Message: "empty choices in response"}
	}
	return result.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
