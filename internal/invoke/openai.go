package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPInvoker speaks the OpenAI-compatible chat completions dialect shared
// by every provider in the catalog.
type HTTPInvoker struct {
	client *http.Client
}

// NewHTTPInvoker creates the default invoker. The client carries no
// timeout of its own; the orchestrator bounds each call via ctx.
func NewHTTPInvoker() *HTTPInvoker {
	return &HTTPInvoker{client: &http.Client{}}
}

// NewHTTPInvokerWithClient sets a custom HTTP client (useful for testing).
func NewHTTPInvokerWithClient(c *http.Client) *HTTPInvoker {
	return &HTTPInvoker{client: c}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type webSearchOptions struct {
	SearchRecencyFilter string `json:"search_recency_filter,omitempty"`
}

type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []chatMessage     `json:"messages"`
	Temperature      *float64          `json:"temperature,omitempty"`
	MaxTokens        *int              `json:"max_tokens,omitempty"`
	TopP             *float64          `json:"top_p,omitempty"`
	TopK             *int              `json:"top_k,omitempty"`
	FrequencyPenalty *float64          `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64          `json:"presence_penalty,omitempty"`
	Seed             *int              `json:"seed,omitempty"`
	ResponseFormat   *responseFormat   `json:"response_format,omitempty"`
	WebSearchOptions *webSearchOptions `json:"web_search_options,omitempty"`
	ReturnCitations  bool              `json:"return_citations,omitempty"`
}

type chatUsage struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	Cost             *float64 `json:"cost,omitempty"`
}

type searchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage            *chatUsage     `json:"usage"`
	Citations        []string       `json:"citations"`
	SearchResults    []searchResult `json:"search_results"`
	RelatedQuestions []string       `json:"related_questions"`
}

type apiErrorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HTTPInvoker) Invoke(ctx context.Context, target Target, prompt string) (*Result, error) {
	req := buildChatRequest(target, prompt)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(target.EndpointURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+target.APIKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("invocation timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	headers := flattenHeaders(resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Message:    apiErrorMessage(respBody),
			HTTPStatus: resp.StatusCode,
			Headers:    headers,
		}
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, &Error{
			Message:    "response contains no choices",
			HTTPStatus: resp.StatusCode,
			Headers:    headers,
		}
	}

	result := &Result{
		Text:             chat.Choices[0].Message.Content,
		Citations:        chat.Citations,
		RelatedQuestions: chat.RelatedQuestions,
		HTTPStatus:       resp.StatusCode,
		Headers:          headers,
	}
	for _, sr := range chat.SearchResults {
		if sr.Title != "" {
			result.SearchResults = append(result.SearchResults, sr.Title+" ("+sr.URL+")")
		} else {
			result.SearchResults = append(result.SearchResults, sr.URL)
		}
	}
	if chat.Usage != nil {
		result.Usage = &Usage{
			InputTokens:  chat.Usage.PromptTokens,
			OutputTokens: chat.Usage.CompletionTokens,
			TotalTokens:  chat.Usage.TotalTokens,
			APICost:      chat.Usage.Cost,
		}
	}

	return result, nil
}

func buildChatRequest(target Target, prompt string) chatRequest {
	p := target.Params

	var messages []chatMessage
	if p.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{
		Model:            target.Model,
		Messages:         messages,
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		TopK:             p.TopK,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		Seed:             p.Seed,
		ReturnCitations:  p.ReturnCitations,
	}
	if p.ResponseJSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	if p.SearchEnabled {
		req.WebSearchOptions = &webSearchOptions{SearchRecencyFilter: p.SearchRecency}
	}
	return req
}

func apiErrorMessage(body []byte) string {
	var payload apiErrorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	if msg == "" {
		msg = "empty error response"
	}
	return msg
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
