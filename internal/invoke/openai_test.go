package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/herbert256/swarmgen/internal/config"
)

func testTarget(url string) Target {
	return Target{
		ID:          "agent-1",
		Provider:    "openai",
		Model:       "gpt-4o",
		APIKey:      "sk-test",
		EndpointURL: url,
	}
}

func TestInvokeSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello"}},
			},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12},
		})
	}))
	defer srv.Close()

	inv := NewHTTPInvoker()
	res, err := inv.Invoke(context.Background(), testTarget(srv.URL), "hi")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if res.Usage == nil || res.Usage.TotalTokens != 12 {
		t.Errorf("unexpected usage: %+v", res.Usage)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" {
		t.Errorf("unexpected model: %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" || gotReq.Messages[0].Content != "hi" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestInvokeSendsParameters(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	temp := 0.3
	maxTok := 256
	target := testTarget(srv.URL)
	target.Params = config.Parameters{
		Temperature:   &temp,
		MaxTokens:     &maxTok,
		SystemPrompt:  "You are terse.",
		ResponseJSON:  true,
		SearchEnabled: true,
		SearchRecency: "week",
	}

	if _, err := NewHTTPInvoker().Invoke(context.Background(), target, "hi"); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if gotReq.Temperature == nil || *gotReq.Temperature != 0.3 {
		t.Errorf("temperature not sent: %+v", gotReq.Temperature)
	}
	if gotReq.MaxTokens == nil || *gotReq.MaxTokens != 256 {
		t.Errorf("max tokens not sent: %+v", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("system prompt not prepended: %+v", gotReq.Messages)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("response format not set: %+v", gotReq.ResponseFormat)
	}
	if gotReq.WebSearchOptions == nil || gotReq.WebSearchOptions.SearchRecencyFilter != "week" {
		t.Errorf("web search options not set: %+v", gotReq.WebSearchOptions)
	}
}

func TestInvokeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded"},
		})
	}))
	defer srv.Close()

	_, err := NewHTTPInvoker().Invoke(context.Background(), testTarget(srv.URL), "hi")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if apiErr.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("unexpected status: %d", apiErr.HTTPStatus)
	}
	if apiErr.Message != "rate limit exceeded" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestInvokeNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	_, err := NewHTTPInvoker().Invoke(context.Background(), testTarget(srv.URL), "hi")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Message != "upstream unavailable" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestInvokeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	_, err := NewHTTPInvoker().Invoke(context.Background(), testTarget(srv.URL), "hi")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "no choices") {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestInvokeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPInvoker().Invoke(ctx, testTarget(srv.URL), "hi")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("unexpected error: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestInvokeSearchMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices":   []map[string]any{{"message": map[string]string{"content": "cited answer"}}},
			"citations": []string{"https://a.example", "https://b.example"},
			"search_results": []map[string]string{
				{"title": "A", "url": "https://a.example"},
				{"url": "https://b.example"},
			},
			"related_questions": []string{"What about C?"},
		})
	}))
	defer srv.Close()

	res, err := NewHTTPInvoker().Invoke(context.Background(), testTarget(srv.URL), "hi")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(res.Citations) != 2 {
		t.Errorf("unexpected citations: %v", res.Citations)
	}
	if len(res.SearchResults) != 2 || res.SearchResults[0] != "A (https://a.example)" {
		t.Errorf("unexpected search results: %v", res.SearchResults)
	}
	if len(res.RelatedQuestions) != 1 {
		t.Errorf("unexpected related questions: %v", res.RelatedQuestions)
	}
}
