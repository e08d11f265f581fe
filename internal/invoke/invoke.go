// Package invoke defines the model invocation port: the boundary between
// the report orchestrator and provider backends. One implementation covers
// every OpenAI-compatible provider; anything else plugs in behind Invoker.
package invoke

import (
	"context"
	"fmt"

	"github.com/herbert256/swarmgen/internal/config"
)

// Target is a fully resolved dispatch unit: provider, model, credentials,
// endpoint and parameters. Targets are computed fresh per report generation
// and never persisted on their own.
type Target struct {
	ID          string
	DisplayName string
	Provider    string
	Model       string
	APIKey      string
	EndpointURL string
	Params      config.Parameters
}

// Usage is the token accounting a provider returned for one invocation.
// APICost is set only when the provider reports its own cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	APICost      *float64
}

// Result is a successful invocation payload.
type Result struct {
	Text             string
	Usage            *Usage
	Citations        []string
	SearchResults    []string
	RelatedQuestions []string
	HTTPStatus       int
	Headers          map[string]string
}

// Error is a provider-side failure: a non-2xx response or an API-level
// error payload. Transport failures surface as plain errors instead.
type Error struct {
	Message    string
	HTTPStatus int
	Headers    map[string]string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("provider error (HTTP %d): %s", e.HTTPStatus, e.Message)
	}
	return "provider error: " + e.Message
}

// Invoker sends one prompt to one target. Implementations must honor ctx
// cancellation; the orchestrator bounds every call with a deadline.
type Invoker interface {
	Invoke(ctx context.Context, target Target, prompt string) (*Result, error)
}
