package store

import "fmt"

// UsageStat is the running token/cost aggregate for one provider+model.
type UsageStat struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	Cost         float64 `json:"cost"`
	Invocations  int64   `json:"invocations"`
}

// AddUsage folds one completed invocation into the aggregate. The upsert is
// atomic, so concurrent completions for the same provider+model never lose
// updates.
func (s *Store) AddUsage(provider, model string, usage TokenUsage, cost float64) error {
	_, err := s.db.Exec(`
		INSERT INTO usage_stats (provider, model, input_tokens, output_tokens, total_tokens, cost, invocations)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(provider, model) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			total_tokens = total_tokens + excluded.total_tokens,
			cost = cost + excluded.cost,
			invocations = invocations + 1`,
		provider, model, usage.InputTokens, usage.OutputTokens, usage.TotalTokens, cost)
	if err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	return nil
}

func (s *Store) ListUsage() ([]UsageStat, error) {
	rows, err := s.db.Query(`SELECT provider, model, input_tokens, output_tokens, total_tokens, cost, invocations FROM usage_stats ORDER BY provider, model`)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var stats []UsageStat
	for rows.Next() {
		var u UsageStat
		if err := rows.Scan(&u.Provider, &u.Model, &u.InputTokens, &u.OutputTokens, &u.TotalTokens, &u.Cost, &u.Invocations); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		stats = append(stats, u)
	}
	return stats, rows.Err()
}
