package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the per-target lifecycle state. Terminal states are absorbing:
// every transition UPDATE below is guarded on the current status, so a late
// write racing a stop (or a duplicate completion) affects zero rows.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusStopped Status = "stopped"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusStopped
}

// TokenUsage is the usage block reported by a provider. APICost is set only
// when the provider reports its own cost.
type TokenUsage struct {
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	TotalTokens  int      `json:"total_tokens"`
	APICost      *float64 `json:"api_cost,omitempty"`
}

type ReportAgent struct {
	ReportID         string            `json:"report_id"`
	AgentID          string            `json:"agent_id"`
	AgentName        string            `json:"agent_name"`
	Provider         string            `json:"provider"`
	Model            string            `json:"model"`
	Status           Status            `json:"status"`
	ResponseBody     string            `json:"response_body,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	HTTPStatus       int               `json:"http_status,omitempty"`
	ResponseHeaders  map[string]string `json:"response_headers,omitempty"`
	Usage            *TokenUsage       `json:"usage,omitempty"`
	Cost             *float64          `json:"cost,omitempty"`
	Citations        []string          `json:"citations,omitempty"`
	SearchResults    []string          `json:"search_results,omitempty"`
	RelatedQuestions []string          `json:"related_questions,omitempty"`
	DurationMs       int64             `json:"duration_ms,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type Report struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Prompt      string        `json:"prompt"`
	RapportText string        `json:"rapport_text,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Agents      []ReportAgent `json:"agents,omitempty"`
}

// Outcome carries a successful invocation's payload into the store.
type Outcome struct {
	ResponseBody     string
	Usage            *TokenUsage
	Cost             float64
	Citations        []string
	SearchResults    []string
	RelatedQuestions []string
	HTTPStatus       int
	ResponseHeaders  map[string]string
	DurationMs       int64
}

// Failure carries a failed invocation's metadata into the store.
type Failure struct {
	ErrorMessage    string
	HTTPStatus      int
	ResponseHeaders map[string]string
	DurationMs      int64
}

// CreateReport inserts the report and all its agent entries as pending in a
// single transaction. Membership is fixed from this point on: entries
// transition in place, none are added or removed.
func (s *Store) CreateReport(r *Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO reports (id, title, prompt, rapport_text)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.Title, r.Prompt, nullable(r.RapportText))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for _, a := range r.Agents {
		_, err = tx.Exec(`
			INSERT INTO report_agents (report_id, agent_id, agent_name, provider, model, status)
			VALUES (?, ?, ?, ?, ?, 'pending')`,
			r.ID, a.AgentID, a.AgentName, a.Provider, a.Model)
		if err != nil {
			return fmt.Errorf("insert report agent %s: %w", a.AgentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// MarkRunning transitions an entry from pending to running. Returns false
// if the entry was not pending (already stopped, or racing writers).
func (s *Store) MarkRunning(reportID, agentID string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE report_agents
		SET status = 'running', updated_at = CURRENT_TIMESTAMP
		WHERE report_id = ? AND agent_id = ? AND status = 'pending'`,
		reportID, agentID)
	if err != nil {
		return false, fmt.Errorf("mark running: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkSuccess records a completed invocation. Returns false when the entry
// is no longer running; a stop recorded in the meantime wins and the
// payload is discarded.
func (s *Store) MarkSuccess(reportID, agentID string, o Outcome) (bool, error) {
	var inTok, outTok, totTok any
	var apiCost any
	if o.Usage != nil {
		inTok, outTok, totTok = o.Usage.InputTokens, o.Usage.OutputTokens, o.Usage.TotalTokens
		if o.Usage.APICost != nil {
			apiCost = *o.Usage.APICost
		}
	}

	res, err := s.db.Exec(`
		UPDATE report_agents
		SET status = 'success',
		    response_body = ?,
		    http_status = ?,
		    response_headers = ?,
		    input_tokens = ?, output_tokens = ?, total_tokens = ?,
		    api_cost = ?, cost = ?,
		    citations = ?, search_results = ?, related_questions = ?,
		    duration_ms = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE report_id = ? AND agent_id = ? AND status = 'running'`,
		o.ResponseBody, nullableInt(o.HTTPStatus), jsonOrNull(o.ResponseHeaders),
		inTok, outTok, totTok, apiCost, o.Cost,
		jsonOrNull(o.Citations), jsonOrNull(o.SearchResults), jsonOrNull(o.RelatedQuestions),
		o.DurationMs, reportID, agentID)
	if err != nil {
		return false, fmt.Errorf("mark success: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkError records a failed invocation. Pending entries are accepted too:
// a missing-credentials short circuit fails a target that never dispatched.
func (s *Store) MarkError(reportID, agentID string, f Failure) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE report_agents
		SET status = 'error',
		    error_message = ?,
		    http_status = ?,
		    response_headers = ?,
		    duration_ms = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE report_id = ? AND agent_id = ? AND status IN ('pending', 'running')`,
		f.ErrorMessage, nullableInt(f.HTTPStatus), jsonOrNull(f.ResponseHeaders),
		f.DurationMs, reportID, agentID)
	if err != nil {
		return false, fmt.Errorf("mark error: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkStopped transitions every non-terminal entry of the report to stopped
// with the sentinel message. Returns the number of entries stopped.
func (s *Store) MarkStopped(reportID, message string) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE report_agents
		SET status = 'stopped', error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE report_id = ? AND status IN ('pending', 'running')`,
		message, reportID)
	if err != nil {
		return 0, fmt.Errorf("mark stopped: %w", err)
	}
	return res.RowsAffected()
}

// SetReportCompleted stamps the report once every entry is terminal.
func (s *Store) SetReportCompleted(reportID string) error {
	_, err := s.db.Exec(`
		UPDATE reports SET completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND completed_at IS NULL`, reportID)
	return err
}

func (s *Store) GetReport(id string) (*Report, error) {
	r := &Report{}
	var rapport sql.NullString
	var completed sql.NullTime
	err := s.db.QueryRow(`SELECT id, title, prompt, rapport_text, created_at, completed_at FROM reports WHERE id = ?`, id).
		Scan(&r.ID, &r.Title, &r.Prompt, &rapport, &r.CreatedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	r.RapportText = rapport.String
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}

	agents, err := s.GetReportAgents(id)
	if err != nil {
		return nil, err
	}
	r.Agents = agents
	return r, nil
}

func (s *Store) ListReports() ([]Report, error) {
	rows, err := s.db.Query(`SELECT id, title, prompt, rapport_text, created_at, completed_at FROM reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		var rapport sql.NullString
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.Title, &r.Prompt, &rapport, &r.CreatedAt, &completed); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.RapportText = rapport.String
		if completed.Valid {
			r.CompletedAt = &completed.Time
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

const reportAgentColumns = `report_id, agent_id, agent_name, provider, model, status,
	response_body, error_message, http_status, response_headers,
	input_tokens, output_tokens, total_tokens, api_cost, cost,
	citations, search_results, related_questions, duration_ms, updated_at`

func (s *Store) GetReportAgents(reportID string) ([]ReportAgent, error) {
	rows, err := s.db.Query(`SELECT `+reportAgentColumns+` FROM report_agents WHERE report_id = ? ORDER BY agent_id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("get report agents: %w", err)
	}
	defer rows.Close()

	var agents []ReportAgent
	for rows.Next() {
		a, err := scanReportAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (s *Store) GetReportAgent(reportID, agentID string) (*ReportAgent, error) {
	row := s.db.QueryRow(`SELECT `+reportAgentColumns+` FROM report_agents WHERE report_id = ? AND agent_id = ?`, reportID, agentID)
	a, err := scanReportAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report agent: %w", err)
	}
	return a, nil
}

// ReportProgress counts terminal entries against the total.
func (s *Store) ReportProgress(reportID string) (completed, total int, err error) {
	err = s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN status IN ('success', 'error', 'stopped') THEN 1 END),
			COUNT(*)
		FROM report_agents WHERE report_id = ?`, reportID).
		Scan(&completed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("report progress: %w", err)
	}
	return completed, total, nil
}

func scanReportAgent(scanner interface{ Scan(dest ...any) error }) (*ReportAgent, error) {
	a := &ReportAgent{}
	var body, errMsg, headers, citations, results, questions sql.NullString
	var httpStatus, inTok, outTok, totTok, durMs sql.NullInt64
	var apiCost, cost sql.NullFloat64

	err := scanner.Scan(&a.ReportID, &a.AgentID, &a.AgentName, &a.Provider, &a.Model, &a.Status,
		&body, &errMsg, &httpStatus, &headers,
		&inTok, &outTok, &totTok, &apiCost, &cost,
		&citations, &results, &questions, &durMs, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.ResponseBody = body.String
	a.ErrorMessage = errMsg.String
	a.HTTPStatus = int(httpStatus.Int64)
	a.DurationMs = durMs.Int64
	if headers.Valid {
		_ = json.Unmarshal([]byte(headers.String), &a.ResponseHeaders)
	}
	if inTok.Valid || outTok.Valid || totTok.Valid {
		a.Usage = &TokenUsage{
			InputTokens:  int(inTok.Int64),
			OutputTokens: int(outTok.Int64),
			TotalTokens:  int(totTok.Int64),
		}
		if apiCost.Valid {
			a.Usage.APICost = &apiCost.Float64
		}
	}
	if cost.Valid {
		a.Cost = &cost.Float64
	}
	if citations.Valid {
		_ = json.Unmarshal([]byte(citations.String), &a.Citations)
	}
	if results.Valid {
		_ = json.Unmarshal([]byte(results.String), &a.SearchResults)
	}
	if questions.Valid {
		_ = json.Unmarshal([]byte(questions.String), &a.RelatedQuestions)
	}
	return a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func jsonOrNull(v any) any {
	switch t := v.(type) {
	case map[string]string:
		if len(t) == 0 {
			return nil
		}
	case []string:
		if len(t) == 0 {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}
