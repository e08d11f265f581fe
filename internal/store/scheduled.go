package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ScheduledReport re-runs a saved prompt and selection on a schedule.
type ScheduledReport struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Title      string     `json:"title"`
	Prompt     string     `json:"prompt"`
	AgentIDs   []string   `json:"agent_ids,omitempty"`
	SwarmIDs   []string   `json:"swarm_ids,omitempty"`
	ModelSpecs []string   `json:"model_specs,omitempty"`
	ParamsID   string     `json:"params_id,omitempty"`
	Status     string     `json:"status"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const scheduledColumns = `id, name, schedule, title, prompt, agent_ids, swarm_ids, model_specs, params_id, status, next_run_at, last_run_at, last_status, last_error, created_at`

func (s *Store) SaveScheduledReport(r *ScheduledReport) error {
	agentIDs, _ := json.Marshal(r.AgentIDs)
	swarmIDs, _ := json.Marshal(r.SwarmIDs)
	modelSpecs, _ := json.Marshal(r.ModelSpecs)
	_, err := s.db.Exec(`
		INSERT INTO scheduled_reports (id, name, schedule, title, prompt, agent_ids, swarm_ids, model_specs, params_id, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			title = excluded.title,
			prompt = excluded.prompt,
			agent_ids = excluded.agent_ids,
			swarm_ids = excluded.swarm_ids,
			model_specs = excluded.model_specs,
			params_id = excluded.params_id,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		r.ID, r.Name, r.Schedule, r.Title, r.Prompt,
		string(agentIDs), string(swarmIDs), string(modelSpecs),
		r.ParamsID, r.Status, r.NextRunAt)
	if err != nil {
		return fmt.Errorf("save scheduled report: %w", err)
	}
	return nil
}

func (s *Store) GetScheduledReport(id string) (*ScheduledReport, error) {
	row := s.db.QueryRow(`SELECT `+scheduledColumns+` FROM scheduled_reports WHERE id = ?`, id)
	r, err := scanScheduledReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled report: %w", err)
	}
	return r, nil
}

func (s *Store) ListScheduledReports() ([]ScheduledReport, error) {
	rows, err := s.db.Query(`SELECT ` + scheduledColumns + ` FROM scheduled_reports ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled reports: %w", err)
	}
	defer rows.Close()
	return collectScheduledReports(rows)
}

// GetDueScheduledReports returns active entries whose next run is at or
// before now.
func (s *Store) GetDueScheduledReports(now time.Time) ([]ScheduledReport, error) {
	rows, err := s.db.Query(`
		SELECT `+scheduledColumns+` FROM scheduled_reports
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("get due scheduled reports: %w", err)
	}
	defer rows.Close()
	return collectScheduledReports(rows)
}

func (s *Store) UpdateScheduledReportRun(id, lastStatus, lastError string, nextRun *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE scheduled_reports
		SET last_run_at = CURRENT_TIMESTAMP, last_status = ?, last_error = ?, next_run_at = ?
		WHERE id = ?`, lastStatus, lastError, nextRun, id)
	return err
}

func (s *Store) UpdateScheduledReportStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE scheduled_reports SET status = ? WHERE id = ?`, status, id)
	return err
}

func (s *Store) DeleteScheduledReport(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_reports WHERE id = ?`, id)
	return err
}

func collectScheduledReports(rows *sql.Rows) ([]ScheduledReport, error) {
	var reports []ScheduledReport
	for rows.Next() {
		r, err := scanScheduledReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func scanScheduledReport(scanner interface{ Scan(dest ...any) error }) (*ScheduledReport, error) {
	r := &ScheduledReport{}
	var agentIDs, swarmIDs, modelSpecs, paramsID, lastStatus, lastError sql.NullString
	var nextRun, lastRun sql.NullTime
	err := scanner.Scan(&r.ID, &r.Name, &r.Schedule, &r.Title, &r.Prompt,
		&agentIDs, &swarmIDs, &modelSpecs, &paramsID, &r.Status,
		&nextRun, &lastRun, &lastStatus, &lastError, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if agentIDs.Valid {
		_ = json.Unmarshal([]byte(agentIDs.String), &r.AgentIDs)
	}
	if swarmIDs.Valid {
		_ = json.Unmarshal([]byte(swarmIDs.String), &r.SwarmIDs)
	}
	if modelSpecs.Valid {
		_ = json.Unmarshal([]byte(modelSpecs.String), &r.ModelSpecs)
	}
	r.ParamsID = paramsID.String
	r.LastStatus = lastStatus.String
	r.LastError = lastError.String
	if nextRun.Valid {
		r.NextRunAt = &nextRun.Time
	}
	if lastRun.Valid {
		r.LastRunAt = &lastRun.Time
	}
	return r, nil
}
