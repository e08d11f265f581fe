package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Agent struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model,omitempty"`
	EndpointID string    `json:"endpoint_id,omitempty"`
	ParamsID   string    `json:"params_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Swarm struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AgentIDs  []string  `json:"agent_ids"`
	ParamsID  string    `json:"params_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) SaveAgent(a *Agent) error {
	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, provider, model, endpoint_id, params_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			provider = excluded.provider,
			model = excluded.model,
			endpoint_id = excluded.endpoint_id,
			params_id = excluded.params_id,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.Name, a.Provider, a.Model, a.EndpointID, a.ParamsID)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(id string) (*Agent, error) {
	a := &Agent{}
	var model, endpointID, paramsID sql.NullString
	err := s.db.QueryRow(`SELECT id, name, provider, model, endpoint_id, params_id, created_at, updated_at FROM agents WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Provider, &model, &endpointID, &paramsID, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	a.Model = model.String
	a.EndpointID = endpointID.String
	a.ParamsID = paramsID.String
	return a, nil
}

func (s *Store) ListAgents() ([]Agent, error) {
	rows, err := s.db.Query(`SELECT id, name, provider, model, endpoint_id, params_id, created_at, updated_at FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		var model, endpointID, paramsID sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.Provider, &model, &endpointID, &paramsID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.Model = model.String
		a.EndpointID = endpointID.String
		a.ParamsID = paramsID.String
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) DeleteAgentsNotIn(ids []string) error {
	if len(ids) == 0 {
		_, err := s.db.Exec(`DELETE FROM agents`)
		return err
	}
	query := `DELETE FROM agents WHERE id NOT IN (`
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += ")"
	_, err := s.db.Exec(query, args...)
	return err
}

func (s *Store) SaveSwarm(sw *Swarm) error {
	agentIDs, _ := json.Marshal(sw.AgentIDs)
	_, err := s.db.Exec(`
		INSERT INTO swarms (id, name, agent_ids, params_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			agent_ids = excluded.agent_ids,
			params_id = excluded.params_id,
			updated_at = CURRENT_TIMESTAMP`,
		sw.ID, sw.Name, string(agentIDs), sw.ParamsID)
	if err != nil {
		return fmt.Errorf("save swarm: %w", err)
	}
	return nil
}

func (s *Store) GetSwarm(id string) (*Swarm, error) {
	sw := &Swarm{}
	var agentIDs string
	var paramsID sql.NullString
	err := s.db.QueryRow(`SELECT id, name, agent_ids, params_id, created_at, updated_at FROM swarms WHERE id = ?`, id).
		Scan(&sw.ID, &sw.Name, &agentIDs, &paramsID, &sw.CreatedAt, &sw.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swarm: %w", err)
	}
	_ = json.Unmarshal([]byte(agentIDs), &sw.AgentIDs)
	sw.ParamsID = paramsID.String
	return sw, nil
}

func (s *Store) ListSwarms() ([]Swarm, error) {
	rows, err := s.db.Query(`SELECT id, name, agent_ids, params_id, created_at, updated_at FROM swarms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list swarms: %w", err)
	}
	defer rows.Close()

	var swarms []Swarm
	for rows.Next() {
		var sw Swarm
		var agentIDs string
		var paramsID sql.NullString
		if err := rows.Scan(&sw.ID, &sw.Name, &agentIDs, &paramsID, &sw.CreatedAt, &sw.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan swarm: %w", err)
		}
		_ = json.Unmarshal([]byte(agentIDs), &sw.AgentIDs)
		sw.ParamsID = paramsID.String
		swarms = append(swarms, sw)
	}
	return swarms, rows.Err()
}

func (s *Store) DeleteSwarmsNotIn(ids []string) error {
	if len(ids) == 0 {
		_, err := s.db.Exec(`DELETE FROM swarms`)
		return err
	}
	query := `DELETE FROM swarms WHERE id NOT IN (`
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += ")"
	_, err := s.db.Exec(query, args...)
	return err
}
