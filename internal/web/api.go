package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herbert256/swarmgen/internal/report"
	"github.com/herbert256/swarmgen/internal/schedule"
	"github.com/herbert256/swarmgen/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Reports
	mux.HandleFunc("POST /api/reports", s.createReport)
	mux.HandleFunc("GET /api/reports", s.listReports)
	mux.HandleFunc("GET /api/reports/{id}", s.getReport)
	mux.HandleFunc("GET /api/reports/{id}/progress", s.getReportProgress)
	mux.HandleFunc("POST /api/reports/{id}/stop", s.stopReport)

	// Definitions (from config, persisted for listing)
	mux.HandleFunc("GET /api/agents", s.listAgents)
	mux.HandleFunc("GET /api/swarms", s.listSwarms)

	// Providers
	mux.HandleFunc("GET /api/providers", s.listProviders)
	mux.HandleFunc("PUT /api/providers/{id}/key", s.setProviderKey)

	// Scheduled reports
	mux.HandleFunc("GET /api/scheduled", s.listScheduled)
	mux.HandleFunc("POST /api/scheduled", s.createScheduled)
	mux.HandleFunc("GET /api/scheduled/{id}", s.getScheduled)
	mux.HandleFunc("PUT /api/scheduled/{id}", s.updateScheduled)
	mux.HandleFunc("DELETE /api/scheduled/{id}", s.deleteScheduled)

	// System
	mux.HandleFunc("GET /api/usage", s.getUsage)
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var req report.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	rep, err := s.orch.GenerateReport(req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, rep)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []store.Report{}
	}
	jsonResponse(w, reports)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rep == nil {
		jsonError(w, "report not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, rep)
}

func (s *Server) getReportProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.orch.Progress(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if p == nil {
		jsonError(w, "report not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, p)
}

func (s *Server) stopReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rep, err := s.store.GetReport(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rep == nil {
		jsonError(w, "report not found", http.StatusNotFound)
		return
	}

	n, err := s.orch.Stop(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{"stopped": n})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.registry.ListAgents()
	out := make([]map[string]any, 0, len(agents))
	for _, a := range agents {
		model := a.Model
		if model == "" {
			if p, ok := s.catalog.Get(a.Provider); ok {
				model = p.DefaultModel
			}
		}
		out = append(out, map[string]any{
			"id":       a.ID,
			"name":     a.Name,
			"provider": a.Provider,
			"model":    model,
			"has_key":  a.APIKey != "" || s.registry.GetAPIKey(a.Provider) != "",
		})
	}
	jsonResponse(w, out)
}

func (s *Server) listSwarms(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.registry.ListSwarms())
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.catalog.List()
	out := make([]map[string]any, 0, len(providers))
	for _, p := range providers {
		out = append(out, map[string]any{
			"id":            p.ID,
			"display_name":  p.DisplayName,
			"default_model": p.DefaultModel,
			"capabilities":  p.Capabilities,
			"has_key":       s.registry.GetAPIKey(p.ID) != "",
		})
	}
	jsonResponse(w, out)
}

func (s *Server) setProviderKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.catalog.Get(id); !ok {
		jsonError(w, "unknown provider", http.StatusNotFound)
		return
	}

	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.registry.SetAPIKey(id, body.Key); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

type scheduledRequest struct {
	Name       string   `json:"name"`
	Schedule   string   `json:"schedule"`
	Title      string   `json:"title"`
	Prompt     string   `json:"prompt"`
	AgentIDs   []string `json:"agent_ids"`
	SwarmIDs   []string `json:"swarm_ids"`
	ModelSpecs []string `json:"model_specs"`
	ParamsID   string   `json:"params_id"`
	Status     string   `json:"status"`
}

func (s *Server) listScheduled(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListScheduledReports()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, scheduledEntry(e))
	}
	jsonResponse(w, out)
}

func (s *Server) createScheduled(w http.ResponseWriter, r *http.Request) {
	var req scheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	normalized, err := schedule.Normalize(req.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry := &store.ScheduledReport{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Schedule:   normalized,
		Title:      req.Title,
		Prompt:     req.Prompt,
		AgentIDs:   req.AgentIDs,
		SwarmIDs:   req.SwarmIDs,
		ModelSpecs: req.ModelSpecs,
		ParamsID:   req.ParamsID,
		Status:     "active",
		NextRunAt:  schedule.NextRun(normalized),
	}
	if entry.NextRunAt == nil {
		jsonError(w, "schedule never fires", http.StatusBadRequest)
		return
	}
	if err := s.store.SaveScheduledReport(entry); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, scheduledEntry(*entry))
}

func (s *Server) getScheduled(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetScheduledReport(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entry == nil {
		jsonError(w, "scheduled report not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, scheduledEntry(*entry))
}

func (s *Server) updateScheduled(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetScheduledReport(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entry == nil {
		jsonError(w, "scheduled report not found", http.StatusNotFound)
		return
	}

	var req scheduledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Schedule != "" {
		normalized, err := schedule.Normalize(req.Schedule)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		entry.Schedule = normalized
		entry.NextRunAt = schedule.NextRun(normalized)
	}
	if req.Name != "" {
		entry.Name = req.Name
	}
	if req.Title != "" {
		entry.Title = req.Title
	}
	if req.Prompt != "" {
		entry.Prompt = req.Prompt
	}
	if req.AgentIDs != nil {
		entry.AgentIDs = req.AgentIDs
	}
	if req.SwarmIDs != nil {
		entry.SwarmIDs = req.SwarmIDs
	}
	if req.ModelSpecs != nil {
		entry.ModelSpecs = req.ModelSpecs
	}
	if req.ParamsID != "" {
		entry.ParamsID = req.ParamsID
	}
	if req.Status == "active" || req.Status == "paused" {
		entry.Status = req.Status
	}

	if err := s.store.SaveScheduledReport(entry); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, scheduledEntry(*entry))
}

func (s *Server) deleteScheduled(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteScheduledReport(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func scheduledEntry(e store.ScheduledReport) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"name":        e.Name,
		"schedule":    e.Schedule,
		"description": schedule.Describe(e.Schedule),
		"title":       e.Title,
		"prompt":      e.Prompt,
		"agent_ids":   e.AgentIDs,
		"swarm_ids":   e.SwarmIDs,
		"model_specs": e.ModelSpecs,
		"params_id":   e.ParamsID,
		"status":      e.Status,
		"next_run_at": e.NextRunAt,
		"last_run_at": e.LastRunAt,
		"last_status": e.LastStatus,
		"last_error":  e.LastError,
		"created_at":  e.CreatedAt,
	}
}

func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ListUsage()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []store.UsageStat{}
	}
	jsonResponse(w, stats)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	reports, _ := s.store.ListReports()
	jsonResponse(w, map[string]any{
		"version":   s.version,
		"uptime":    formatUptime(time.Since(s.startedAt)),
		"reports":   len(reports),
		"providers": len(s.catalog.List()),
		"agents":    len(s.registry.ListAgents()),
		"swarms":    len(s.registry.ListSwarms()),
	})
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
