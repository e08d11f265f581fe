// Package scheduler fires scheduled reports. It polls the store for due
// entries rather than keeping timers in memory, so schedules survive
// restarts and edits take effect on the next poll.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/natsbus"
	"github.com/herbert256/swarmgen/internal/report"
	"github.com/herbert256/swarmgen/internal/schedule"
	"github.com/herbert256/swarmgen/internal/store"
)

type Scheduler struct {
	store        *store.Store
	orch         *report.Orchestrator
	reg          presetSource
	events       *natsbus.Client
	pollInterval time.Duration
}

// presetSource resolves a stored preset id into parameters at fire time.
type presetSource interface {
	GetParameterPreset(id string) *config.Parameters
}

func New(s *store.Store, orch *report.Orchestrator, reg presetSource, events *natsbus.Client, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:        s,
		orch:         orch,
		reg:          reg,
		events:       events,
		pollInterval: cfg.PollInterval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Scheduler) poll() {
	due, err := s.store.GetDueScheduledReports(time.Now())
	if err != nil {
		slog.Error("due scheduled reports lookup failed", "error", err)
		return
	}
	for _, entry := range due {
		s.fire(entry)
	}
}

func (s *Scheduler) fire(entry store.ScheduledReport) {
	slog.Info("firing scheduled report", "id", entry.ID, "name", entry.Name)

	req := report.GenerateRequest{
		Title:  entry.Title,
		Prompt: entry.Prompt,
		Selection: report.Selection{
			AgentIDs:   entry.AgentIDs,
			SwarmIDs:   entry.SwarmIDs,
			ModelSpecs: entry.ModelSpecs,
		},
	}
	if entry.ParamsID != "" {
		req.OverrideParams = s.reg.GetParameterPreset(entry.ParamsID)
	}

	rep, err := s.orch.GenerateReport(req)

	lastStatus := "success"
	var lastError string
	if err != nil {
		lastStatus = "error"
		lastError = err.Error()
		slog.Error("scheduled report failed to start", "id", entry.ID, "error", err)
	}

	nextRun := schedule.NextRun(entry.Schedule)

	if err := s.store.UpdateScheduledReportRun(entry.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("update scheduled report run failed", "id", entry.ID, "error", err)
	}

	s.publishFired(entry, lastStatus, rep)

	if nextRun == nil {
		slog.Info("retiring one-off scheduled report", "id", entry.ID, "name", entry.Name)
		if err := s.store.UpdateScheduledReportStatus(entry.ID, "completed"); err != nil {
			slog.Error("retire scheduled report failed", "id", entry.ID, "error", err)
		}
	}
}

func (s *Scheduler) publishFired(entry store.ScheduledReport, status string, rep *store.Report) {
	if s.events == nil {
		return
	}
	data := map[string]any{
		"id":     entry.ID,
		"name":   entry.Name,
		"status": status,
	}
	if rep != nil {
		data["report_id"] = rep.ID
	}
	event := map[string]any{
		"type":      "scheduled_report_fired",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	}
	if err := s.events.PublishJSON(natsbus.TopicEventsScheduled(entry.ID), event); err != nil {
		slog.Warn("publish scheduled event failed", "id", entry.ID, "error", err)
	}
}
