package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/herbert256/swarmgen/internal/catalog"
	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/invoke"
	"github.com/herbert256/swarmgen/internal/natsbus"
	"github.com/herbert256/swarmgen/internal/registry"
	"github.com/herbert256/swarmgen/internal/store"
)

// StoppedMessage is the sentinel recorded on every target a stop request
// catches before completion.
const StoppedMessage = "Not ready"

// Orchestrator runs report generations: it expands a selection into
// targets, fans out one invocation per target, and collects every outcome
// into the store. All state transitions go through guarded store updates,
// so a stop racing an in-flight completion resolves consistently no matter
// which write lands first.
type Orchestrator struct {
	store    *store.Store
	expander *Expander
	invoker  invoke.Invoker
	cost     *Calculator
	events   *natsbus.Client
	timeout  time.Duration

	mu          sync.RWMutex
	onCompleted []func(*store.Report)
}

func NewOrchestrator(s *store.Store, reg *registry.Registry, cat *catalog.Catalog, invoker invoke.Invoker, cost *Calculator, events *natsbus.Client, timeout time.Duration) *Orchestrator {
	res := NewResolver(reg, cat)
	return &Orchestrator{
		store:    s,
		expander: NewExpander(reg, cat, res),
		invoker:  invoker,
		cost:     cost,
		events:   events,
		timeout:  timeout,
	}
}

// OnCompleted registers a callback fired after a report's last target
// reaches a terminal state. Callbacks run on the generation goroutine.
func (o *Orchestrator) OnCompleted(fn func(*store.Report)) {
	o.mu.Lock()
	o.onCompleted = append(o.onCompleted, fn)
	o.mu.Unlock()
}

// GenerateRequest describes one report generation.
type GenerateRequest struct {
	Title          string             `json:"title"`
	Prompt         string             `json:"prompt"`
	Selection      Selection          `json:"selection"`
	OverrideParams *config.Parameters `json:"override_params,omitempty"`
}

// GenerateReport creates the report record and starts the fan-out in the
// background. The returned report snapshot has every target pending; errors
// are returned only for store failures before dispatch. A selection that
// expands to nothing still produces a report, with zero targets, which
// completes immediately.
func (o *Orchestrator) GenerateReport(req GenerateRequest) (*store.Report, error) {
	prompt, rapportText := ExtractDirective(req.Prompt)
	targets := o.expander.Expand(req.Selection, req.OverrideParams)

	rep := &store.Report{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Prompt:      prompt,
		RapportText: rapportText,
	}
	for _, t := range targets {
		rep.Agents = append(rep.Agents, store.ReportAgent{
			ReportID:  rep.ID,
			AgentID:   t.ID,
			AgentName: t.DisplayName,
			Provider:  t.Provider,
			Model:     t.Model,
			Status:    store.StatusPending,
		})
	}
	if err := o.store.CreateReport(rep); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	o.publishEvent(rep.ID, "report_created", map[string]any{
		"title":   rep.Title,
		"targets": len(targets),
	})
	slog.Info("report generation started", "report", rep.ID, "targets", len(targets))

	// Generation outlives the HTTP request that triggered it.
	go o.run(context.Background(), rep.ID, prompt, targets)

	return rep, nil
}

// Stop transitions every non-terminal target of the report to stopped.
// In-flight invocations keep running until they return; their results are
// discarded by the guarded completion writes. Returns the number of targets
// the stop caught.
func (o *Orchestrator) Stop(reportID string) (int64, error) {
	n, err := o.store.MarkStopped(reportID, StoppedMessage)
	if err != nil {
		return 0, fmt.Errorf("stop report: %w", err)
	}
	if n > 0 {
		slog.Info("report stopped", "report", reportID, "targets", n)
		o.publishEvent(reportID, "report_stopped", map[string]any{"stopped": n})
	}
	return n, nil
}

// Progress is a point-in-time snapshot of a running generation.
type Progress struct {
	ReportID  string              `json:"report_id"`
	Completed int                 `json:"completed"`
	Total     int                 `json:"total"`
	Done      bool                `json:"done"`
	Agents    []store.ReportAgent `json:"agents"`
}

// Progress reports how many targets are terminal, alongside the current
// per-target entries. Returns nil for an unknown report.
func (o *Orchestrator) Progress(reportID string) (*Progress, error) {
	rep, err := o.store.GetReport(reportID)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, nil
	}
	completed := 0
	for _, a := range rep.Agents {
		if a.Status.Terminal() {
			completed++
		}
	}
	return &Progress{
		ReportID:  reportID,
		Completed: completed,
		Total:     len(rep.Agents),
		Done:      completed == len(rep.Agents),
		Agents:    rep.Agents,
	}, nil
}

func (o *Orchestrator) run(ctx context.Context, reportID, prompt string, targets []invoke.Target) {
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t invoke.Target) {
			defer wg.Done()
			o.dispatch(ctx, reportID, prompt, t)
		}(t)
	}
	wg.Wait()

	if err := o.store.SetReportCompleted(reportID); err != nil {
		slog.Error("stamp report completion failed", "report", reportID, "error", err)
	}
	o.publishEvent(reportID, "report_completed", nil)
	slog.Info("report generation finished", "report", reportID)

	rep, err := o.store.GetReport(reportID)
	if err != nil || rep == nil {
		if err != nil {
			slog.Error("load finished report failed", "report", reportID, "error", err)
		}
		return
	}
	o.mu.RLock()
	listeners := o.onCompleted
	o.mu.RUnlock()
	for _, fn := range listeners {
		fn(rep)
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, reportID, prompt string, t invoke.Target) {
	started := time.Now()

	if t.APIKey == "" {
		// Fails straight from pending; the target never runs.
		o.fail(reportID, t, store.Failure{
			ErrorMessage: "no API key configured for provider " + t.Provider,
		})
		return
	}

	ok, err := o.store.MarkRunning(reportID, t.ID)
	if err != nil {
		slog.Error("mark running failed", "report", reportID, "target", t.ID, "error", err)
		return
	}
	if !ok {
		// Stopped before dispatch.
		return
	}
	o.publishEvent(reportID, "target_running", map[string]any{
		"target_id": t.ID,
		"name":      t.DisplayName,
	})

	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := o.invoker.Invoke(cctx, t, prompt)
	durationMs := time.Since(started).Milliseconds()

	if err != nil {
		f := store.Failure{ErrorMessage: err.Error(), DurationMs: durationMs}
		var apiErr *invoke.Error
		if errors.As(err, &apiErr) {
			f.ErrorMessage = apiErr.Message
			f.HTTPStatus = apiErr.HTTPStatus
			f.ResponseHeaders = apiErr.Headers
		}
		o.fail(reportID, t, f)
		return
	}

	usage := storeUsage(res.Usage)
	var cost float64
	if usage != nil {
		cost = o.cost.Cost(t.Provider, t.Model, *usage)
	}

	ok, err = o.store.MarkSuccess(reportID, t.ID, store.Outcome{
		ResponseBody:     res.Text,
		Usage:            usage,
		Cost:             cost,
		Citations:        res.Citations,
		SearchResults:    res.SearchResults,
		RelatedQuestions: res.RelatedQuestions,
		HTTPStatus:       res.HTTPStatus,
		ResponseHeaders:  res.Headers,
		DurationMs:       durationMs,
	})
	if err != nil {
		slog.Error("mark success failed", "report", reportID, "target", t.ID, "error", err)
		return
	}
	if !ok {
		// A stop landed while the call was in flight; the stop wins.
		slog.Info("late completion discarded", "report", reportID, "target", t.ID)
		return
	}

	if usage != nil {
		if err := o.store.AddUsage(t.Provider, t.Model, *usage, cost); err != nil {
			slog.Warn("record usage failed", "provider", t.Provider, "model", t.Model, "error", err)
		}
	}
	o.publishProgress(reportID, t.ID, store.StatusSuccess)
}

func (o *Orchestrator) fail(reportID string, t invoke.Target, f store.Failure) {
	ok, err := o.store.MarkError(reportID, t.ID, f)
	if err != nil {
		slog.Error("mark error failed", "report", reportID, "target", t.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	slog.Warn("target failed", "report", reportID, "target", t.ID, "error", f.ErrorMessage)
	o.publishProgress(reportID, t.ID, store.StatusError)
}

func (o *Orchestrator) publishProgress(reportID, targetID string, status store.Status) {
	completed, total, err := o.store.ReportProgress(reportID)
	if err != nil {
		slog.Warn("report progress lookup failed", "report", reportID, "error", err)
	}
	o.publishEvent(reportID, "target_completed", map[string]any{
		"target_id": targetID,
		"status":    status,
		"completed": completed,
		"total":     total,
	})
}

func (o *Orchestrator) publishEvent(reportID, eventType string, data map[string]any) {
	if o.events == nil {
		return
	}
	event := map[string]any{
		"type":      eventType,
		"report_id": reportID,
		"timestamp": time.Now().UTC(),
	}
	if data != nil {
		event["data"] = data
	}
	if err := o.events.PublishJSON(natsbus.TopicEventsReport(reportID), event); err != nil {
		slog.Warn("publish event failed", "type", eventType, "report", reportID, "error", err)
	}
}

func storeUsage(u *invoke.Usage) *store.TokenUsage {
	if u == nil {
		return nil
	}
	return &store.TokenUsage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
		APICost:      u.APICost,
	}
}
