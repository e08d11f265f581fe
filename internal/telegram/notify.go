// Package telegram pushes report completion notices to a configured chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/store"
)

const maxMessageLen = 4096

type Notifier struct {
	bot    *telego.Bot
	chatID int64
}

func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram token and chat_id are required")
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

// NotifyCompleted sends a per-target summary for a finished report. Failures
// are logged, never propagated; notification is best effort.
func (n *Notifier) NotifyCompleted(rep *store.Report) {
	text := formatSummary(rep)
	for _, chunk := range chunkMessage(text, maxMessageLen) {
		_, err := n.bot.SendMessage(context.Background(), tu.Message(tu.ID(n.chatID), chunk))
		if err != nil {
			slog.Error("telegram notification failed", "report", rep.ID, "error", err)
			return
		}
	}
}

func formatSummary(rep *store.Report) string {
	var b strings.Builder

	title := rep.Title
	if title == "" {
		title = rep.ID
	}
	fmt.Fprintf(&b, "Report finished: %s\n", title)

	var ok, failed, stopped int
	var totalCost float64
	for _, a := range rep.Agents {
		switch a.Status {
		case store.StatusSuccess:
			ok++
		case store.StatusError:
			failed++
		case store.StatusStopped:
			stopped++
		}
		if a.Cost != nil {
			totalCost += *a.Cost
		}
	}
	fmt.Fprintf(&b, "%d succeeded, %d failed, %d stopped\n", ok, failed, stopped)
	if totalCost > 0 {
		fmt.Fprintf(&b, "Estimated cost: $%.4f\n", totalCost)
	}

	for _, a := range rep.Agents {
		switch a.Status {
		case store.StatusError:
			fmt.Fprintf(&b, "\n%s (%s/%s): %s", a.AgentName, a.Provider, a.Model, a.ErrorMessage)
		case store.StatusStopped:
			fmt.Fprintf(&b, "\n%s (%s/%s): stopped", a.AgentName, a.Provider, a.Model)
		}
	}

	return b.String()
}
