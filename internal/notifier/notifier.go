package notifier

import (
	"encoding/json"
	"log/slog"

	"github.com/openbuilders/wine-minter/internal/events"
	"github.com/openbuilders/wine-minter/internal/queue"
	"github.com/openbuilders/wine-minter/internal/types"
)

const (
	PatternMintStatus  = "mint-status"
	PatternRunComplete = "mint-run-complete"
)

type MintResultData struct {
	RunID      string           `json:"run_id"`
	Mode       string           `json:"mode"`
	WineID     string           `json:"wine_id"`
	WineryID   string           `json:"winery_id"`
	Status     types.MintStatus `json:"status"`
	TxID       string           `json:"tx_id,omitempty"`
	TokenRefID string           `json:"token_ref_id,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type RunCompleteData struct {
	RunID   string            `json:"run_id"`
	Mode    string            `json:"mode"`
	Summary types.MintSummary `json:"summary"`
	Error   string            `json:"error,omitempty"`
}

type Notification struct {
	Pattern string `json:"pattern"`
	Data    any    `json:"data"`
}

type Publisher interface {
	Publish(queue.QueueName, []byte) error
}

// Notifier forwards terminal mint results and run completions to the
// downstream services over RabbitMQ. Intermediate transitions are not sent.
type Notifier struct {
	queue     Publisher
	queueName queue.QueueName
	log       *slog.Logger
}

func New(publisher Publisher, queueName queue.QueueName) *Notifier {
	return &Notifier{
		queue:     publisher,
		queueName: queueName,
		log:       slog.With("component", "notifier"),
	}
}

func (n *Notifier) Notify(e events.Event) {
	var payload Notification

	switch {
	case e.Kind == events.KindStatus && e.Status != nil && e.Status.Status.IsTerminal():
		payload = Notification{
			Pattern: PatternMintStatus,
			Data: MintResultData{
				RunID:      e.RunID,
				Mode:       e.Mode,
				WineID:     e.Status.WineID,
				WineryID:   e.Status.WineryID,
				Status:     e.Status.Status,
				TxID:       e.Status.TxID,
				TokenRefID: e.Status.TokenRefID,
				Error:      e.Status.Error,
			},
		}
	case e.Kind == events.KindComplete:
		payload = Notification{
			Pattern: PatternRunComplete,
			Data: RunCompleteData{
				RunID:   e.RunID,
				Mode:    e.Mode,
				Summary: types.Summarize(e.Results),
				Error:   e.Error,
			},
		}
	default:
		return
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("error marshaling JSON", "pattern", payload.Pattern, "error", err)
		return
	}

	n.log.Debug("Sending notification", "payload", string(jsonData))

	if err := n.queue.Publish(n.queueName, jsonData); err != nil {
		n.log.Error(
			"couldn't enqueue message",
			"pattern", payload.Pattern,
			"run", e.RunID,
			"error", err,
		)
	}
}
