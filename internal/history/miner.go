package history

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

// ModeHistory is the extracted history of one failure mode.
type ModeHistory struct {
	FailureModeID string               `json:"failureModeId"`
	Observations  []models.Observation `json:"observations"`
	Summary       Summary              `json:"summary"`
	LastFailure   time.Time            `json:"lastFailure"`
}

// Store abstracts persistence for extracted histories.
type Store interface {
	StoreHistories(ctx context.Context, histories []ModeHistory) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, histories []ModeHistory) error

// StoreHistories implements Store.
func (f StoreFunc) StoreHistories(ctx context.Context, histories []ModeHistory) error {
	return f(ctx, histories)
}

// Miner splits a mixed failure log into per failure mode histories.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine groups events by failure mode and extracts each group, most frequent mode first.
func (m *Miner) Mine(ctx context.Context, events []FailureEvent, windowStart, windowEnd time.Time, unit utils.TimeUnit) ([]ModeHistory, error) {
	if err := checkWindow(windowStart, windowEnd, unit); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	groups := make(map[string][]FailureEvent)
	for _, ev := range events {
		id := ev.FailureModeID
		if id == "" {
			id = "unknown"
		}
		groups[id] = append(groups[id], ev)
	}

	histories := make([]ModeHistory, 0, len(groups))
	for id, group := range groups {
		obs, err := Extract(group, windowStart, windowEnd, unit)
		if err != nil {
			return nil, err
		}
		summary, err := Summarize(group, windowStart, windowEnd, unit)
		if err != nil {
			return nil, err
		}
		if summary.Failures == 0 {
			continue
		}
		h := ModeHistory{FailureModeID: id, Observations: obs, Summary: summary}
		for _, ev := range group {
			if ev.FailedAt.After(h.LastFailure) && !ev.FailedAt.After(windowEnd) {
				h.LastFailure = ev.FailedAt
			}
		}
		histories = append(histories, h)
	}

	sort.Slice(histories, func(i, j int) bool {
		if histories[i].Summary.Failures != histories[j].Summary.Failures {
			return histories[i].Summary.Failures > histories[j].Summary.Failures
		}
		return histories[i].FailureModeID < histories[j].FailureModeID
	})

	if m.store != nil && len(histories) > 0 {
		if err := m.store.StoreHistories(ctx, histories); err != nil {
			m.logger.Warn("history store failed", slog.Any("error", err))
		}
	}

	return histories, nil
}
