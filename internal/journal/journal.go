// Package journal keeps an optional sqlite log of alert transitions.
package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/google/uuid"
)

// Recorder persists alert transitions.
type Recorder interface {
	Record(ctx context.Context, e alert.Event) error
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Entry is one journaled transition, newest first from Recent.
type Entry struct {
	ID         string
	Kind       string
	Name       string
	Active     bool
	Value      float64
	Threshold  float64
	OccurredAt time.Time
}

// Sink returns an alert subscriber that records every event under its own
// timeout, detached from any caller context. Failures are logged.
func Sink(rec Recorder, timeout time.Duration, log logger.Logger) func(alert.Event) {
	return func(e alert.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := rec.Record(ctx, e); err != nil {
			log.Warn().Err(err).Str("alert", string(e.Name())).Msg("Failed to journal alert")
		}
	}
}

// Events converts entries as returned by Recent back into alert events,
// oldest first. Entries of an unknown kind are skipped.
func Events(entries []Entry) []alert.Event {
	events := make([]alert.Event, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		kind, ok := alert.ParseKind(e.Kind)
		if !ok {
			continue
		}
		id, _ := uuid.Parse(e.ID)
		events = append(events, alert.Event{
			ID:        id,
			Kind:      kind,
			Active:    e.Active,
			Value:     e.Value,
			Threshold: e.Threshold,
			Time:      e.OccurredAt,
		})
	}

	return events
}

type service struct {
	repo *repository
}

// No-op implementation
type noopRecorder struct{}

func New(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()
	log = log.With("journal")

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Alert journal disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := newRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, e alert.Event) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.record(e); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	return s.repo.recent(ctx, n)
}

func (s *service) Close() error {
	return s.repo.close()
}

func (*noopRecorder) Record(context.Context, alert.Event) error {
	return nil
}

func (*noopRecorder) Recent(context.Context, int) ([]Entry, error) {
	return nil, nil
}

func (*noopRecorder) Close() error {
	return nil
}
