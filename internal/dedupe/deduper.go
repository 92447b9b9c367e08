package dedupe

import (
	"context"

	"gitlab.com/nevasik7/alerting/logger"
)

// Deduper remembers Telegram update ids so a redelivered update is answered once
type Deduper interface {
	// if alreadySeen=true -> duplicate, update can be skipped
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)
}

// Fallback asks primary first and switches to secondary for the ids primary failed on
type Fallback struct {
	log       logger.Logger
	primary   Deduper
	secondary Deduper
}

func NewFallback(log logger.Logger, primary, secondary Deduper) *Fallback {
	return &Fallback{log: log, primary: primary, secondary: secondary}
}

func (f *Fallback) Seen(ctx context.Context, id string) (bool, error) {
	seen, err := f.primary.Seen(ctx, id)
	if err == nil {
		return seen, nil
	}

	f.log.Warnf("Primary deduper failed for id=%s, using fallback, error=%v", id, err)

	return f.secondary.Seen(ctx, id)
}
