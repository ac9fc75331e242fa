// Package worker applies reload requests received over AMQP.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bmeutil/internal/amqp"
	applog "bmeutil/internal/log"
)

// Reloader drops cached results and reads the reference tables again.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadWorker handles reload messages. A request issued before the last
// successful reload started is already satisfied and is skipped.
type ReloadWorker struct {
	svc    Reloader
	logger *applog.Logger
	now    func() time.Time

	mu         sync.Mutex
	lastReload time.Time
}

func NewReloadWorker(svc Reloader, logger *applog.Logger) *ReloadWorker {
	if logger == nil {
		logger = applog.Default()
	}
	return &ReloadWorker{
		svc:    svc,
		logger: logger.WithComponent(applog.ComponentAMQP),
		now:    time.Now,
	}
}

// HandleReloadMessage processes a single reload message from AMQP. A returned
// error makes the consumer requeue the message.
func (w *ReloadWorker) HandleReloadMessage(ctx context.Context, msg *amqp.ReloadMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lastReload.IsZero() && msg.Timestamp.Before(w.lastReload) {
		w.logger.InfoContext(ctx, "Skipping reload request already covered",
			"reason", msg.Reason,
			"requested_at", msg.Timestamp,
			"last_reload", w.lastReload)
		return nil
	}

	started := w.now()
	w.logger.InfoContext(ctx, "Processing reload message",
		applog.FieldOperation, applog.OpReload,
		"message_id", msg.ID,
		"reason", msg.Reason,
		"requested_by", msg.RequestedBy)

	if err := w.svc.Reload(ctx); err != nil {
		return fmt.Errorf("reload reference data: %w", err)
	}
	w.lastReload = started
	return nil
}

// Run consumes reload messages until ctx is cancelled.
func (w *ReloadWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeReload(ctx, w.HandleReloadMessage)
}
