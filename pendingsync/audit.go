package pendingsync

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/Flabba2018/elkontroll-alver/config"
	"github.com/Flabba2018/elkontroll-alver/models"
	"github.com/sirupsen/logrus"
)

// AuditWriter is the slice of the remote store the audit syncer needs.
type AuditWriter interface {
	SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	Ready() bool
}

// AuditSyncer queues action-trail events locally and flushes them with the
// same at-least-once, remove-on-confirmed-write discipline as inspection
// records. It is fully independent of the inspection engine: no ordering is
// guaranteed between an audit event and the record it describes.
type AuditSyncer struct {
	logger   *logrus.Logger
	queue    *DurableQueue[*models.AuditEntry]
	store    AuditWriter
	online   func() bool
	draining atomic.Bool
}

func NewAuditSyncer(logger *logrus.Logger, queue *DurableQueue[*models.AuditEntry], store AuditWriter, online func() bool) *AuditSyncer {
	return &AuditSyncer{
		logger: logger,
		queue:  queue,
		store:  store,
		online: online,
	}
}

// Record queues one audit event. It never blocks on the network; the entry is
// delivered by the next Flush.
func (a *AuditSyncer) Record(ctx context.Context, userID, userName, action, details string) {
	a.queue.Enqueue(ctx, models.NewAuditEntry(userID, userName, action, details))
}

// Flush drains queued audit events, oldest first. Failed entries stay queued
// for the next flush; there is no user-facing summary for audit traffic.
func (a *AuditSyncer) Flush(ctx context.Context) {
	if !a.online() || !a.store.Ready() {
		return
	}
	if !a.draining.CompareAndSwap(false, true) {
		return
	}
	defer a.draining.Store(false)

	snapshot := a.queue.List()
	for i := len(snapshot) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		entry := snapshot[i]
		if err := a.store.SaveAuditEntry(ctx, entry); err != nil {
			config.LogError(a.logger, "pendingsync", "Flush", "audit-synk feila", entry.ID, err)
			if errors.Is(err, models.ErrBackendUnavailable) {
				return
			}
			continue
		}
		a.queue.Remove(ctx, entry.ID)
	}
}

func (a *AuditSyncer) Len() int {
	return a.queue.Len()
}
