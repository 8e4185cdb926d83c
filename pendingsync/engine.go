package pendingsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Flabba2018/elkontroll-alver/config"
	"github.com/Flabba2018/elkontroll-alver/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// ErrOffline is returned when a forced sync is requested without connectivity.
var ErrOffline = errors.New("ingen nettverkstilkopling")

// recordTimeout bounds the full remote write of one record, all sub-steps
// included.
const recordTimeout = 20 * time.Second

const drainLockKey = "elkontroll_drainlock"

// SyncError records one failed record in a drain pass.
type SyncError struct {
	LocalID string `json:"localId"`
	Address string `json:"address"`
	Message string `json:"message"`
}

// RemoteWriter is the slice of the remote store the engine needs.
type RemoteWriter interface {
	SaveInspection(ctx context.Context, rec *models.InspectionRecord) (string, error)
	Ready() bool
}

// Notifier receives the single summary message of each completed or cancelled
// drain pass.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Status is a point-in-time view of the engine for the sync panel.
type Status struct {
	Draining    bool        `json:"draining"`
	Pending     int         `json:"pending"`
	LastSummary string      `json:"lastSummary,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
	LastErrors  []SyncError `json:"lastErrors,omitempty"`
	LastPass    *time.Time  `json:"lastPass,omitempty"`
}

// Engine drains the pending queue against the remote store. At most one pass
// runs at a time; a Trigger while draining is a silent no-op. Per-record
// failures are recorded and skipped, so one bad record never blocks the rest.
type Engine struct {
	logger *logrus.Logger
	queue  *DurableQueue[*models.InspectionRecord]
	store  RemoteWriter
	online func() bool
	notify Notifier

	// locker is optional. The atomic below is authoritative inside one
	// process; the lock extends the single-pass guarantee across replicas
	// sharing a local store, best effort only.
	locker *redislock.Client

	// onSynced runs after a pass that confirmed at least one record,
	// typically to refresh the cached remote inspection list.
	onSynced func(ctx context.Context)

	draining  atomic.Bool
	cancelled atomic.Bool

	mu          sync.Mutex
	lastSummary string
	lastErrors  []SyncError
	lastPass    time.Time
}

func NewEngine(
	logger *logrus.Logger,
	queue *DurableQueue[*models.InspectionRecord],
	store RemoteWriter,
	online func() bool,
	notify Notifier,
	locker *redislock.Client,
	onSynced func(ctx context.Context),
) *Engine {
	if notify == nil {
		notify = NotifierFunc(func(string) {})
	}
	return &Engine{
		logger:   logger,
		queue:    queue,
		store:    store,
		online:   online,
		notify:   notify,
		locker:   locker,
		onSynced: onSynced,
	}
}

// Trigger starts one drain pass. force marks an operator-requested retry: it
// runs even when the queue is empty and surfaces the offline condition instead
// of returning silently. Connectivity-edge and post-submit triggers pass
// force=false and are silent no-ops when there is nothing to do.
func (e *Engine) Trigger(ctx context.Context, force bool) error {
	if !e.online() {
		if force {
			e.notify.Notify("Kan ikkje synke: ingen nettverkstilkopling")
		}
		return ErrOffline
	}
	if !e.store.Ready() {
		if force {
			e.notify.Notify("Kan ikkje synke: fjernlager ikkje aktivt")
		}
		return models.ErrBackendUnavailable
	}
	if !force && e.queue.Len() == 0 {
		return nil
	}
	if !e.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer e.draining.Store(false)
	e.cancelled.Store(false)

	if e.locker != nil {
		lock, err := e.locker.Obtain(ctx, drainLockKey, time.Minute, nil)
		switch {
		case err == nil:
			defer func() {
				if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					config.LogError(e.logger, "pendingsync", "Trigger", "release drain lock", nil, err)
				}
			}()
		case errors.Is(err, redislock.ErrNotObtained):
			// another replica is draining the shared queue
			return nil
		default:
			config.LogError(e.logger, "pendingsync", "Trigger", "obtain drain lock", nil, err)
		}
	}

	e.drain(ctx)
	return nil
}

// drain processes a snapshot of the queue oldest-submitted first, so records
// reach the remote store in submission order. The queue stores most-recent
// first; iteration therefore runs back to front.
func (e *Engine) drain(ctx context.Context) {
	snapshot := e.queue.List()
	synced := 0
	var syncErrors []SyncError

	for i := len(snapshot) - 1; i >= 0; i-- {
		if e.cancelled.Load() || ctx.Err() != nil {
			break
		}
		rec := snapshot[i]

		rctx, cancel := context.WithTimeout(ctx, recordTimeout)
		_, err := e.store.SaveInspection(rctx, rec)
		cancel()

		if err != nil {
			syncErrors = append(syncErrors, SyncError{
				LocalID: rec.LocalID,
				Address: rec.FullAddress,
				Message: err.Error(),
			})
			config.LogError(e.logger, "pendingsync", "drain", "synk feila", rec.LocalID, err)
			if errors.Is(err, models.ErrBackendUnavailable) {
				break
			}
			continue
		}
		e.queue.Remove(ctx, rec.LocalID)
		synced++
	}

	cancelled := e.cancelled.Load() || ctx.Err() != nil

	var summary string
	switch {
	case cancelled:
		summary = "Synk stoppa"
	case synced > 0 && len(syncErrors) > 0:
		summary = fmt.Sprintf("Synkroniserte %d kontroll(ar). Synk feila (%d): %s",
			synced, len(syncErrors), syncErrors[0].Message)
	case len(syncErrors) > 0:
		summary = fmt.Sprintf("Synk feila (%d). Prøv igjen", len(syncErrors))
	case synced > 0:
		summary = fmt.Sprintf("Synkroniserte %d kontroll(ar)", synced)
	}

	e.mu.Lock()
	e.lastSummary = summary
	e.lastErrors = syncErrors
	e.lastPass = time.Now()
	e.mu.Unlock()

	if summary != "" {
		e.notify.Notify(summary)
	}
	if synced > 0 && e.onSynced != nil {
		e.onSynced(ctx)
	}
}

// Cancel requests a cooperative stop. The record in flight finishes; the pass
// ends at the next record boundary.
func (e *Engine) Cancel() {
	if e.draining.Load() {
		e.cancelled.Store(true)
	}
}

func (e *Engine) Draining() bool {
	return e.draining.Load()
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := Status{
		Draining:    e.draining.Load(),
		Pending:     e.queue.Len(),
		LastSummary: e.lastSummary,
		LastErrors:  append([]SyncError(nil), e.lastErrors...),
	}
	if len(e.lastErrors) > 0 {
		status.LastError = e.lastErrors[0].Message
	}
	if !e.lastPass.IsZero() {
		t := e.lastPass
		status.LastPass = &t
	}
	return status
}
