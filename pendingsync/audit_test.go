package pendingsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Flabba2018/elkontroll-alver/models"
)

type fakeAuditWriter struct {
	mu      sync.Mutex
	saved   []string
	failFor map[string]error
	ready   bool
}

func (f *fakeAuditWriter) Ready() bool { return f.ready }

func (f *fakeAuditWriter) SaveAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[entry.Action]; err != nil {
		return err
	}
	f.saved = append(f.saved, entry.Action)
	return nil
}

func newAuditQueue(store BlobStore) *DurableQueue[*models.AuditEntry] {
	return NewDurableQueue[*models.AuditEntry](context.Background(), store, testLogger(), "auditQueue", 200)
}

func TestAuditFlushRemovesConfirmed(t *testing.T) {
	ctx := context.Background()
	q := newAuditQueue(newMemStore())
	writer := &fakeAuditWriter{ready: true, failFor: map[string]error{}}
	a := NewAuditSyncer(testLogger(), q, writer, alwaysOnline)

	a.Record(ctx, "u-1", "Cato", "inspection_submitted", "Storgata 1")
	a.Record(ctx, "u-1", "Cato", "inspection_deleted", "Storgata 2")
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}

	a.Flush(ctx)
	if a.Len() != 0 {
		t.Fatalf("Len = %d after flush, want 0", a.Len())
	}
	if len(writer.saved) != 2 || writer.saved[0] != "inspection_submitted" {
		t.Fatalf("saved = %v, want oldest first", writer.saved)
	}
}

func TestAuditFlushKeepsFailedEntries(t *testing.T) {
	ctx := context.Background()
	q := newAuditQueue(newMemStore())
	writer := &fakeAuditWriter{ready: true, failFor: map[string]error{
		"user_added": errors.New("permission denied"),
	}}
	a := NewAuditSyncer(testLogger(), q, writer, alwaysOnline)

	a.Record(ctx, "u-1", "Cato", "user_added", "Ny montør")
	a.Record(ctx, "u-1", "Cato", "inspection_submitted", "Storgata 1")

	a.Flush(ctx)
	if a.Len() != 1 {
		t.Fatalf("Len = %d, want the failed entry kept", a.Len())
	}
	if len(writer.saved) != 1 || writer.saved[0] != "inspection_submitted" {
		t.Fatalf("saved = %v", writer.saved)
	}

	// once the remote recovers, the next flush delivers the leftover
	delete(writer.failFor, "user_added")
	a.Flush(ctx)
	if a.Len() != 0 {
		t.Fatalf("Len = %d after recovery flush, want 0", a.Len())
	}
}

func TestAuditFlushOfflineIsNoop(t *testing.T) {
	ctx := context.Background()
	q := newAuditQueue(newMemStore())
	writer := &fakeAuditWriter{ready: true, failFor: map[string]error{}}
	a := NewAuditSyncer(testLogger(), q, writer, func() bool { return false })

	a.Record(ctx, "u-1", "Cato", "login", "")
	a.Flush(ctx)
	if len(writer.saved) != 0 {
		t.Fatal("audit write attempted while offline")
	}
	if a.Len() != 1 {
		t.Fatalf("Len = %d, entry must stay queued", a.Len())
	}
}
