package models

import (
	"time"

	"github.com/google/uuid"
)

// InspectionRecord is the immutable snapshot of a submitted draft, queued
// until the remote store has confirmed it. LocalID is the only identity used
// for local dedup and removal; the remote store assigns its own id later.
type InspectionRecord struct {
	LocalID        string          `json:"localId"`
	FullAddress    string          `json:"fullAddress"`
	Address        string          `json:"address"`
	Suffix         string          `json:"suffix"`
	Date           string          `json:"date"`
	Inspector      string          `json:"user"`
	InspectorID    string          `json:"userId"`
	WorkOrder      string          `json:"workOrder"`
	Items          []ChecklistItem `json:"items"`
	Photos         []Photo         `json:"photos"`
	Form           InspectionForm  `json:"form"`
	DeviationCount int             `json:"deviationCount"`
	Progress       int             `json:"progress"`
	CreatedAt      time.Time       `json:"timestamp"`
}

// QueueKey identifies the record in the local sync queue.
func (r *InspectionRecord) QueueKey() string { return r.LocalID }

// NewInspectionRecord folds a draft into an immutable record. Items and photos
// are copied by value; the draft can be reset right after.
func NewInspectionRecord(draft InspectionDraft, inspectorID, inspectorName string) *InspectionRecord {
	rec := &InspectionRecord{
		LocalID:        uuid.NewString(),
		FullAddress:    draft.FullAddress(),
		Address:        draft.Form.Address,
		Suffix:         draft.Form.Suffix,
		Date:           draft.Form.Date,
		Inspector:      inspectorName,
		InspectorID:    inspectorID,
		WorkOrder:      draft.Form.WorkOrder,
		Form:           draft.Form,
		DeviationCount: draft.DeviationCount(),
		Progress:       draft.Progress(),
		CreatedAt:      time.Now().UTC(),
	}
	rec.Items = append([]ChecklistItem(nil), draft.Items...)
	rec.Photos = append([]Photo(nil), draft.Photos...)
	return rec
}

// AuditEntry is one action-trail event. Audit entries are queued and synced
// independently of inspection records, with the same at-least-once discipline.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

func (e *AuditEntry) QueueKey() string { return e.ID }

func NewAuditEntry(userID, userName, action, details string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		UserName:  userName,
		Action:    action,
		Details:   details,
	}
}
