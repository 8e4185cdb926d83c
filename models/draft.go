package models

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InspectionForm holds the scalar fields of an in-progress inspection.
// Measurement values are operator-entered free text (units and notes vary).
type InspectionForm struct {
	Address         string `json:"address"`
	Suffix          string `json:"suffix"`
	WorkOrder       string `json:"workOrder"`
	Date            string `json:"date"`
	Voltage         string `json:"voltage"`
	Insulation      string `json:"insulation"`
	Continuity      string `json:"continuity"`
	RCD             string `json:"rcd"`
	Summary         string `json:"summary"`
	ErrorsFixed     bool   `json:"errorsFixed"`
	Maintenance     bool   `json:"maintenance"`
	SentInstaller   bool   `json:"sentInstaller"`
	IsExternal      bool   `json:"isExternal"`
	ExternalFirma   string `json:"externalFirma"`
	ExternalContact string `json:"externalContact"`
}

type Photo struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Data       string    `json:"data"`
	CapturedAt time.Time `json:"capturedAt"`
}

// InspectionDraft is the working state of one checklist session. It is owned
// exclusively by the inspector's session and replaced wholesale on reset.
type InspectionDraft struct {
	Form   InspectionForm  `json:"form"`
	Items  []ChecklistItem `json:"items"`
	Photos []Photo         `json:"photos"`
}

func NewInspectionDraft() *InspectionDraft {
	return &InspectionDraft{
		Form: InspectionForm{
			Date: time.Now().Format("2006-01-02"),
		},
		Items: NewChecklist(),
	}
}

// FullAddress combines street address and unit suffix the way the report
// header prints it.
func (d *InspectionDraft) FullAddress() string {
	if d.Form.Suffix != "" {
		return d.Form.Address + " - " + d.Form.Suffix
	}
	return d.Form.Address
}

// Progress is the percentage of checked items, rounded to nearest.
func (d *InspectionDraft) Progress() int {
	if len(d.Items) == 0 {
		return 0
	}
	checked := 0
	for i := range d.Items {
		if d.Items[i].Checked {
			checked++
		}
	}
	return int(float64(checked)/float64(len(d.Items))*100 + 0.5)
}

func (d *InspectionDraft) DeviationCount() int {
	count := 0
	for i := range d.Items {
		if d.Items[i].Deviation {
			count++
		}
	}
	return count
}

func (d *InspectionDraft) item(itemID string) *ChecklistItem {
	for i := range d.Items {
		if d.Items[i].ID == itemID {
			return &d.Items[i]
		}
	}
	return nil
}

func (d *InspectionDraft) AddPhoto(photoType, data string) Photo {
	photo := Photo{
		ID:         uuid.NewString(),
		Type:       photoType,
		Data:       data,
		CapturedAt: time.Now(),
	}
	d.Photos = append(d.Photos, photo)
	return photo
}

func (d *InspectionDraft) RemovePhoto(photoID string) {
	next := d.Photos[:0]
	for _, p := range d.Photos {
		if p.ID != photoID {
			next = append(next, p)
		}
	}
	d.Photos = next
}

// ToggleOp enumerates the checklist item commands the UI can issue.
type ToggleOp string

const (
	ToggleOpChecked       ToggleOp = "check"
	ToggleOpNotApplicable ToggleOp = "na"
	ToggleOpDeviation     ToggleOp = "deviation"
	ToggleOpCorrected     ToggleOp = "corrected"
	ToggleOpInstaller     ToggleOp = "installer"
)

// ToggleResult reports the item state after a command, plus the focus hint the
// IA toggle emits so the UI can jump to the next checkpoint.
type ToggleResult struct {
	Item        ChecklistItem `json:"item"`
	AdvanceToID string        `json:"advanceToId,omitempty"`
}

var (
	ErrUnknownItem     = errors.New("unknown checklist item")
	ErrUnknownToggleOp = errors.New("unknown toggle operation")
)

// toggleHandlers is the command dispatch table. Each op maps to a typed
// handler; the bool result is the advance-focus hint.
var toggleHandlers = map[ToggleOp]func(*ChecklistItem) bool{
	ToggleOpChecked: func(item *ChecklistItem) bool {
		item.ToggleChecked()
		return false
	},
	ToggleOpNotApplicable: func(item *ChecklistItem) bool {
		return item.ToggleNotApplicable()
	},
	ToggleOpDeviation: func(item *ChecklistItem) bool {
		item.ToggleDeviation()
		return false
	},
	ToggleOpCorrected: func(item *ChecklistItem) bool {
		item.ToggleCorrected()
		return false
	},
	ToggleOpInstaller: func(item *ChecklistItem) bool {
		item.ToggleInstaller()
		return false
	},
}

// Toggle applies one command to the named item.
func (d *InspectionDraft) Toggle(itemID string, op ToggleOp) (ToggleResult, error) {
	item := d.item(itemID)
	if item == nil {
		return ToggleResult{}, ErrUnknownItem
	}
	handler, ok := toggleHandlers[op]
	if !ok {
		return ToggleResult{}, ErrUnknownToggleOp
	}

	advance := handler(item)

	result := ToggleResult{Item: *item}
	if advance {
		for i := range d.Items {
			if d.Items[i].ID == itemID && i+1 < len(d.Items) {
				result.AdvanceToID = d.Items[i+1].ID
				break
			}
		}
	}
	return result, nil
}

// SetItemComment records a user comment edit on the named item.
func (d *InspectionDraft) SetItemComment(itemID string, comment string) error {
	item := d.item(itemID)
	if item == nil {
		return ErrUnknownItem
	}
	item.SetComment(comment)
	return nil
}

// DraftManager holds the active draft per inspector. It is owned by the
// application root and passed to the handlers; there is no package-level
// session state.
type DraftManager struct {
	mu     sync.Mutex
	drafts map[string]*InspectionDraft
}

func NewDraftManager() *DraftManager {
	return &DraftManager{drafts: map[string]*InspectionDraft{}}
}

// Reset replaces the inspector's draft wholesale.
func (m *DraftManager) Reset(inspectorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[inspectorID] = NewInspectionDraft()
}

// The mutating wrappers below keep all draft writes behind one lock, so the
// HTTP layer never touches a draft concurrently with itself.

func (m *DraftManager) Toggle(inspectorID, itemID string, op ToggleOp) (ToggleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draftLocked(inspectorID).Toggle(itemID, op)
}

func (m *DraftManager) SetItemComment(inspectorID, itemID, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draftLocked(inspectorID).SetItemComment(itemID, comment)
}

func (m *DraftManager) UpdateForm(inspectorID string, form InspectionForm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draftLocked(inspectorID).Form = form
}

func (m *DraftManager) AddPhoto(inspectorID, photoType, data string) Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draftLocked(inspectorID).AddPhoto(photoType, data)
}

func (m *DraftManager) RemovePhoto(inspectorID, photoID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draftLocked(inspectorID).RemovePhoto(photoID)
}

// Snapshot returns a deep-enough copy for read-only rendering.
func (m *DraftManager) Snapshot(inspectorID string) InspectionDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft := m.draftLocked(inspectorID)
	snap := InspectionDraft{Form: draft.Form}
	snap.Items = append([]ChecklistItem(nil), draft.Items...)
	snap.Photos = append([]Photo(nil), draft.Photos...)
	return snap
}

func (m *DraftManager) draftLocked(inspectorID string) *InspectionDraft {
	draft, ok := m.drafts[inspectorID]
	if !ok {
		draft = NewInspectionDraft()
		m.drafts[inspectorID] = draft
	}
	return draft
}
