package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Flabba2018/elkontroll-alver/middlewares"
	"github.com/Flabba2018/elkontroll-alver/models"
	"github.com/Flabba2018/elkontroll-alver/pendingsync"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type memBlobs struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memBlobs) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memBlobs) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type staticProber struct{ online bool }

func (p staticProber) Probe(ctx context.Context) bool { return p.online }

func newTestApp(t *testing.T, online bool) (*application, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	blobs := &memBlobs{data: map[string]string{}}
	ctx := context.Background()
	store := models.NewStore(logger, blobs)
	queue := pendingsync.NewDurableQueue[*models.InspectionRecord](ctx, blobs, logger, "pendingSync", 50)
	auditQueue := pendingsync.NewDurableQueue[*models.AuditEntry](ctx, blobs, logger, "auditQueue", 200)

	app := &application{
		logger:  logger,
		drafts:  models.NewDraftManager(),
		store:   store,
		queue:   queue,
		notices: &noticeBoard{},
		baseCtx: ctx,
	}
	app.monitor = pendingsync.NewMonitor(logger, staticProber{online: online}, nil, nil)
	app.monitor.SetOnline(ctx, online)
	app.audit = pendingsync.NewAuditSyncer(logger, auditQueue, store, app.monitor.Online)
	app.engine = pendingsync.NewEngine(logger, queue, store, app.monitor.Online, app.notices, nil, nil)

	r := gin.New()
	r.Use(middlewares.IdentityMiddleware())
	app.registerRoutes(r)
	return app, r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var inspectorHeaders = map[string]string{
	"X-User-Id":   "u-1",
	"X-User-Name": "Cato",
	"X-User-Role": "user",
}

func TestSubmitOfflineQueuesLocally(t *testing.T) {
	app, r := newTestApp(t, false)

	form := models.InspectionForm{Address: "Kyrkjevegen 5", Date: "2026-08-29"}
	if w := doJSON(t, r, http.MethodPut, "/api/draft/form", form, inspectorHeaders); w.Code != http.StatusNoContent {
		t.Fatalf("form: %d %s", w.Code, w.Body)
	}

	w := doJSON(t, r, http.MethodPost, "/api/draft/submit", nil, inspectorHeaders)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit: %d %s", w.Code, w.Body)
	}

	var resp struct {
		LocalID string `json:"localId"`
		Pending int    `json:"pending"`
		Notice  string `json:"notice"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Notice != "Lagra lokalt (offline)" {
		t.Fatalf("notice = %q", resp.Notice)
	}
	if resp.Pending != 1 || app.queue.Len() != 1 {
		t.Fatalf("pending = %d, queue = %d", resp.Pending, app.queue.Len())
	}

	rec, ok := app.queue.Find(resp.LocalID)
	if !ok {
		t.Fatal("submitted record not in queue")
	}
	if rec.FullAddress != "Kyrkjevegen 5" || rec.Inspector != "Cato" || rec.DeviationCount != 0 {
		t.Fatalf("record = %+v", rec)
	}

	// the draft was reset on submit
	snap := app.drafts.Snapshot("u-1")
	if snap.Form.Address != "" {
		t.Fatalf("draft not reset: %+v", snap.Form)
	}
}

func TestSubmitRequiresAddress(t *testing.T) {
	app, r := newTestApp(t, false)
	w := doJSON(t, r, http.MethodPost, "/api/draft/submit", nil, inspectorHeaders)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
	if app.queue.Len() != 0 {
		t.Fatal("empty draft was queued")
	}
}

func TestSubmitRejectsViewer(t *testing.T) {
	_, r := newTestApp(t, false)
	headers := map[string]string{"X-User-Id": "u-9", "X-User-Name": "Gjest", "X-User-Role": "viewer"}
	w := doJSON(t, r, http.MethodPost, "/api/draft/submit", nil, headers)
	if w.Code != http.StatusForbidden {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestMutationsRequireIdentity(t *testing.T) {
	_, r := newTestApp(t, false)
	w := doJSON(t, r, http.MethodPost, "/api/draft/submit", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestToggleEndpoint(t *testing.T) {
	_, r := newTestApp(t, false)

	w := doJSON(t, r, http.MethodPost, "/api/draft/items/1.1/toggle", gin.H{"op": "na"}, inspectorHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", w.Code, w.Body)
	}
	var res models.ToggleResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Item.NotApplicable || res.Item.Comment != "IA" {
		t.Fatalf("item = %+v", res.Item)
	}
	if res.AdvanceToID != "1.2" {
		t.Fatalf("AdvanceToID = %q", res.AdvanceToID)
	}

	// unknown ops are rejected by binding, not dispatched
	if w := doJSON(t, r, http.MethodPost, "/api/draft/items/1.1/toggle", gin.H{"op": "explode"}, inspectorHeaders); w.Code != http.StatusBadRequest {
		t.Fatalf("bad op: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/draft/items/99.99/toggle", gin.H{"op": "check"}, inspectorHeaders); w.Code != http.StatusNotFound {
		t.Fatalf("bad item: %d", w.Code)
	}
}

func TestPhotoEndpoints(t *testing.T) {
	app, r := newTestApp(t, false)

	w := doJSON(t, r, http.MethodPost, "/api/draft/photos", gin.H{"type": "Sikringsskap", "data": "data:image/jpeg;base64,AAAA"}, inspectorHeaders)
	if w.Code != http.StatusCreated {
		t.Fatalf("add photo: %d %s", w.Code, w.Body)
	}
	var photo models.Photo
	if err := json.Unmarshal(w.Body.Bytes(), &photo); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// unknown photo kinds are rejected by validation
	if w := doJSON(t, r, http.MethodPost, "/api/draft/photos", gin.H{"type": "Selfie", "data": "x"}, inspectorHeaders); w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodDelete, "/api/draft/photos/"+photo.ID, nil, inspectorHeaders); w.Code != http.StatusNoContent {
		t.Fatalf("remove photo: %d", w.Code)
	}
	if got := len(app.drafts.Snapshot("u-1").Photos); got != 0 {
		t.Fatalf("photos = %d", got)
	}
}

func TestSyncTriggerOffline(t *testing.T) {
	_, r := newTestApp(t, false)
	w := doJSON(t, r, http.MethodPost, "/api/sync/trigger", nil, inspectorHeaders)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestSyncTriggerOnlineWithoutBackend(t *testing.T) {
	// online but the database dial has not completed yet
	_, r := newTestApp(t, true)
	w := doJSON(t, r, http.MethodPost, "/api/sync/trigger", nil, inspectorHeaders)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestQueueEndpoints(t *testing.T) {
	app, r := newTestApp(t, false)

	form := models.InspectionForm{Address: "Storgata 2"}
	doJSON(t, r, http.MethodPut, "/api/draft/form", form, inspectorHeaders)
	w := doJSON(t, r, http.MethodPost, "/api/draft/submit", nil, inspectorHeaders)
	var resp struct {
		LocalID string `json:"localId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w := doJSON(t, r, http.MethodGet, "/api/queue", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("queue list: %d", w.Code)
	}

	// a queued record is readable before it ever reaches the remote store
	if w := doJSON(t, r, http.MethodGet, "/api/inspections/"+resp.LocalID, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("local detail: %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodDelete, "/api/queue/"+resp.LocalID, nil, inspectorHeaders); w.Code != http.StatusNoContent {
		t.Fatalf("queue remove: %d", w.Code)
	}
	if app.queue.Len() != 0 {
		t.Fatal("record still queued after removal")
	}
	if w := doJSON(t, r, http.MethodDelete, "/api/queue/"+resp.LocalID, nil, inspectorHeaders); w.Code != http.StatusNotFound {
		t.Fatalf("second remove: %d", w.Code)
	}
}

func TestInspectionsServedFromCacheWhenOffline(t *testing.T) {
	_, r := newTestApp(t, false)
	w := doJSON(t, r, http.MethodGet, "/api/inspections", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var resp struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "cache" {
		t.Fatalf("source = %q", resp.Source)
	}
}

func TestUsersFallBackToSeededList(t *testing.T) {
	_, r := newTestApp(t, false)
	w := doJSON(t, r, http.MethodGet, "/api/users", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var resp struct {
		Users  []models.User `json:"users"`
		Source string        `json:"source"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "cache" || len(resp.Users) == 0 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	_, r := newTestApp(t, false)
	if w := doJSON(t, r, http.MethodPost, "/api/users", gin.H{"name": "Ny", "role": "user"}, inspectorHeaders); w.Code != http.StatusForbidden {
		t.Fatalf("add user as non-admin: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, "/api/inspections", nil, inspectorHeaders); w.Code != http.StatusForbidden {
		t.Fatalf("delete all as non-admin: %d", w.Code)
	}
}

func TestChecklistHandler(t *testing.T) {
	_, r := newTestApp(t, false)
	w := doJSON(t, r, http.MethodGet, "/api/checklist", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var resp struct {
		Categories []models.Category              `json:"categories"`
		Items      []models.ChecklistItemTemplate `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) != 8 || len(resp.Items) == 0 {
		t.Fatalf("categories=%d items=%d", len(resp.Categories), len(resp.Items))
	}
}
