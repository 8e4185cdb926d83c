package main

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/Flabba2018/elkontroll-alver/middlewares"
	"github.com/Flabba2018/elkontroll-alver/models"
	"github.com/Flabba2018/elkontroll-alver/pendingsync"
	"github.com/Flabba2018/elkontroll-alver/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// application bundles the long-lived components. Everything is owned here and
// handed down explicitly; no package-level state.
type application struct {
	logger  *logrus.Logger
	drafts  *models.DraftManager
	store   *models.Store
	queue   *pendingsync.DurableQueue[*models.InspectionRecord]
	engine  *pendingsync.Engine
	monitor *pendingsync.Monitor
	audit   *pendingsync.AuditSyncer
	notices *noticeBoard

	// baseCtx outlives individual requests; background drains run on it so a
	// closed client connection cannot abort a pass mid-record.
	baseCtx context.Context
}

func (app *application) baseContext() context.Context {
	if app.baseCtx != nil {
		return app.baseCtx
	}
	return context.Background()
}

// noticeBoard keeps the latest user-facing notice so the PWA can poll it.
type noticeBoard struct {
	mu   sync.Mutex
	last string
}

func (n *noticeBoard) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
}

func (n *noticeBoard) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

type toggleRequest struct {
	Op models.ToggleOp `json:"op" binding:"required,oneof=check na deviation corrected installer"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type photoRequest struct {
	Type string `json:"type" binding:"required,photokind"`
	Data string `json:"data" binding:"required"`
}

// photokind restricts photo uploads to the kinds the report template knows.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("photokind", func(fl validator.FieldLevel) bool {
			for _, kind := range models.PhotoTypes {
				if strings.EqualFold(fl.Field().String(), kind) {
					return true
				}
			}
			return false
		})
	}
}

type newUserRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"required,oneof=admin user viewer"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin user viewer"`
}

func identity(c *gin.Context) (id, name string) {
	ctx := c.Request.Context()
	id, _ = utils.GetUserIdFromContext(ctx)
	name, _ = utils.GetUserNameFromContext(ctx)
	return id, name
}

func (app *application) requireAdmin(c *gin.Context) bool {
	role, _ := utils.GetUserRoleFromContext(c.Request.Context())
	if role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "krev administratortilgang"})
		return false
	}
	return true
}

func (app *application) checklistHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories":   models.Categories,
		"items":        models.DefaultItems,
		"photoTypes":   models.PhotoTypes,
		"unitSuffixes": models.UnitSuffixes,
	})
}

func (app *application) draftHandler(c *gin.Context) {
	userID, _ := identity(c)
	draft := app.drafts.Snapshot(userID)
	c.JSON(http.StatusOK, gin.H{
		"draft":          draft,
		"progress":       draft.Progress(),
		"deviationCount": draft.DeviationCount(),
	})
}

func (app *application) draftResetHandler(c *gin.Context) {
	userID, _ := identity(c)
	app.drafts.Reset(userID)
	c.Status(http.StatusNoContent)
}

func (app *application) draftFormHandler(c *gin.Context) {
	var form models.InspectionForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := identity(c)
	app.drafts.UpdateForm(userID, form)
	c.Status(http.StatusNoContent)
}

func (app *application) toggleHandler(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := identity(c)
	result, err := app.drafts.Toggle(userID, c.Param("itemId"), req.Op)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (app *application) itemCommentHandler(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := identity(c)
	if err := app.drafts.SetItemComment(userID, c.Param("itemId"), req.Comment); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (app *application) addPhotoHandler(c *gin.Context) {
	var req photoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := identity(c)
	photo := app.drafts.AddPhoto(userID, req.Type, req.Data)
	c.JSON(http.StatusCreated, photo)
}

func (app *application) removePhotoHandler(c *gin.Context) {
	userID, _ := identity(c)
	app.drafts.RemovePhoto(userID, c.Param("photoId"))
	c.Status(http.StatusNoContent)
}

// submitHandler folds the draft into an immutable record and queues it. The
// submit itself never touches the network; when online a forced drain starts
// in the background, exactly like the PWA did it.
func (app *application) submitHandler(c *gin.Context) {
	ctx := c.Request.Context()
	userID, userName := identity(c)
	if role, _ := utils.GetUserRoleFromContext(ctx); role == "viewer" {
		c.JSON(http.StatusForbidden, gin.H{"error": "lesetilgang kan ikkje sende inn kontrollar"})
		return
	}

	draft := app.drafts.Snapshot(userID)
	if draft.Form.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "adresse manglar"})
		return
	}

	rec := models.NewInspectionRecord(draft, userID, userName)
	app.queue.Enqueue(ctx, rec)
	app.drafts.Reset(userID)
	app.audit.Record(ctx, userID, userName, "inspection_submitted", rec.FullAddress+" localId="+rec.LocalID)

	notice := "Lagra lokalt (offline)"
	if app.monitor.Online() {
		notice = "Lagra lokalt - prøver å synke"
		go func() {
			if err := app.engine.Trigger(app.baseContext(), true); err != nil {
				app.logger.WithFields(logrus.Fields{"localId": rec.LocalID}).Warn("synk etter innsending: " + err.Error())
			}
			app.audit.Flush(app.baseContext())
		}()
	}
	app.notices.Notify(notice)

	c.JSON(http.StatusAccepted, gin.H{
		"localId": rec.LocalID,
		"pending": app.queue.Len(),
		"notice":  notice,
	})
}

func (app *application) syncStatusHandler(c *gin.Context) {
	status := app.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"online":       app.monitor.Online(),
		"sync":         status,
		"auditPending": app.audit.Len(),
		"notice":       app.notices.Last(),
	})
}

// syncTriggerHandler is the explicit retry command. The drain runs in the
// background; the caller polls /api/sync/status for the outcome.
func (app *application) syncTriggerHandler(c *gin.Context) {
	if !app.monitor.Online() {
		app.notices.Notify("Kan ikkje synke: ingen nettverkstilkopling")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingen nettverkstilkopling"})
		return
	}
	if !app.store.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fjernlager ikkje aktivt"})
		return
	}
	userID, userName := identity(c)
	app.audit.Record(c.Request.Context(), userID, userName, "sync_triggered", "")
	go func() {
		_ = app.engine.Trigger(app.baseContext(), true)
		app.audit.Flush(app.baseContext())
	}()
	c.JSON(http.StatusAccepted, gin.H{"pending": app.queue.Len()})
}

func (app *application) syncCancelHandler(c *gin.Context) {
	app.engine.Cancel()
	c.JSON(http.StatusAccepted, gin.H{"draining": app.engine.Draining()})
}

func (app *application) queueListHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pending": app.queue.List()})
}

// queueRemoveHandler drops one queued record without syncing it. Used by the
// report view after a manual download; the data leaves the system with the
// operator, not the remote store.
func (app *application) queueRemoveHandler(c *gin.Context) {
	localID := c.Param("localId")
	rec, ok := app.queue.Find(localID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "ukjend lokal kontroll"})
		return
	}
	app.queue.Remove(c.Request.Context(), localID)
	userID, userName := identity(c)
	app.audit.Record(c.Request.Context(), userID, userName, "queue_entry_removed", rec.FullAddress+" localId="+localID)
	c.Status(http.StatusNoContent)
}

func (app *application) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/checklist", app.checklistHandler)

	api.GET("/sync/status", app.syncStatusHandler)
	api.GET("/queue", app.queueListHandler)
	api.GET("/inspections", app.inspectionsHandler)
	api.GET("/inspections/:id", app.inspectionDetailHandler)
	api.GET("/users", app.usersHandler)

	authed := api.Group("")
	authed.Use(middlewares.RequireIdentity())
	authed.GET("/draft", app.draftHandler)
	authed.POST("/draft/reset", app.draftResetHandler)
	authed.PUT("/draft/form", app.draftFormHandler)
	authed.POST("/draft/items/:itemId/toggle", app.toggleHandler)
	authed.POST("/draft/items/:itemId/comment", app.itemCommentHandler)
	authed.POST("/draft/photos", app.addPhotoHandler)
	authed.DELETE("/draft/photos/:photoId", app.removePhotoHandler)
	authed.POST("/draft/submit", app.submitHandler)
	authed.POST("/sync/trigger", app.syncTriggerHandler)
	authed.POST("/sync/cancel", app.syncCancelHandler)
	authed.DELETE("/queue/:localId", app.queueRemoveHandler)
	authed.POST("/users", app.addUserHandler)
	authed.PATCH("/users/:id/role", app.userRoleHandler)
	authed.DELETE("/inspections/:id", app.deleteInspectionHandler)
	authed.DELETE("/inspections", app.deleteAllInspectionsHandler)
}
