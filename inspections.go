package main

import (
	"errors"
	"net/http"

	"github.com/Flabba2018/elkontroll-alver/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// inspectionsHandler serves the synced inspection list read-through: remote
// when reachable, the cached copy otherwise. The response names its source so
// the UI can flag stale data.
func (app *application) inspectionsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	if app.monitor.Online() && app.store.Ready() {
		rows, err := app.store.RefreshInspections(ctx)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{
				"inspections": rows,
				"source":      "remote",
				"pending":     app.queue.Len(),
			})
			return
		}
		app.logger.Warn("henting av kontrollar feila, serverer lokal kopi: " + err.Error())
	}

	c.JSON(http.StatusOK, gin.H{
		"inspections": app.store.CachedInspections(ctx),
		"source":      "cache",
		"pending":     app.queue.Len(),
	})
}

func (app *application) inspectionDetailHandler(c *gin.Context) {
	id := c.Param("id")

	// records still waiting for sync are served from the local queue
	if rec, ok := app.queue.Find(id); ok {
		c.JSON(http.StatusOK, gin.H{"local": true, "record": rec})
		return
	}

	header, items, err := app.store.FetchInspection(c.Request.Context(), id)
	switch {
	case errors.Is(err, models.ErrBackendUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fjernlager ikkje tilgjengeleg"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ukjend kontroll"})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"local": false, "inspection": header, "items": items})
	}
}

func (app *application) deleteInspectionHandler(c *gin.Context) {
	if !app.requireAdmin(c) {
		return
	}
	id := c.Param("id")
	if err := app.store.DeleteInspection(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fjernlager ikkje tilgjengeleg"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	userID, userName := identity(c)
	app.audit.Record(c.Request.Context(), userID, userName, "inspection_deleted", id)
	c.Status(http.StatusNoContent)
}

func (app *application) deleteAllInspectionsHandler(c *gin.Context) {
	if !app.requireAdmin(c) {
		return
	}
	if err := app.store.DeleteAllInspections(c.Request.Context()); err != nil {
		if errors.Is(err, models.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fjernlager ikkje tilgjengeleg"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	userID, userName := identity(c)
	app.audit.Record(c.Request.Context(), userID, userName, "all_inspections_deleted", "")
	c.Status(http.StatusNoContent)
}

// usersHandler lists active users, falling back to the cached (or seeded)
// list so login works on a box that is offline.
func (app *application) usersHandler(c *gin.Context) {
	ctx := c.Request.Context()

	if app.monitor.Online() && app.store.Ready() {
		users, err := app.store.FetchUsers(ctx)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"users": users, "source": "remote"})
			return
		}
		app.logger.Warn("henting av brukarar feila, serverer lokal kopi: " + err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"users": app.store.CachedUsers(ctx), "source": "cache"})
}

func (app *application) addUserHandler(c *gin.Context) {
	if !app.requireAdmin(c) {
		return
	}
	var req newUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := app.store.CreateUser(c.Request.Context(), req.Name, req.Role)
	if err != nil {
		if errors.Is(err, models.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "brukarar kan berre leggjast til med nett"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	userID, userName := identity(c)
	app.audit.Record(c.Request.Context(), userID, userName, "user_added", user.Name+" ("+user.Role+")")
	c.JSON(http.StatusCreated, user)
}

func (app *application) userRoleHandler(c *gin.Context) {
	if !app.requireAdmin(c) {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := app.store.UpdateUserRole(c.Request.Context(), id, req.Role); err != nil {
		if errors.Is(err, models.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fjernlager ikkje tilgjengeleg"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	userID, userName := identity(c)
	app.audit.Record(c.Request.Context(), userID, userName, "user_role_changed", id+" -> "+req.Role)
	c.Status(http.StatusNoContent)
}
