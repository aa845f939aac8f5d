package http

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openchat/openchat-pc/backend/internal/terminal"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	terminal *terminal.Manager
}

// NewHandlers creates a new handler set.
func NewHandlers(manager *terminal.Manager) *Handlers {
	return &Handlers{terminal: manager}
}

// Root reports service identity.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "openchat-pc backend",
	})
}

// Health reports liveness and session counts.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.terminal.Count(),
	})
}

type createSessionRequest struct {
	ID         string            `json:"id" binding:"required"`
	Shell      string            `json:"shell"`
	WorkingDir string            `json:"working_dir"`
	Env        map[string]string `json:"env"`
}

// CreateSession spawns a new PTY session under a caller-supplied id.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.terminal.Create(req.ID, terminal.CreateOptions{
		Shell:      req.Shell,
		WorkingDir: req.WorkingDir,
		Env:        req.Env,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	info, _ := h.terminal.Get(req.ID)
	c.JSON(http.StatusCreated, info)
}

type writeRequest struct {
	// Data is input text; DataBase64 takes precedence when both are
	// set, for payloads that are not valid JSON strings.
	Data       string `json:"data"`
	DataBase64 string `json:"data_base64"`
}

// WriteSession delivers keystrokes to a session.
func (h *Handlers) WriteSession(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data := []byte(req.Data)
	if req.DataBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.DataBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data_base64"})
			return
		}
		data = decoded
	}

	if err := h.terminal.Write(c.Param("id"), data); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type resizeRequest struct {
	Cols uint16 `json:"cols" binding:"required"`
	Rows uint16 `json:"rows" binding:"required"`
}

// ResizeSession updates a session's terminal dimensions.
func (h *Handlers) ResizeSession(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.terminal.Resize(c.Param("id"), req.Cols, req.Rows); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DestroySession tears a session down. Destroying an unknown id
// succeeds, so front-end cleanup can be fire-and-forget.
func (h *Handlers) DestroySession(c *gin.Context) {
	if err := h.terminal.Destroy(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSession returns a session snapshot.
func (h *Handlers) GetSession(c *gin.Context) {
	info, err := h.terminal.Get(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListSessions returns snapshots of all live sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.terminal.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// statusFor maps terminal error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, terminal.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, terminal.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, terminal.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, terminal.ErrSpawnFailed),
		errors.Is(err, terminal.ErrWriteFailed),
		errors.Is(err, terminal.ErrResizeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
