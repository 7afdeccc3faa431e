package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rapzz3312/waconsole/internal/logging"
	"github.com/rapzz3312/waconsole/internal/server/app"
)

// ConsoleHandler exposes the console service over HTTP.
type ConsoleHandler struct {
	service   *app.ConsoleService
	logger    logging.Logger
	startTime time.Time
}

// NewConsoleHandler creates the handler set.
func NewConsoleHandler(service *app.ConsoleService, logger logging.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		service:   service,
		logger:    logging.OrNop(logger),
		startTime: time.Now(),
	}
}

// Pair starts pairing. Completion is asynchronous; the caller observes it via
// status events on its push channel.
func (h *ConsoleHandler) Pair(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	if req.Phone == "" || req.ChannelID == "" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   "phone and channelId are required",
		})
		return
	}

	res, err := h.service.Pair(c.Request.Context(), req.Phone, req.ChannelID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	msg := "pairing initiated"
	if res.AlreadyConnected {
		msg = "already connected"
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: msg,
		Data:    PairResponse{Phone: res.IdentityKey, AlreadyConnected: res.AlreadyConnected},
	})
}

// Execute runs a script loop to completion and returns the ordered outcomes.
func (h *ConsoleHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	outcomes, err := h.service.Execute(c.Request.Context(), app.ExecuteRequest{
		IdentityKey: req.Phone,
		Target:      req.Target,
		ScriptText:  req.Script,
		Loop:        req.Loop,
		DelayMs:     req.DelayMs,
		ChannelID:   req.ChannelID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"results": outcomes},
	})
}

// Disconnect tears down a session. Idempotent.
func (h *ConsoleHandler) Disconnect(c *gin.Context) {
	var req DisconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	if req.Phone == "" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   "phone is required",
		})
		return
	}

	if err := h.service.Disconnect(req.Phone); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "disconnected"})
}

// DisconnectByPath handles DELETE /api/sessions/:phone.
func (h *ConsoleHandler) DisconnectByPath(c *gin.Context) {
	phone := c.Param("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   "phone is required",
		})
		return
	}
	if err := h.service.Disconnect(phone); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "disconnected"})
}

// ListSessions returns all sessions ordered by creation time.
func (h *ConsoleHandler) ListSessions(c *gin.Context) {
	infos := h.service.ListSessions()
	out := make([]SessionInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, SessionInfo{
			Phone:     info.IdentityKey,
			Status:    string(info.Status),
			CreatedAt: info.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"sessions": out},
	})
}

// Health reports liveness and uptime.
func (h *ConsoleHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:   "ok",
			Uptime:   time.Since(h.startTime).Round(time.Second).String(),
			Sessions: len(h.service.ListSessions()),
		},
	})
}

// writeError maps application errors to HTTP statuses. Validation and session
// state problems are the caller's fault; everything else is reported as an
// internal fault with the detail kept server-side.
func (h *ConsoleHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrSessionState):
		h.logger.Warn("HTTP 400 - %v", err)
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: err.Error()})
	default:
		h.logger.Error("HTTP 500 - %v", err)
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Error:   "internal error",
		})
	}
}
