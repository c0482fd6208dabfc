package handlers

import (
	"net/http"

	"set_and_wait/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusAborted   = "aborted"
	statusNotFound  = "not_active"
	statusCancelled = "cancelled"
	statusSent      = "sent"
	statusDropped   = "dropped"

	errGetStatus       = "failed to load status"
	errSendLine        = "failed to send line"
	errBlockingLine    = "blocking heater commands must be sent as part of a job"
	errEmptyLine       = "line has no command"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for a single command line.
type gcodeRequest struct {
	Line string `json:"line" binding:"required"`
}

// GcodeRequest is an exported model for Swagger docs of the sendGcode payload.
type GcodeRequest struct {
	// Command line to forward to the printer
	Line string `json:"line" example:"G28"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Printer status
// @Description  Heater readings, active waits, transport flags and job state
// @Tags         status
// @Produce      json
// @Success      200  {object}  service.Status
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "status_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      List active waits
// @Tags         waits
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "waiting, count, waits"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/waits [get]
// @Security     BearerAuth
func (h *Handler) listWaits(c *gin.Context) {
	waits := h.services.Waiter.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"waiting": h.services.Waiter.Waiting(),
		"count":   len(waits),
		"waits":   waits,
	})
}

// @Summary      Abort one wait
// @Description  Deactivates the wait started by the given blocking command (M109, M190, M191)
// @Tags         waits
// @Produce      json
// @Param        identifier  path  string  true  "Blocking command word"  example(M190)
// @Success      200  {object}  map[string]interface{}  "status, identifier, by"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/waits/{identifier}/abort [post]
// @Security     BearerAuth
func (h *Handler) abortWait(c *gin.Context) {
	id := normalizeCommand(c.Param("identifier"))
	by := actorOf(c)
	status := statusNotFound
	if h.services.Waiter.Abort(id, by) {
		status = statusAborted
	}
	if h.log != nil {
		h.log.Infow("wait_abort_requested", "identifier", id, "status", status, "actor", by)
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "identifier": id, "by": by})
}

// @Summary      Abort all waits
// @Description  Stops waiting and deactivates every active wait
// @Tags         waits
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/waits/abort [post]
// @Security     BearerAuth
func (h *Handler) abortAllWaits(c *gin.Context) {
	by := actorOf(c)
	h.services.Waiter.AbortAll(by)
	if h.log != nil {
		h.log.Infow("waits_abort_all_requested", "actor", by)
	}
	c.JSON(http.StatusOK, gin.H{"status": statusAborted, "by": by})
}

// @Summary      Cancel waiting (M108)
// @Description  Sends M108 through the command pipeline: waiting stops and the line reaches the printer
// @Tags         waits
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/waits/cancel [post]
// @Security     BearerAuth
func (h *Handler) cancelWait(c *gin.Context) {
	by := actorOf(c)
	ctx := service.WithActor(c.Request.Context(), by)
	if _, err := h.services.Commands.Send(ctx, "M108"); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errSendLine, "wait_cancel_failed", err, "actor", by)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusCancelled, "by": by})
}

// @Summary      Send a command line
// @Description  Forwards one non-blocking line through the command pipeline. Blocking heater commands are rejected.
// @Tags         gcode
// @Accept       json
// @Produce      json
// @Param        body  body   GcodeRequest  true  "Line payload"
// @Success      200   {object}  map[string]interface{}  "status, forwarded"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/gcode [post]
// @Security     BearerAuth
func (h *Handler) sendGcode(c *gin.Context) {
	var req gcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	cmd := service.CommandOf(req.Line)
	if cmd == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errEmptyLine})
		return
	}
	if service.IsBlocking(cmd) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBlockingLine, "command": cmd})
		return
	}
	res, err := h.services.Commands.Send(c.Request.Context(), req.Line)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errSendLine, "gcode_send_failed", err, "command", cmd)
		return
	}
	status := statusSent
	if res.Forwarded == "" {
		status = statusDropped
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "forwarded": res.Forwarded})
}

// normalizeCommand upper-cases a command word taken from the URL.
func normalizeCommand(s string) string {
	if cmd := service.CommandOf(s); cmd != "" {
		return cmd
	}
	return s
}
