package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"set_and_wait/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	maxJobSize = 32 << 20 // 32 MB

	statusStarted = "started"

	errJobBody      = "job body is empty or unreadable"
	errJobTooLarge  = "job file too large"
	errStartJob     = "failed to start job"
	defaultJobName  = "upload.gcode"
	formFieldJob    = "file"
	queryParamName  = "name"
	contentTypeForm = "multipart/form-data"
)

// @Summary      Start a job
// @Description  Streams a command file through the pipeline. Send it as multipart field "file" or as the raw request body with ?name=.
// @Tags         jobs
// @Accept       multipart/form-data
// @Accept       plain
// @Produce      json
// @Param        file  formData  file    false  "Command file"
// @Param        name  query     string  false  "Job name for raw uploads"
// @Success      202   {object}  service.JobStatus
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      413   {object}  map[string]string
// @Router       /api/v1/jobs [post]
// @Security     BearerAuth
func (h *Handler) startJob(c *gin.Context) {
	name, body, err := readJob(c)
	if err != nil {
		code := http.StatusBadRequest
		msg := errJobBody
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code, msg = http.StatusRequestEntityTooLarge, errJobTooLarge
		}
		if h.log != nil {
			h.log.Infow("job_upload_rejected", "err", err)
		}
		c.JSON(code, gin.H{"error": msg})
		return
	}

	// the job outlives the request, so the body is buffered
	if err := h.services.Jobs.Start(c.Request.Context(), name, bytes.NewReader(body)); err != nil {
		if errors.Is(err, service.ErrJobRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errStartJob, "job_start_failed", err, "name", name)
		return
	}
	if h.log != nil {
		h.log.Infow("job_started", "name", name, "bytes", len(body))
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusStarted, "job": h.services.Jobs.Status()})
}

// @Summary      Cancel the running job
// @Description  Aborts any wait the job is blocked in and stops streaming
// @Tags         jobs
// @Produce      json
// @Success      200  {object}  service.JobStatus
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/jobs/cancel [post]
// @Security     BearerAuth
func (h *Handler) cancelJob(c *gin.Context) {
	if err := h.services.Jobs.Cancel(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.services.Jobs.Status())
}

// @Summary      Job status
// @Tags         jobs
// @Produce      json
// @Success      200  {object}  service.JobStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/jobs [get]
// @Security     BearerAuth
func (h *Handler) getJob(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Jobs.Status())
}

// readJob returns the job name and content from a multipart or raw upload.
func readJob(c *gin.Context) (string, []byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJobSize)

	if c.ContentType() == contentTypeForm {
		fh, err := c.FormFile(formFieldJob)
		if err != nil {
			return "", nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		body, err := io.ReadAll(f)
		if err != nil {
			return "", nil, err
		}
		if len(body) == 0 {
			return "", nil, fmt.Errorf("%s: empty file", fh.Filename)
		}
		return fh.Filename, body, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil, errors.New("empty body")
	}
	return c.DefaultQuery(queryParamName, defaultJobName), body, nil
}
