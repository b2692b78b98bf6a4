package automation

import (
	"context"
	"errors"
	"net/http"
	"time"

	automationerrors "stafflink/internal/automation/errors"
	"stafflink/internal/shared/apperror"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobRunner is the part of Runner the HTTP triggers need.
//
//go:generate mockgen -source=automation_handler.go -destination=mock/automation_runner_mock.go -package=mock
type JobRunner interface {
	Run(ctx context.Context, name, trigger string) (Result, error)
}

type Handler struct {
	runner JobRunner
	now    func() time.Time
	logger *zap.Logger
}

func NewHandler(runner JobRunner, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("automation.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("automation.handler")
	}
	return &Handler{runner: runner, now: time.Now, logger: l}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	log := contextutil.GetLogger(c.Request.Context(), h.logger)
	log.Warn("automation request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// Trigger runs the job named in the path. The request body is ignored.
func (h *Handler) Trigger(c *gin.Context) {
	name := c.Param("job")
	res, err := h.runner.Run(c.Request.Context(), name, TriggerHTTP)
	if err != nil {
		if errors.Is(err, automationerrors.ErrUnknownJob) {
			h.writeError(c, err)
			return
		}
		contextutil.GetLogger(c.Request.Context(), h.logger).Error("job run failed",
			zap.String("job", name), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, apperror.CodeJobFailed, err.Error(), nil)
		return
	}

	if res.Skipped {
		response.Success(c, http.StatusOK, gin.H{
			"success":   true,
			"skipped":   true,
			"message":   name + " is already running",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}

	response.Job(c, response.NewJobEnvelope(res.Summary(), h.now()), res.Report)
}
