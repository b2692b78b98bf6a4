package approval

import (
	"net/http"
	"time"

	"stafflink/internal/shared/apperror"
	"stafflink/internal/shared/contextutil"
	"stafflink/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	evaluator Evaluator
	now       func() time.Time
	logger    *zap.Logger
}

func NewHandler(evaluator Evaluator, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("approval.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("approval.handler")
	}
	return &Handler{evaluator: evaluator, now: time.Now, logger: l}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	log := contextutil.GetLogger(c.Request.Context(), h.logger)
	log.Warn("auto-approve request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// AutoApprove evaluates one timesheet on demand. A flagged or skipped
// timesheet is still a 200; only lookup and store failures are errors.
func (h *Handler) AutoApprove(c *gin.Context) {
	var req AutoApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperror.MapValidationError(err))
		return
	}
	id, err := uuid.Parse(req.TimesheetID)
	if err != nil {
		h.writeError(c, apperror.InvalidField("Timesheet Id"))
		return
	}

	decision, err := h.evaluator.Evaluate(c.Request.Context(), Request{
		TimesheetID:   id,
		ManualTrigger: req.ManualTrigger,
		Now:           h.now(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, decision)
}
