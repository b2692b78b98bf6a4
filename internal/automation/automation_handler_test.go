package automation_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stafflink/internal/automation"
	automationerrors "stafflink/internal/automation/errors"
	"stafflink/internal/automation/mock"
	"stafflink/internal/shared/jobreport"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type batchReport struct {
	Processed int               `json:"processed"`
	Errors    jobreport.Errors `json:"errors"`
}

func (r batchReport) Summary() string { return "Processed 3 timesheets" }

func newRouter(runner automation.JobRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	automation.RegisterRoutes(r.Group("/api/v1"), automation.NewHandler(runner))
	return r
}

func trigger(r http.Handler, job string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/automation/"+job, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	body := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHandler_Trigger(t *testing.T) {
	t.Run("flattens the report next to the envelope", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		runner := mock.NewMockJobRunner(ctrl)
		runner.EXPECT().Run(gomock.Any(), "scheduled-timesheet-processor", automation.TriggerHTTP).
			Return(automation.Result{Job: "scheduled-timesheet-processor", Report: batchReport{Processed: 3}}, nil)

		rec, body := trigger(newRouter(runner), "scheduled-timesheet-processor")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Processed 3 timesheets", body["message"])
		assert.Equal(t, float64(3), body["processed"])
		assert.Equal(t, []any{}, body["errors"])
		assert.NotEmpty(t, body["timestamp"])
	})

	t.Run("skipped run", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		runner := mock.NewMockJobRunner(ctrl)
		runner.EXPECT().Run(gomock.Any(), "daily-shift-closure", gomock.Any()).
			Return(automation.Result{Job: "daily-shift-closure", Skipped: true}, nil)

		rec, body := trigger(newRouter(runner), "daily-shift-closure")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, true, body["skipped"])
		assert.Contains(t, body["message"], "already running")
	})

	t.Run("fatal job failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		runner := mock.NewMockJobRunner(ctrl)
		runner.EXPECT().Run(gomock.Any(), "urgent-shift-escalation", gomock.Any()).
			Return(automation.Result{}, errors.New("failed to load agencies"))

		rec, body := trigger(newRouter(runner), "urgent-shift-escalation")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "failed to load agencies", body["error"])
	})

	t.Run("unknown job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		runner := mock.NewMockJobRunner(ctrl)
		runner.EXPECT().Run(gomock.Any(), "payroll", gomock.Any()).
			Return(automation.Result{}, automationerrors.ErrUnknownJob)

		rec, body := trigger(newRouter(runner), "payroll")

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", body["code"])
	})
}
