package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stafflink/internal/automation"
	"stafflink/internal/closure"
	"stafflink/internal/config"
	"stafflink/internal/escalation"
	"stafflink/internal/shared/runlock"
	"stafflink/internal/shiftstatus"
	"stafflink/internal/timesheetbatch"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type emptyReport struct{}

func testRunner() *automation.Runner {
	r := automation.NewRunner(runlock.Noop{}, nil, zap.NewNop())
	noop := func(context.Context, time.Time) (*emptyReport, error) { return &emptyReport{}, nil }
	r.Register(
		automation.NewJob(shiftstatus.Name, shiftstatus.LockTTL, noop),
		automation.NewJob(escalation.Name, escalation.LockTTL, noop),
		automation.NewJob(closure.Name, closure.LockTTL, noop),
		automation.NewJob(timesheetbatch.Name, timesheetbatch.LockTTL, noop),
	)
	return r
}

func TestScheduleJobs(t *testing.T) {
	t.Run("one entry per enabled job", func(t *testing.T) {
		c := cron.New()
		err := scheduleJobs(c, testRunner(), config.ScheduleConfig{
			ShiftStatus: "@every 5m",
			Escalation:  "@every 5m",
			Closure:     "0 9 * * *",
			Timesheets:  "-",
		}, zap.NewNop())

		require.NoError(t, err)
		assert.Len(t, c.Entries(), 3)
	})

	t.Run("invalid cron expression", func(t *testing.T) {
		err := scheduleJobs(cron.New(), testRunner(), config.ScheduleConfig{
			ShiftStatus: "every five minutes",
		}, zap.NewNop())

		assert.ErrorContains(t, err, shiftstatus.Name)
	})
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := &config.Config{Server: config.ServerConfig{RateLimit: 100, RateBurst: 100}}
	registerRoutes(cfg, router, &modules{runner: testRunner()}, nil, zap.NewNop())

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodPost, "/api/v1/automation/" + closure.Name, http.StatusOK},
		{http.MethodPost, "/api/v1/automation/unknown-job", http.StatusNotFound},
		{http.MethodPost, "/api/v1/timesheets/auto-approve", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

			assert.Equal(t, tc.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}
