package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// JobEnvelope is the common head of every automation response. Job reports
// are flattened next to it so callers read `success` and the counters at the
// same level, e.g. {"success":true,"timestamp":"…","processed":3}.
type JobEnvelope struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
}

func NewJobEnvelope(message string, at time.Time) JobEnvelope {
	return JobEnvelope{
		Success:   true,
		Timestamp: at.UTC().Format(time.RFC3339),
		Message:   message,
	}
}

type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func Success(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func Error(c *gin.Context, status int, errorCode string, message string, details any) {
	c.JSON(status, ErrorBody{
		Success: false,
		Error:   message,
		Code:    errorCode,
		Details: details,
	})
}

// Job writes env with the report's fields flattened next to it. The envelope
// keys always win over report keys of the same name.
func Job(c *gin.Context, env JobEnvelope, report any) {
	body := map[string]any{}
	if report != nil {
		raw, err := json.Marshal(report)
		if err != nil {
			Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to encode job report", err.Error())
			return
		}
		if err := json.Unmarshal(raw, &body); err != nil || body == nil {
			body = map[string]any{"report": json.RawMessage(raw)}
		}
	}

	body["success"] = env.Success
	body["timestamp"] = env.Timestamp
	if env.Message != "" {
		body["message"] = env.Message
	}
	c.JSON(http.StatusOK, body)
}
