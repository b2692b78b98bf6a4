package approval

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, extra ...gin.HandlerFunc) {
	timesheets := r.Group("/timesheets")
	{
		timesheets.POST("/auto-approve", append(extra, handler.AutoApprove)...)
	}
}
