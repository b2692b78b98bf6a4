package automation

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, extra ...gin.HandlerFunc) {
	jobs := r.Group("/automation", extra...)
	{
		jobs.POST("/:job", handler.Trigger)
	}
}
