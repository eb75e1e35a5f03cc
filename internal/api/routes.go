package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/imports", handler.EnqueueImport)

		sessions := v1.Group("/sessions")
		sessions.POST("", handler.OpenSession)
		sessions.DELETE("/:id", handler.CloseSession)
		sessions.POST("/:id/load", handler.LoadJournal)
		sessions.POST("/:id/retry", handler.Retry)
		sessions.PUT("/:id/period", handler.SelectPeriod)
		sessions.PUT("/:id/search", handler.Search)
		sessions.GET("/:id/rows", handler.Rows)
		sessions.POST("/:id/export", handler.Export)

		// ?kind=attendance targets the attendance side of a cell.
		cells := sessions.Group("/:id/cells/:student/:lesson")
		cells.POST("/edit", handler.EditCell)
		cells.POST("/confirm", handler.ConfirmCell)
		cells.POST("/cancel", handler.CancelCell)
		cells.PUT("/attendance", handler.SetAttendance)
	}
}
