package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
)

type notificationReplayRequest struct {
	RecordId uint64 `json:"recordId"`
}

// notificationReplayHandler requeues a FAILED or DEAD notification. Admin only (route guard);
// the tenant guard keeps the lookup inside the caller's tenant.
func notificationReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notificationReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RecordId == 0 {
			badRequest(c, "recordId is required")
			return
		}
		rec, err := models.ReplayNotification(c.Request.Context(), config.GetDB(), req.RecordId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func getNotificationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			badRequest(c, "id must be numeric")
			return
		}
		rec, err := models.GetNotification(c.Request.Context(), config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}
