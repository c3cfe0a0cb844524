package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
)

// createUserHandler adds a user to the caller's tenant. Admin only (route guard).
func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor, err := utils.ActorFromContext(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
		input.TenantId = actor.TenantId
		user, err := models.CreateUser(ctx, config.GetDB(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}
