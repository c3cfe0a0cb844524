package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
		if req.Username == "" || req.Password == "" {
			badRequest(c, "username and password are required")
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"loggedOut": ok})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := utils.ActorFromContext(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       actor.UserId,
			"name":     actor.Name,
			"role":     actor.Role,
			"tenantId": actor.TenantId,
		})
	}
}
