package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
)

// AuthMiddleware accepts `Authorization: Bearer <jwt>` as an alternative to the session token.
// A request that already carries a session user is left alone.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, _ := validate.Claims.(*utils.JwtCustomClaim)
		if customClaim == nil || customClaim.ID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		user, err := models.GetSessionUserById(c.Request.Context(), customClaim.ID)
		if err != nil || !user.IsActive || user.TenantId != customClaim.TenantId {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), user.Username)
		ctx = withSessionUser(ctx, user)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// withSessionUser takes role and tenant from the stored user, never from the token.
func withSessionUser(ctx context.Context, user *models.SessionUser) context.Context {
	return utils.WithActor(ctx, utils.Actor{
		TenantId: user.TenantId,
		UserId:   user.ID,
		Name:     user.Name,
		Role:     string(user.Role),
	})
}
