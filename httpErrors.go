package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
)

func statusForError(err error) int {
	switch utils.KindOf(err) {
	case utils.KindUnauthorized:
		return http.StatusUnauthorized
	case utils.KindForbidden:
		return http.StatusForbidden
	case utils.KindNotFound:
		return http.StatusNotFound
	case utils.KindInvalidTransition, utils.KindValidation:
		return http.StatusBadRequest
	case utils.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes the {"error": ...} envelope. Internal errors are logged and
// their text is not echoed to the client.
func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		config.LogError(config.GetLogger(), "server", c.FullPath(), c.Request.Method, c.Params, err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	body := gin.H{"error": err.Error()}
	var de *utils.DomainError
	if errors.As(err, &de) && len(de.Fields) > 0 {
		body["fields"] = de.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}
