package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
)

// attachmentStore is set at startup when GCS_BUCKET is configured.
var attachmentStore utils.ObjectStore

func requireAttachmentStore(c *gin.Context) (utils.ObjectStore, bool) {
	if attachmentStore == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage is not configured"})
		return nil, false
	}
	return attachmentStore, true
}

func uploadAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		store, ok := requireAttachmentStore(c)
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, models.MaxAttachmentBytes+(1<<20))
		fileHeader, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "multipart field \"file\" is required")
			return
		}
		if fileHeader.Size > models.MaxAttachmentBytes {
			badRequest(c, fmt.Sprintf("file exceeds the %d MB limit", models.MaxAttachmentBytes>>20))
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, models.MaxAttachmentBytes+1))
		if err != nil {
			respondError(c, err)
			return
		}

		attachment, err := models.CreateAttachment(c.Request.Context(), store, kind, c.Param("id"), fileHeader.Filename, data)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, attachment)
	}
}

func listAttachmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		attachments, err := models.ListAttachments(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, attachments)
	}
}

func deleteAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := requireAttachmentStore(c)
		if !ok {
			return
		}
		id := c.Param("id")
		if err := models.DeleteAttachment(c.Request.Context(), store, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
	}
}
