package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/project_billing/middlewares"
	"github.com/mmdatafocus/project_billing/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// documentKind resolves the :kind path segment; unknown kinds are a 404.
func documentKind(c *gin.Context) (models.DocumentKind, bool) {
	kind, ok := models.ParseDocumentKind(c.Param("kind"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown document kind %q", c.Param("kind"))})
		return "", false
	}
	return kind, true
}

func createDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
		rec, err := models.CreateDocument(c.Request.Context(), kind, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		var filter models.DocumentFilter
		if raw := c.Query("status"); raw != "" {
			status, ok := models.ParseDocumentStatus(raw)
			if !ok {
				badRequest(c, fmt.Sprintf("unknown status %q", raw))
				return
			}
			filter.Status = &status
		}
		if v := strings.TrimSpace(c.Query("projectId")); v != "" {
			filter.ProjectId = &v
		}
		if v := strings.TrimSpace(c.Query("search")); v != "" {
			filter.Search = &v
		}
		limit := defaultPageSize
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				badRequest(c, "limit must be a positive integer")
				return
			}
			limit = min(n, maxPageSize)
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}

		page, err := models.ListDocuments(c.Request.Context(), kind, filter, limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		rec, err := models.GetDocument(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func updateDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		var input models.DocumentUpdate
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
		rec, err := models.UpdateDocument(c.Request.Context(), kind, c.Param("id"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func deleteDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		id := c.Param("id")
		if err := models.DeleteDocument(c.Request.Context(), kind, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
	}
}

func documentHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		history, err := models.GetDocumentHistory(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func approveDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		rec, err := models.ApproveDocument(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

type rejectRequest struct {
	Reason *string `json:"reason"`
}

func rejectDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		// the body is optional
		var req rejectRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
		rec, err := models.RejectDocument(c.Request.Context(), kind, c.Param("id"), req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

type paymentStatusRequest struct {
	Status string `json:"status"`
}

func paymentStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := documentKind(c)
		if !ok {
			return
		}
		var req paymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
		target, ok := models.ParseDocumentStatus(req.Status)
		if !ok {
			badRequest(c, fmt.Sprintf("unknown status %q", req.Status))
			return
		}
		rec, err := models.SetPaymentStatus(c.Request.Context(), kind, c.Param("id"), target)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func pendingApprovalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		result, err := models.ListPendingApprovals(ctx, middlewares.Directory(ctx))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func approvalStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := models.GetApprovalStats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func exportPendingApprovalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		data, err := models.ExportPendingApprovalsXLSX(ctx, middlewares.Directory(ctx))
		if err != nil {
			respondError(c, err)
			return
		}
		fileName := fmt.Sprintf("pending-approvals-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}
