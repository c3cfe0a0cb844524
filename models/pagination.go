package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/project_billing/utils"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

type Edge[N any] struct {
	Node   N      `json:"node"`
	Cursor string `json:"cursor"`
}

// EncodeCompositeCursor packs (createdAt, id) so ties on createdAt stay stable.
func EncodeCompositeCursor(createdAt time.Time, id string) string {
	cursor := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), id)
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

func DecodeCompositeCursor(cursor *string) (time.Time, string, error) {
	if cursor == nil || *cursor == "" {
		return time.Time{}, "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return time.Time{}, "", utils.ErrValidation("invalid cursor")
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return time.Time{}, "", utils.ErrValidation("invalid cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", utils.ErrValidation("invalid cursor")
	}
	return t, parts[1], nil
}

func normalizePageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

type recordPtr[T any] interface {
	*T
	BillingRecord
}

// fetchPageNewestFirst pages by (created_at DESC, id DESC).
func fetchPageNewestFirst[T any, PT recordPtr[T]](q *gorm.DB, limit int, after *string) ([]Edge[BillingRecord], *PageInfo, error) {
	limit = normalizePageSize(limit)
	cursorAt, cursorId, err := DecodeCompositeCursor(after)
	if err != nil {
		return nil, nil, err
	}
	if cursorId != "" {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursorAt, cursorAt, cursorId)
	}

	var rows []T
	if err := q.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	hasNextPage := len(rows) > limit
	if hasNextPage {
		rows = rows[:limit]
	}
	edges := make([]Edge[BillingRecord], 0, len(rows))
	for i := range rows {
		rec := PT(&rows[i])
		h := rec.Header()
		edges = append(edges, Edge[BillingRecord]{
			Node:   rec,
			Cursor: EncodeCompositeCursor(h.CreatedAt, h.ID),
		})
	}

	pageInfo := PageInfo{HasNextPage: utils.NewFalse()}
	if len(edges) > 0 {
		pageInfo = PageInfo{
			StartCursor: edges[0].Cursor,
			EndCursor:   edges[len(edges)-1].Cursor,
			HasNextPage: &hasNextPage,
		}
	}
	return edges, &pageInfo, nil
}

var errUnknownKind = errors.New("unknown document kind")
