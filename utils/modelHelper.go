package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

/* DB fetching */

// fetch model scoped to the tenant (returns ErrorRecordNotFound when missing)
func FetchModel[T any](ctx context.Context, db *gorm.DB, tenantId string, id string, associations ...string) (*T, error) {
	q := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.Where("id = ?", id).Take(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// check if id exists for the tenant
func ValidateResourceId[T any](ctx context.Context, db *gorm.DB, tenantId string, id string) error {
	var count int64
	var model T
	if err := db.WithContext(ctx).Model(&model).
		Where("tenant_id = ? AND id = ?", tenantId, id).
		Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
