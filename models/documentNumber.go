package models

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// maxNumberAttempts bounds retries when a concurrent creator took the same number.
const maxNumberAttempts = 5

// FormatDocumentNumber renders PREFIX-YYYY-NNNN (the counter widens past 9999).
func FormatDocumentNumber(kind DocumentKind, year int, seq int) string {
	return fmt.Sprintf("%s-%04d-%04d", kind.NumberPrefix(), year, seq)
}

// nextSequence reads the last issued sequence for (tenant, kind, year) inside tx
// and returns the next one. Soft-deleted rows are counted so numbers are never reused.
func nextSequence(tx *gorm.DB, kind DocumentKind, tenantId string, year int) (int, error) {
	var last struct {
		Seq *int
	}
	err := tx.Unscoped().Model(newRecord(kind)).
		Select("MAX(sequence_no) AS seq").
		Where("tenant_id = ? AND sequence_year = ?", tenantId, year).
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if last.Seq == nil {
		return 1, nil
	}
	return *last.Seq + 1, nil
}

func sequenceLockKey(kind DocumentKind, tenantId string, year int) string {
	return fmt.Sprintf("lock:seq:%s:%s:%d", tenantId, kind, year)
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
