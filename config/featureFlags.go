package config

import (
	"os"
	"strings"
	"time"
)

// AllowReapproveCancelled re-enables approving a document that was previously rejected.
// Off by default: CANCELLED is terminal for approve.
//
// Set via env:
// - ALLOW_REAPPROVE_CANCELLED=true
func AllowReapproveCancelled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_REAPPROVE_CANCELLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AppLocation is the calendar used for month boundaries in approval stats.
//
// Set via env:
// - APP_TIMEZONE=Asia/Yangon (default UTC)
func AppLocation() *time.Location {
	name := strings.TrimSpace(os.Getenv("APP_TIMEZONE"))
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ApprovalStatsCacheTTL controls how long approval stats are served from Redis.
// 0 disables caching.
func ApprovalStatsCacheTTL() time.Duration {
	return time.Duration(intFromEnv("APPROVAL_STATS_CACHE_SECONDS", 30)) * time.Second
}

// IsProduction reports GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// FinancialReconcileInterval schedules the background project financials rebuild.
// 0 (default) disables it; operators run `billingctl rebuild-financials` instead.
//
// Set via env:
// - FINANCIAL_RECONCILE_MINUTES=60
func FinancialReconcileInterval() time.Duration {
	return time.Duration(intFromEnv("FINANCIAL_RECONCILE_MINUTES", 0)) * time.Minute
}
