package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FinancialReconciler periodically rebuilds project revenue/spent/profit from
// paid invoices and bills and logs every project it had to correct.
type FinancialReconciler struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Interval time.Duration
}

func NewFinancialReconciler(db *gorm.DB, logger *logrus.Logger) *FinancialReconciler {
	return &FinancialReconciler{
		DB:       db,
		Logger:   logger,
		Interval: config.FinancialReconcileInterval(),
	}
}

// Run blocks until ctx is done. A zero Interval returns immediately.
func (r *FinancialReconciler) Run(ctx context.Context) {
	if r.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		}
	}
}

func (r *FinancialReconciler) RunOnce(ctx context.Context) ([]*models.FinancialDrift, error) {
	if r.DB == nil {
		return nil, nil
	}
	drifts, err := models.RebuildAllProjectFinancials(ctx, r.DB)
	if err != nil {
		if r.Logger != nil {
			config.LogError(r.Logger, "FinancialReconciler", "RunOnce", "rebuild project financials", nil, err)
		}
		return drifts, err
	}
	if r.Logger != nil {
		r.Logger.WithFields(logrus.Fields{
			"field":     "FinancialReconciler",
			"corrected": len(drifts),
		}).Info("project financials reconciled")
	}
	return drifts, nil
}
