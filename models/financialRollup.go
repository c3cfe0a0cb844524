package models

import (
	"context"
	"errors"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProjectDelta is the change a single transition applies to a project's cached totals.
type ProjectDelta struct {
	Revenue decimal.Decimal
	Spent   decimal.Decimal
	Profit  decimal.Decimal
}

func (d ProjectDelta) IsZero() bool {
	return d.Revenue.IsZero() && d.Spent.IsZero() && d.Profit.IsZero()
}

// rollupDelta: an invoice entering PAID adds to revenue, a vendor bill entering PAID
// adds to spent and takes from profit. Leaving PAID reverses the same amounts.
func rollupDelta(kind DocumentKind, total decimal.Decimal, from, to DocumentStatus) ProjectDelta {
	var sign int64
	switch {
	case from != DocumentStatusPaid && to == DocumentStatusPaid:
		sign = 1
	case from == DocumentStatusPaid && to != DocumentStatusPaid:
		sign = -1
	default:
		return ProjectDelta{}
	}
	amt := total.Mul(decimal.NewFromInt(sign))
	switch kind {
	case DocumentKindInvoice:
		return ProjectDelta{Revenue: amt}
	case DocumentKindVendorBill:
		return ProjectDelta{Spent: amt, Profit: amt.Neg()}
	}
	return ProjectDelta{}
}

// applyFinancialRollup adjusts the project inside tx with column increments,
// so concurrent transitions on sibling documents do not overwrite each other.
func applyFinancialRollup(tx *gorm.DB, rec BillingRecord, from, to DocumentStatus) error {
	delta := rollupDelta(rec.DocumentKind(), rec.PayableTotal(), from, to)
	if delta.IsZero() {
		return nil
	}
	h := rec.Header()
	updates := map[string]interface{}{}
	if !delta.Revenue.IsZero() {
		updates["revenue"] = gorm.Expr("revenue + ?", delta.Revenue)
	}
	if !delta.Spent.IsZero() {
		updates["spent"] = gorm.Expr("spent + ?", delta.Spent)
	}
	if !delta.Profit.IsZero() {
		updates["profit"] = gorm.Expr("profit + ?", delta.Profit)
	}
	res := tx.Model(&Project{}).
		Where("tenant_id = ? AND id = ?", h.TenantId, h.ProjectId).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound("project %s not found", h.ProjectId)
	}
	return nil
}

// FinancialDrift reports what RebuildProjectFinancials corrected.
type FinancialDrift struct {
	ProjectId     string          `json:"projectId"`
	RevenueBefore decimal.Decimal `json:"revenueBefore"`
	RevenueAfter  decimal.Decimal `json:"revenueAfter"`
	SpentBefore   decimal.Decimal `json:"spentBefore"`
	SpentAfter    decimal.Decimal `json:"spentAfter"`
	ProfitBefore  decimal.Decimal `json:"profitBefore"`
	ProfitAfter   decimal.Decimal `json:"profitAfter"`
	Changed       bool            `json:"changed"`
}

func sumPaid(tx *gorm.DB, model interface{}, tenantId, projectId string) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	err := tx.Model(model).
		Select("SUM(total_amount) AS total").
		Where("tenant_id = ? AND project_id = ? AND status = ?", tenantId, projectId, DocumentStatusPaid).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}

// RebuildProjectFinancials recomputes revenue and spent from paid invoices and bills.
// Profit moves by the opposite of the spent correction, so manual profit
// adjustments outside billing survive a rebuild.
func RebuildProjectFinancials(ctx context.Context, projectId string) (*FinancialDrift, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if UserRole(actor.Role) != UserRoleAdmin {
		return nil, utils.ErrForbidden("only an admin can rebuild project financials")
	}
	return rebuildProjectFinancials(config.GetDB().WithContext(ctx), actor.TenantId, projectId)
}

func rebuildProjectFinancials(db *gorm.DB, tenantId, projectId string) (*FinancialDrift, error) {
	var drift *FinancialDrift
	err := db.Transaction(func(tx *gorm.DB) error {
		var project Project
		q := tx.Where("tenant_id = ? AND id = ?", tenantId, projectId)
		if err := q.Take(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrNotFound("project %s not found", projectId)
			}
			return err
		}
		revenue, err := sumPaid(tx, &CustomerInvoice{}, tenantId, projectId)
		if err != nil {
			return err
		}
		spent, err := sumPaid(tx, &VendorBill{}, tenantId, projectId)
		if err != nil {
			return err
		}
		profit := project.Profit.Sub(spent.Sub(project.Spent))

		drift = &FinancialDrift{
			ProjectId:     projectId,
			RevenueBefore: project.Revenue,
			RevenueAfter:  revenue,
			SpentBefore:   project.Spent,
			SpentAfter:    spent,
			ProfitBefore:  project.Profit,
			ProfitAfter:   profit,
			Changed:       !revenue.Equal(project.Revenue) || !spent.Equal(project.Spent),
		}
		if !drift.Changed {
			return nil
		}
		config.GetLogger().WithFields(logrus.Fields{
			"field":          "rebuildProjectFinancials",
			"project_id":     projectId,
			"revenue_before": project.Revenue.String(),
			"revenue_after":  revenue.String(),
			"spent_before":   project.Spent.String(),
			"spent_after":    spent.String(),
		}).Warn("project financials drifted, correcting")
		return tx.Model(&Project{}).
			Where("tenant_id = ? AND id = ?", tenantId, projectId).
			Updates(map[string]interface{}{
				"revenue": revenue,
				"spent":   spent,
				"profit":  profit,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return drift, nil
}

// RebuildAllProjectFinancials is the operator variant; it runs across tenants.
func RebuildAllProjectFinancials(ctx context.Context, db *gorm.DB) ([]*FinancialDrift, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	var projects []Project
	if err := db.WithContext(ctx).Select("id", "tenant_id").Order("tenant_id, id").Find(&projects).Error; err != nil {
		return nil, err
	}
	var drifts []*FinancialDrift
	for _, p := range projects {
		d, err := rebuildProjectFinancials(db.WithContext(ctx), p.TenantId, p.ID)
		if err != nil {
			return drifts, err
		}
		if d.Changed {
			drifts = append(drifts, d)
		}
	}
	return drifts, nil
}
