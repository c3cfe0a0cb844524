package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Project owns billing documents. Revenue, Spent and Profit are cached aggregates
// maintained by the financial rollup; see RebuildProjectFinancials.
type Project struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string          `gorm:"size:64;not null;index" json:"tenantId"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	ManagerId   string          `gorm:"size:36;index" json:"managerId"`
	Budget      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"budget"`
	Revenue     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"revenue"`
	Spent       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"spent"`
	Profit      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"profit"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type NewProject struct {
	Name        string        `json:"name" validate:"required,max=255"`
	Description string        `json:"description"`
	ManagerId   string        `json:"managerId"`
	Budget      *utils.Amount `json:"budget"`
}

func CreateProject(ctx context.Context, input NewProject) (*Project, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	role := UserRole(actor.Role)
	if role != UserRoleAdmin && role != UserRoleProjectManager {
		return nil, utils.ErrForbidden("only Admin or Project Manager users can create projects")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB().WithContext(ctx)
	managerId := strings.TrimSpace(input.ManagerId)
	if role == UserRoleProjectManager || managerId == "" {
		managerId = actor.UserId
	}
	if managerId != actor.UserId {
		if err := utils.ValidateResourceId[User](ctx, db, actor.TenantId, managerId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, utils.ErrValidation("manager %s not found", managerId)
			}
			return nil, err
		}
	}

	project := Project{
		TenantId:    actor.TenantId,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		ManagerId:   managerId,
	}
	if input.Budget != nil {
		project.Budget = input.Budget.Decimal
	}
	if err := db.Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func GetProject(ctx context.Context, id string) (*Project, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	project, err := utils.FetchModel[Project](ctx, config.GetDB(), actor.TenantId, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.ErrNotFound("project %s not found", id)
		}
		return nil, err
	}
	return project, nil
}

func ListProjects(ctx context.Context) ([]*Project, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var results []*Project
	q := config.GetDB().WithContext(ctx).Where("tenant_id = ?", actor.TenantId)
	if UserRole(actor.Role) == UserRoleProjectManager {
		q = q.Where("manager_id = ?", actor.UserId)
	}
	if err := q.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
