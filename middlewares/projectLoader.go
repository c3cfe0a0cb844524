package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/project_billing/models"
	"gorm.io/gorm"
)

type projectReader struct {
	db *gorm.DB
}

// tenant scoping comes from the tenant guard on the request context
func (r *projectReader) getProjects(ctx context.Context, ids []string) []*dataloader.Result[*models.Project] {
	var results []*models.Project
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Project](len(ids), err)
	}
	resultMap := make(map[string]*models.Project, len(results))
	for _, p := range results {
		resultMap[p.ID] = p
	}
	return generateLoaderResults(resultMap, ids, func(id string) *models.Project {
		return &models.Project{ID: id}
	})
}

func GetProjects(ctx context.Context, loaders *Loaders, ids []string) ([]*models.Project, []error) {
	return loaders.projectLoader.LoadMany(ctx, ids)()
}
