package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/project_billing/models"
	"gorm.io/gorm"
)

type userReader struct {
	db *gorm.DB
}

func (r *userReader) getUsers(ctx context.Context, ids []string) []*dataloader.Result[*models.PartyRef] {
	var results []models.User
	err := r.db.WithContext(ctx).Select("id", "name", "email").Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.PartyRef](len(ids), err)
	}
	resultMap := make(map[string]*models.PartyRef, len(results))
	for _, u := range results {
		resultMap[u.ID] = &models.PartyRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return generateLoaderResults(resultMap, ids, func(id string) *models.PartyRef {
		return &models.PartyRef{ID: id}
	})
}

func GetUsers(ctx context.Context, loaders *Loaders, ids []string) ([]*models.PartyRef, []error) {
	return loaders.userLoader.LoadMany(ctx, ids)()
}
