package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	projectLoader *dataloader.Loader[string, *models.Project]
	userLoader    *dataloader.Loader[string, *models.PartyRef]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	projectReader := &projectReader{db: conn}
	userReader := &userReader{db: conn}
	return &Loaders{
		projectLoader: dataloader.NewBatchedLoader(projectReader.getProjects, dataloader.WithWait[string, *models.Project](time.Millisecond)),
		userLoader:    dataloader.NewBatchedLoader(userReader.getUsers, dataloader.WithWait[string, *models.PartyRef](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request's loaders, or nil outside a request.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// Directory returns the request loaders as a models.Directory, falling back
// to plain queries when the middleware did not run.
func Directory(ctx context.Context) models.Directory {
	if loaders := For(ctx); loaders != nil {
		return loaders
	}
	return models.DBDirectory{}
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders results by ids; missing ids get fallback(id).
func generateLoaderResults[T any](resultMap map[string]T, ids []string, fallback func(id string) T) []*dataloader.Result[T] {
	loaderResults := make([]*dataloader.Result[T], 0, len(ids))
	for _, id := range ids {
		result, ok := resultMap[id]
		if !ok {
			result = fallback(id)
		}
		loaderResults = append(loaderResults, &dataloader.Result[T]{Data: result})
	}
	return loaderResults
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loaders) ProjectNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	projects, errs := GetProjects(ctx, l, ids)
	if err := firstError(errs); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		if p != nil {
			names[p.ID] = p.Name
		}
	}
	return names, nil
}

func (l *Loaders) Users(ctx context.Context, ids []string) (map[string]*models.PartyRef, error) {
	if len(ids) == 0 {
		return map[string]*models.PartyRef{}, nil
	}
	users, errs := GetUsers(ctx, l, ids)
	if err := firstError(errs); err != nil {
		return nil, err
	}
	refs := make(map[string]*models.PartyRef, len(users))
	for _, u := range users {
		if u != nil {
			refs[u.ID] = u
		}
	}
	return refs, nil
}
