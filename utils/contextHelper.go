package utils

import (
	"context"

	"github.com/mmdatafocus/project_billing/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyTenantId      = appctx.ContextKeyTenantId
	ContextKeyUsername      = appctx.ContextKeyUsername
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyUserRole      = appctx.ContextKeyUserRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetTenantIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTenantId)
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

func GetUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetTenantIdInContext(ctx context.Context, tenantId string) context.Context {
	return appctx.Set(ctx, ContextKeyTenantId, tenantId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}

// Actor is the authenticated caller as seen by domain operations.
type Actor struct {
	TenantId string
	UserId   string
	Name     string
	Role     string
}

// ActorFromContext collects the session values the middlewares put on the request.
func ActorFromContext(ctx context.Context) (Actor, error) {
	var a Actor
	var ok bool
	if a.TenantId, ok = GetTenantIdFromContext(ctx); !ok || a.TenantId == "" {
		return a, ErrUnauthorized("tenant is required")
	}
	if a.UserId, ok = GetUserIdFromContext(ctx); !ok || a.UserId == "" {
		return a, ErrUnauthorized("user is required")
	}
	a.Name, _ = GetUserNameFromContext(ctx)
	a.Role, _ = GetUserRoleFromContext(ctx)
	return a, nil
}

// WithActor is the inverse of ActorFromContext; used by tools and tests.
func WithActor(ctx context.Context, a Actor) context.Context {
	ctx = SetTenantIdInContext(ctx, a.TenantId)
	ctx = SetUserIdInContext(ctx, a.UserId)
	ctx = SetUserNameInContext(ctx, a.Name)
	return SetUserRoleInContext(ctx, a.Role)
}
