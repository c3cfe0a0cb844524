package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TenantId  string    `gorm:"size:64;not null;index" json:"tenantId"`
	Username  string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:32;not null" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type NewUser struct {
	TenantId string `json:"tenantId"`
	Username string `json:"username" validate:"required,max=100"`
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

// SessionUser is the cached, password-free view of a user.
type SessionUser struct {
	ID       string   `json:"id"`
	TenantId string   `json:"tenantId"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	IsActive bool     `json:"isActive"`
}

func (u *User) session() *SessionUser {
	return &SessionUser{
		ID:       u.ID,
		TenantId: u.TenantId,
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		IsActive: u.IsActive == nil || *u.IsActive,
	}
}

/*
caches:
	User:$username
	Token:$token -> username
	Tokens:$username (set of live tokens)
*/

func userCacheKey(username string) string {
	return "User:" + username
}

// CreateUser is used by admins (within their tenant) and by the seed tool (explicit tenant).
func CreateUser(ctx context.Context, db *gorm.DB, input NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	role, ok := ParseUserRole(input.Role)
	if !ok {
		return nil, utils.ErrValidation("invalid role %q", input.Role)
	}
	tenantId := strings.TrimSpace(input.TenantId)
	if actorTenant, ok := utils.GetTenantIdFromContext(ctx); ok && actorTenant != "" {
		tenantId = actorTenant
	}
	if tenantId == "" {
		return nil, utils.ErrValidation("tenantId is required")
	}
	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		normalized, err := utils.NormalizePhoneNumber(phone)
		if err != nil {
			return nil, utils.ErrValidationFields("invalid request", map[string]string{"phone": err.Error()})
		}
		phone = normalized
	}

	// usernames are unique across tenants
	var count int64
	if err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).Model(&User{}).Where("username = ?", input.Username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.ErrConflict("username %s is already taken", input.Username)
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		TenantId: tenantId,
		Username: strings.TrimSpace(input.Username),
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.TrimSpace(input.Email),
		Phone:    phone,
		Password: string(hashed),
		Role:     role,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetSessionUser resolves a username through the cache.
func GetSessionUser(ctx context.Context, username string) (*SessionUser, error) {
	var cached SessionUser
	exists, err := config.GetRedisObject(userCacheKey(username), &cached)
	if err != nil {
		config.GetLogger().WithField("username", username).Warn("user cache read failed: " + err.Error())
	}
	if exists {
		return &cached, nil
	}

	var user User
	if err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrUnauthorized("unauthorized")
		}
		return nil, err
	}
	s := user.session()
	_ = config.SetRedisObject(userCacheKey(username), s, utils.GetCacheLifespan())
	return s, nil
}

// GetSessionUserById is used by the JWT path, where only the id is known.
func GetSessionUserById(ctx context.Context, id string) (*SessionUser, error) {
	var user User
	if err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrUnauthorized("unauthorized")
		}
		return nil, err
	}
	return user.session(), nil
}

type LoginInfo struct {
	Token       string   `json:"token"`
	AccessToken string   `json:"accessToken"`
	UserId      string   `json:"userId"`
	Name        string   `json:"name"`
	Role        UserRole `json:"role"`
	TenantId    string   `json:"tenantId"`
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	var user User
	err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrUnauthorized("invalid username or password")
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if utils.IsPasswordMismatch(err) {
			return nil, utils.ErrUnauthorized("invalid username or password")
		}
		return nil, err
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, utils.ErrForbidden("user is disabled")
	}

	accessToken, err := utils.JwtGenerate(user.ID, user.TenantId, string(user.Role))
	if err != nil {
		return nil, err
	}
	result := LoginInfo{
		AccessToken: accessToken,
		UserId:      user.ID,
		Name:        user.Name,
		Role:        user.Role,
		TenantId:    user.TenantId,
	}

	// Session tokens need Redis; without it callers fall back to the bearer token.
	if config.GetRedisDB() != nil {
		token := uuid.NewString()
		if err := config.SetRedisValue("Token:"+token, user.Username, utils.GetCacheLifespan()*24); err != nil {
			return nil, err
		}
		if err := config.AddRedisSet("Tokens:"+user.Username, token); err != nil {
			return nil, err
		}
		result.Token = token
	}
	_ = config.SetRedisObject(userCacheKey(user.Username), user.session(), utils.GetCacheLifespan())
	return &result, nil
}

// Logout destroys the current session token.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, utils.ErrValidation("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, fmt.Errorf("user not found for token")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	return true, nil
}
