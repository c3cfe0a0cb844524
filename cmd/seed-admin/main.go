// seed-admin creates or resets the first ADMIN user of a tenant.
//
// Usage:
//
//	DB_DRIVER=mysql DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin -tenant acme -username admin -password 'S3cret!pass'
//
// Rerunning with an existing username resets its password and role.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
	"gorm.io/gorm"
)

func main() {
	tenant := flag.String("tenant", "", "tenant id the admin belongs to (required)")
	username := flag.String("username", "admin", "login name")
	password := flag.String("password", "", "password, at least 8 characters (required)")
	name := flag.String("name", "Administrator", "display name")
	email := flag.String("email", "", "email address for notifications")
	flag.Parse()

	if *tenant == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
	}
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var existing models.User
	err := db.WithContext(ctx).Where("username = ?", *username).Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u, err := models.CreateUser(ctx, db, models.NewUser{
			TenantId: *tenant,
			Username: *username,
			Name:     *name,
			Email:    *email,
			Password: *password,
			Role:     string(models.UserRoleAdmin),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q tenant=%q id=%s\n", u.Username, u.TenantId, u.ID)
		return
	}

	if existing.TenantId != *tenant {
		fmt.Fprintf(os.Stderr, "username %q already belongs to tenant %q\n", *username, existing.TenantId)
		os.Exit(1)
	}
	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(2)
	}
	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	updates := map[string]any{
		"password":  string(hashed),
		"name":      *name,
		"is_active": true,
		"role":      models.UserRoleAdmin,
	}
	if *email != "" {
		updates["email"] = *email
	}
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = config.RemoveRedisKey("User:" + existing.Username)
	fmt.Printf("Updated admin user: username=%q tenant=%q id=%s\n", existing.Username, existing.TenantId, existing.ID)
}
