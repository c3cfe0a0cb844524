package models_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	tenant  string
	admin   *models.User
	finance *models.User
	pm      *models.User
	member  *models.User
	project *models.Project
}

// openSQLite points the global DB at a fresh sqlite file for the test.
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "billing.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := config.OpenDatabase(config.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	config.SetRedisClient(nil)
	t.Cleanup(func() {
		config.SetDB(prev)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: openSQLite(t), tenant: "tenant-a"}
	f.admin = f.user(t, "admin", "Alice Admin", models.UserRoleAdmin)
	f.finance = f.user(t, "finance", "Fiona Finance", models.UserRoleSalesFinance)
	f.pm = f.user(t, "pm", "Paul Manager", models.UserRoleProjectManager)
	f.member = f.user(t, "member", "Tina Member", models.UserRoleTeamMember)

	p, err := models.CreateProject(f.as(f.pm), models.NewProject{Name: "Website Rebuild", Budget: amount("5000")})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	f.project = p
	return f
}

func (f *fixture) user(t *testing.T, username, name string, role models.UserRole) *models.User {
	t.Helper()
	u, err := models.CreateUser(context.Background(), f.db, models.NewUser{
		TenantId: f.tenant,
		Username: f.tenant + "-" + username,
		Name:     name,
		Email:    username + "@example.com",
		Password: "password123",
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func (f *fixture) as(u *models.User) context.Context {
	return utils.WithActor(context.Background(), utils.Actor{
		TenantId: u.TenantId,
		UserId:   u.ID,
		Name:     u.Name,
		Role:     string(u.Role),
	})
}

func (f *fixture) create(t *testing.T, u *models.User, kind models.DocumentKind, input models.NewDocument) models.BillingRecord {
	t.Helper()
	if input.ProjectId == "" {
		input.ProjectId = f.project.ID
	}
	if input.CounterpartyName == "" {
		input.CounterpartyName = "Acme Ltd"
	}
	if input.Amount == nil {
		input.Amount = amount("100")
	}
	rec, err := models.CreateDocument(f.as(u), kind, input)
	if err != nil {
		t.Fatalf("CreateDocument(%s): %v", kind, err)
	}
	// keep created_at distinct for ordering assertions
	time.Sleep(2 * time.Millisecond)
	return rec
}

func (f *fixture) reloadProject(t *testing.T) *models.Project {
	t.Helper()
	var p models.Project
	if err := f.db.Where("id = ?", f.project.ID).Take(&p).Error; err != nil {
		t.Fatalf("reload project: %v", err)
	}
	return &p
}

func (f *fixture) notifications(t *testing.T, documentId string) []models.NotificationRecord {
	t.Helper()
	var rows []models.NotificationRecord
	if err := f.db.Where("document_id = ?", documentId).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	return rows
}

func amount(s string) *utils.Amount {
	return &utils.Amount{Decimal: decimal.RequireFromString(s)}
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", label, got, want)
	}
}
