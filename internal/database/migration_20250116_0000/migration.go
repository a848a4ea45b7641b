package migration_20250116_0000

import (
	"encoding/json"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	. "github.com/salesforge-io/salesforge/internal/database/migrations"
	"gorm.io/gorm"
)

type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

type User struct {
	Base
	IdpID               string `gorm:"index"`
	UserName            string
	Email               string `gorm:"index"`
	OnboardingCompleted bool
}

type Organization struct {
	Base
	OwnerID          uuid.UUID `gorm:"index"`
	Name             string    `gorm:"index"`
	Domain           *string   `gorm:"index"`
	IsActive         bool
	Provisional      bool
	RequiresApproval bool
	SimilarToOrgID   *uuid.UUID `gorm:"type:uuid"`
}

type UserOrganization struct {
	UserID         uuid.UUID `gorm:"type:uuid;primary_key"`
	OrganizationID uuid.UUID `gorm:"type:uuid;primary_key"`
	Role           string
}

type JoinRequest struct {
	Base
	OrganizationID uuid.UUID `gorm:"index"`
	UserID         uuid.UUID `gorm:"index"`
	Status         string    `gorm:"index"`
	Profile        string    `gorm:"type:jsonb"`
}

type EnrichmentRecord struct {
	Base
	OrganizationID  uuid.UUID `gorm:"index"`
	Source          string
	SourceRef       string
	Status          string `gorm:"index"`
	ErrorMessage    string
	ResultPayload   json.RawMessage `gorm:"type:jsonb"`
	ConfidenceScore *float64
}

type SkillConfig struct {
	Base
	OrganizationID uuid.UUID `gorm:"index:idx_skill_configs_org_kind,unique"`
	Kind           string    `gorm:"index:idx_skill_configs_org_kind,unique"`
	Source         string
	Content        json.RawMessage `gorm:"type:jsonb"`
	Questions      pq.StringArray  `gorm:"type:text[]"`
}

func New() *gormigrate.Migration {
	migrationId := "20250116-0000"
	return CreateMigrationFromActions(migrationId,
		CreateTableAction(&User{}),
		CreateTableAction(&Organization{}),
		CreateTableAction(&UserOrganization{}),
		CreateTableAction(&JoinRequest{}),
		CreateTableAction(&EnrichmentRecord{}),
		CreateTableAction(&SkillConfig{}),

		// one live org per (owner, domain): resubmitting the same website
		// must not create a second organization
		ExecAction(
			`CREATE UNIQUE INDEX IF NOT EXISTS "idx_organizations_owner_domain" ON "organizations" ("owner_id", "domain") WHERE domain IS NOT NULL AND deleted_at IS NULL`,
			`DROP INDEX IF EXISTS idx_organizations_owner_domain`,
		),

		// at most one outstanding pending join request per (user, org)
		ExecAction(
			`CREATE UNIQUE INDEX IF NOT EXISTS "idx_join_requests_pending" ON "join_requests" ("user_id", "organization_id") WHERE status = 'pending' AND deleted_at IS NULL`,
			`DROP INDEX IF EXISTS idx_join_requests_pending`,
		),

		// a provisional organization may only be deleted while it has no
		// members left; enforced here rather than by client-side checks
		ExecActionIf(`
			CREATE OR REPLACE FUNCTION organizations_provisional_delete_guard() RETURNS TRIGGER LANGUAGE plpgsql AS '
			BEGIN
			IF OLD.provisional AND EXISTS (SELECT 1 FROM user_organizations WHERE organization_id = OLD.id) THEN
			RAISE EXCEPTION ''provisional organization still has members'';
			END IF;
			RETURN OLD;
			END;'
		`, `
			DROP FUNCTION IF EXISTS organizations_provisional_delete_guard
		`, NotOnSqlLite),
		ExecActionIf(`
			CREATE OR REPLACE TRIGGER organizations_provisional_delete_guard BEFORE DELETE ON organizations
			FOR EACH ROW EXECUTE PROCEDURE organizations_provisional_delete_guard();
		`, `
			DROP TRIGGER IF EXISTS organizations_provisional_delete_guard ON organizations
		`, NotOnSqlLite),
	)
}
