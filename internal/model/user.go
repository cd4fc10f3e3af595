package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role codes for workflow actors
const (
	RoleInitiativeLead = "IL"   // Initiative Lead
	RoleSiteTSDLead    = "STLD" // Site TSD Lead
	RoleHOD            = "HOD"  // Head of Department / Engineering Head
	RoleSiteHead       = "SH"   // Site Head
	RoleCorporateTSD   = "CTSD" // Corporate TSD
	RoleFinance        = "F&A"  // Finance & Accounts
	RoleViewer         = "VIEWER"
	RoleAdmin          = "ADMIN"
)

// AllRoles lists every valid role code — used for request validation and
// websocket/middleware role checks.
var AllRoles = []string{
	RoleInitiativeLead,
	RoleSiteTSDLead,
	RoleHOD,
	RoleSiteHead,
	RoleCorporateTSD,
	RoleFinance,
	RoleViewer,
	RoleAdmin,
}

// IsValidRole reports whether the role code is one of the known role codes
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a workflow actor. Role + Site jointly determine who may act
// on a pending workflow transaction.
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName   string         `gorm:"type:varchar(255);not null" json:"full_name"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Site       string         `gorm:"type:varchar(10);not null;index" json:"site"`
	Discipline string         `gorm:"type:varchar(10)" json:"discipline"`
	Role       string         `gorm:"type:varchar(10);not null;index" json:"role"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// BeforeCreate assigns the UUID primary key client-side so the same models
// work on both the postgres and sqlite drivers.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// AuthenticatedActor carries the already-authenticated caller identity into
// every core operation. The engine never reads identity from ambient state.
type AuthenticatedActor struct {
	ID    uuid.UUID
	Email string
	Role  string
	Site  string
}
