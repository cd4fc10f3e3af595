package model

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// All entities must migrate on the sqlite driver as well as postgres, which
// rules out DB-side default expressions in the gorm tags. Primary keys come
// from the BeforeCreate hooks instead.
func TestEntitiesMigrateOnSqlite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	entities := []interface{}{
		&User{},
		&RefreshToken{},
		&Initiative{},
		&WorkflowTransaction{},
		&TimelineEntry{},
		&MonthlyMonitoringEntry{},
		&AuditLog{},
	}
	for _, e := range entities {
		require.NoError(t, db.AutoMigrate(e), "%T", e)
	}

	u := &User{Email: "walk@company.test", FullName: "W", Password: "x", Site: "NDS", Role: RoleViewer}
	require.NoError(t, db.Create(u).Error)
	assert.NotEqual(t, uuid.Nil, u.ID)

	i := &Initiative{InitiativeNumber: "OPEX-NDS-26-001", Title: "t", Site: "NDS", Discipline: "EG", BudgetType: BudgetTypeBudgeted}
	require.NoError(t, db.Create(i).Error)
	assert.NotEqual(t, uuid.Nil, i.ID)
}
