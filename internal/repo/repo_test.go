package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

type ctxKey struct{}

func TestBaseBindsContextAndTx(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	assert.Equal(t, ctx, base.DB(ctx).Statement.Context)
	assert.Same(t, db, base.DB(nil))

	assert.Equal(t, base, base.WithTx(nil))
	tx := db.Session(&gorm.Session{})
	assert.Same(t, tx, base.WithTx(tx).db)
}

func TestUpdateByID(t *testing.T) {
	db := dbtest.Open(t)
	category := models.Category{ID: 7, Name: "Phones"}
	require.NoError(t, db.Create(&category).Error)

	require.NoError(t, UpdateByID[models.Category](db, 7, map[string]any{"name": "Smartphones"}))
	var stored models.Category
	require.NoError(t, db.First(&stored, 7).Error)
	assert.Equal(t, "Smartphones", stored.Name)

	err := UpdateByID[models.Category](db, 8, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestInsertOrGetReturnsExistingRow(t *testing.T) {
	db := dbtest.Open(t)

	first := models.Parameter{Name: "RAM"}
	require.NoError(t, InsertOrGet(db, &first, []string{"name"}, "name = ?", "RAM"))
	require.NotZero(t, first.ID)

	second := models.Parameter{Name: "RAM"}
	require.NoError(t, InsertOrGet(db, &second, []string{"name"}, "name = ?", "RAM"))
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Parameter{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
