package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "  Buyer@Example.com ",
		PasswordHash: "hash",
		FirstName:    "Ivan",
		LastName:     "Petrov",
		Role:         enums.RoleShop,
	})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", created.Email)

	found, err := repo.FindByEmail(ctx, "BUYER@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, enums.RoleShop, found.Role)
	assert.False(t, found.IsActive)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ivan", byID.FirstName)
}

func TestRepositoryActivateAndLastLogin(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "a@example.com", PasswordHash: "h", FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleCustomer, user.Role)

	require.NoError(t, repo.Activate(ctx, user.ID))
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, time.Now()))

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	require.NotNil(t, stored.LastLoginAt)
}

func TestRepositoryUpdateProfilePartial(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "p@example.com", PasswordHash: "h", FirstName: "Old", LastName: "Name", Company: "Acme"})
	require.NoError(t, err)

	first := "New"
	updated, err := repo.UpdateProfile(ctx, user.ID, ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.FirstName)
	assert.Equal(t, "Name", updated.LastName)
	assert.Equal(t, "Acme", updated.Company)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
