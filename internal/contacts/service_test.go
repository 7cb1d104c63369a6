package contacts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

func TestServiceCreateAndListScopesByOwner(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	alice := seedUser(t, conn, "alice@example.com", enums.RoleCustomer)
	bob := seedUser(t, conn, "bob@example.com", enums.RoleCustomer)
	staff := seedUser(t, conn, "staff@example.com", enums.RoleStaff)

	_, err := svc.Create(ctx, alice, CreateRequest{City: "Moscow", Street: "Tverskaya", Phone: "+79990000000"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, CreateRequest{City: "Kazan", Street: "Baumana", Phone: "+79991111111"})
	require.NoError(t, err)

	own, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Moscow", own[0].City)

	all, err := svc.List(ctx, staff)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestServiceCreateRequiresFields(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)
	alice := seedUser(t, conn, "alice@example.com", enums.RoleCustomer)

	_, err := svc.Create(context.Background(), alice, CreateRequest{City: "  ", Street: "x", Phone: "1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(context.Background(), nil, CreateRequest{City: "a", Street: "b", Phone: "c"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceUpdateAndDeleteEnforceOwnership(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	alice := seedUser(t, conn, "alice@example.com", enums.RoleCustomer)
	bob := seedUser(t, conn, "bob@example.com", enums.RoleCustomer)
	staff := seedUser(t, conn, "staff@example.com", enums.RoleStaff)

	created, err := svc.Create(ctx, alice, CreateRequest{City: "Moscow", Street: "Arbat", Phone: "1"})
	require.NoError(t, err)

	city := "Tula"
	_, err = svc.Update(ctx, bob, created.ID, UpdateRequest{City: &city})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	updated, err := svc.Update(ctx, alice, created.ID, UpdateRequest{City: &city})
	require.NoError(t, err)
	assert.Equal(t, "Tula", updated.City)
	assert.Equal(t, "Arbat", updated.Street)

	empty := ""
	_, err = svc.Update(ctx, alice, created.ID, UpdateRequest{Phone: &empty})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.Delete(ctx, bob, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, staff, created.ID))
	left, err := svc.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, conn *gorm.DB, email string, role enums.Role) *authz.Principal {
	t.Helper()
	user := models.User{ID: uuid.New(), Email: email, PasswordHash: "x", FirstName: "F", LastName: "L", Role: role, IsActive: true}
	require.NoError(t, conn.Create(&user).Error)
	return &authz.Principal{UserID: user.ID, Role: role}
}
