package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clan-backend/internal/entities"
)

func TestAuthorize_Unauthenticated(t *testing.T) {
	store := newFakeStore()
	store.grant(1, perm(1, entities.LevelAll, ResourceBranches, "vced"))
	engine := NewEngine(store)
	ctx := context.Background()

	deleted := activeUser(1)
	now := time.Now()
	deleted.DeletedAt = &now

	inactive := activeUser(1)
	inactive.IsActive = false

	cases := map[string]*entities.User{
		"nil":      nil,
		"zero id":  {IsActive: true},
		"inactive": inactive,
		"deleted":  deleted,
	}
	for name, principal := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := engine.Authorize(ctx, principal, ResourceBranches, VerbView)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
	assert.Zero(t, store.calls["direct"], "неаутентифицированный запрос не должен обращаться к хранилищу")
}

func TestAuthorize_SuperuserSkipsStore(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)

	for _, verb := range Verbs {
		ok, err := engine.Authorize(context.Background(), superuser(1), ResourceStaff, verb)
		require.NoError(t, err)
		assert.True(t, ok, verb)
	}
	assert.Empty(t, store.calls)
}

func TestAuthorize_DirectPermission(t *testing.T) {
	store := newFakeStore()
	store.grant(5, perm(1, entities.LevelAll, ResourceBranches, "v"))
	engine := NewEngine(store)
	ctx := context.Background()

	ok, err := engine.Authorize(ctx, activeUser(5), ResourceBranches, VerbView)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Authorize(ctx, activeUser(5), ResourceBranches, VerbEdit)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = engine.Authorize(ctx, activeUser(5), ResourceStaff, VerbView)
	require.NoError(t, err)
	assert.False(t, ok, "право на другой тип ресурса не действует")
}

func TestAuthorize_AnyDirectPermissionGrants(t *testing.T) {
	store := newFakeStore()
	store.grant(5,
		perm(1, entities.LevelOwner, ResourceBranches, "v"),
		perm(2, entities.LevelOwner, ResourceBranches, "d"),
	)
	ok, err := NewEngine(store).Authorize(context.Background(), activeUser(5), ResourceBranches, VerbDelete)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorize_ViaBranchRole(t *testing.T) {
	store := newFakeStore()
	store.assign(7, 100, 200)
	store.branchRoles[200] = []entities.Role{{
		ID:          1,
		Codename:    "branch-manager",
		Level:       entities.LevelAssignedBranches,
		Permissions: []entities.Permission{perm(10, entities.LevelAll, ResourceStaff, "ve")},
	}}
	engine := NewEngine(store)
	ctx := context.Background()

	ok, err := engine.Authorize(ctx, activeUser(7), ResourceStaff, VerbEdit)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Authorize(ctx, activeUser(7), ResourceStaff, VerbDelete)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = engine.Authorize(ctx, activeUser(7), ResourceBranches, VerbView)
	require.NoError(t, err)
	assert.False(t, ok, "права роли на другой тип ресурса не учитываются")
}

func TestAuthorize_RoleLevelsMustBeBranchWide(t *testing.T) {
	cases := []struct {
		name      string
		roleLevel entities.AccessLevel
		permLevel entities.AccessLevel
		want      bool
	}{
		{"all/all", entities.LevelAll, entities.LevelAll, true},
		{"assigned/assigned", entities.LevelAssignedBranches, entities.LevelAssignedBranches, true},
		{"owner role", entities.LevelOwner, entities.LevelAll, false},
		{"owner permission", entities.LevelAll, entities.LevelOwner, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			store.assign(3, 1)
			store.branchRoles[1] = []entities.Role{{
				ID:          1,
				Level:       tc.roleLevel,
				Permissions: []entities.Permission{perm(1, tc.permLevel, ResourceBranchSettings, "v")},
			}}
			ok, err := NewEngine(store).Authorize(context.Background(), activeUser(3), ResourceBranchSettings, VerbView)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestAuthorize_NoAssignmentIsDenyNotError(t *testing.T) {
	store := newFakeStore()
	ok, err := NewEngine(store).Authorize(context.Background(), activeUser(3), ResourceBranches, VerbView)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.calls["roles"])
}

func TestAuthorizeObject_ObjectGrant(t *testing.T) {
	store := newFakeStore()
	store.grant(4, onObject(perm(1, entities.LevelAll, ResourceBranches, "ve"), "7"))
	engine := NewEngine(store)
	ctx := context.Background()

	ok, err := engine.AuthorizeObject(ctx, activeUser(4), ResourceBranches, VerbEdit, "7")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.AuthorizeObject(ctx, activeUser(4), ResourceBranches, VerbEdit, "8")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = engine.Authorize(ctx, activeUser(4), ResourceBranches, VerbView)
	require.NoError(t, err)
	assert.False(t, ok, "право на объект не даёт доступа ко всему типу")
}

func TestAuthorize_StoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")

	ok, err := NewEngine(store).Authorize(context.Background(), activeUser(1), ResourceBranches, VerbView)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestResolvePermission(t *testing.T) {
	typeWide := perm(1, entities.LevelAll, ResourceBranches, "v")
	second := perm(2, entities.LevelOwner, ResourceBranches, "v")
	object := onObject(perm(3, entities.LevelOwner, ResourceBranches, "v"), "9")

	p, ok := resolvePermission([]entities.Permission{typeWide, second, object}, "9")
	require.True(t, ok)
	assert.Equal(t, uint64(3), p.ID)

	p, ok = resolvePermission([]entities.Permission{object, typeWide, second}, "")
	require.True(t, ok)
	assert.Equal(t, uint64(1), p.ID, "без объекта берётся первое право на весь тип")

	_, ok = resolvePermission([]entities.Permission{object}, "")
	assert.False(t, ok)

	_, ok = resolvePermission(nil, "1")
	assert.False(t, ok)
}
