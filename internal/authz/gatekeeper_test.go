package authz

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clan-backend/internal/entities"
	apperrors "clan-backend/pkg/errors"
)

type recordedDecision struct {
	resource ResourceType
	verb     Verb
	outcome  string
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []recordedDecision
}

func (o *recordingObserver) ObserveDecision(resource ResourceType, verb Verb, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, recordedDecision{resource, verb, outcome})
}

func (o *recordingObserver) last() recordedDecision {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.decisions[len(o.decisions)-1]
}

func newTestGatekeeper(t *testing.T, store Store) (*Gatekeeper, *recordingObserver) {
	t.Helper()
	registry, err := DefaultRegistry()
	require.NoError(t, err)
	observer := &recordingObserver{}
	return NewGatekeeper(store, registry, zap.NewNop(), observer), observer
}

func TestBegin_Unauthenticated(t *testing.T) {
	gk, observer := newTestGatekeeper(t, newFakeStore())

	_, err := gk.Begin(context.Background(), nil, ResourceBranches, VerbView, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Equal(t, OutcomeUnauthenticated, observer.last().outcome)
}

func TestBegin_UnregisteredResource(t *testing.T) {
	registry, err := ParseRegistry([]byte(`
resources:
  - key: roles
    table: roles
    columns: [id, name]
`))
	require.NoError(t, err)
	observer := &recordingObserver{}
	gk := NewGatekeeper(newFakeStore(), registry, zap.NewNop(), observer)

	_, err = gk.Begin(context.Background(), superuser(1), ResourceBranches, VerbView, "")
	assert.ErrorIs(t, err, apperrors.ErrConfigurationGap)
	assert.Equal(t, OutcomeMisconfigured, observer.last().outcome)

	_, err = gk.Begin(context.Background(), superuser(1), ResourceType("orders"), VerbView, "")
	assert.ErrorIs(t, err, apperrors.ErrConfigurationGap)
}

func TestBegin_UnregisteredTypesShareOneMetricLabel(t *testing.T) {
	gk, observer := newTestGatekeeper(t, newFakeStore())

	for i := 0; i < 50; i++ {
		_, err := gk.Begin(context.Background(), superuser(1), ResourceType(fmt.Sprintf("junk-%d", i)), VerbView, "")
		require.ErrorIs(t, err, apperrors.ErrConfigurationGap)
	}
	_, err := gk.Begin(context.Background(), nil, ResourceType("junk-anon"), VerbView, "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	labels := make(map[ResourceType]bool)
	for _, d := range observer.decisions {
		labels[d.resource] = true
	}
	assert.Equal(t, map[ResourceType]bool{ResourceUnregistered: true}, labels)
}

func TestBegin_CreateDisabledByRegistry(t *testing.T) {
	gk, observer := newTestGatekeeper(t, newFakeStore())

	_, err := gk.Begin(context.Background(), superuser(1), ResourceStaff, VerbCreate, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, recordedDecision{ResourceStaff, VerbCreate, OutcomeDenied}, observer.last())

	_, err = gk.Begin(context.Background(), superuser(1), ResourceStaff, VerbEdit, "4")
	assert.NoError(t, err)
}

func TestBegin_CapabilityGatesBeforeFields(t *testing.T) {
	store := newFakeStore()
	store.grant(1, withFields(perm(1, entities.LevelAll, ResourceBranches, "e"), []string{"name"}, nil, nil))
	gk, observer := newTestGatekeeper(t, store)

	decision, err := gk.Begin(context.Background(), activeUser(1), ResourceBranches, VerbView, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "view_fields без view не дают доступа")
	assert.Nil(t, decision)
	assert.Equal(t, OutcomeDenied, observer.last().outcome)
}

func TestBegin_AssignedBranchSeesOnlyItsRows(t *testing.T) {
	store := newFakeStore()
	store.grant(1, withFields(perm(1, entities.LevelAssignedBranches, ResourceStaff, "v"), []string{"id", "name"}, nil, nil))
	store.assign(1, 1)
	gk, _ := newTestGatekeeper(t, store)

	decision, err := gk.Begin(context.Background(), activeUser(1), ResourceStaff, VerbView, "")
	require.NoError(t, err)

	rows := []Record{
		{"id": int64(1), "branch_id": int64(1), "name": "x", "secret": "s"},
		{"id": int64(2), "branch_id": int64(2), "name": "y", "secret": "t"},
	}
	var visible []Record
	for _, row := range rows {
		if decision.Admits(row) {
			visible = append(visible, decision.Present(row))
		}
	}
	assert.Equal(t, []Record{{"id": int64(1), "name": "x"}}, visible)
}

func TestBegin_OwnersAreIsolated(t *testing.T) {
	store := newFakeStore()
	store.grant(1, perm(1, entities.LevelOwner, ResourceStaff, "v"))
	store.grant(2, perm(2, entities.LevelOwner, ResourceStaff, "v"))
	store.owned[1] = &entities.Branch{ID: 5}
	store.owned[2] = &entities.Branch{ID: 6}
	gk, _ := newTestGatekeeper(t, store)

	rows := []Record{
		{"id": int64(10), "branch_id": int64(5)},
		{"id": int64(11), "branch_id": int64(6)},
		{"id": int64(12), "branch_id": nil},
	}
	visibleIDs := func(userID uint64) []interface{} {
		decision, err := gk.Begin(context.Background(), activeUser(userID), ResourceStaff, VerbView, "")
		require.NoError(t, err)
		var ids []interface{}
		for _, row := range rows {
			if decision.Admits(row) {
				ids = append(ids, row["id"])
			}
		}
		return ids
	}

	assert.Equal(t, []interface{}{int64(10)}, visibleIDs(1))
	assert.Equal(t, []interface{}{int64(11)}, visibleIDs(2))
}

func TestAuthorize_AddingGrantNeverRevokes(t *testing.T) {
	additions := []struct {
		name  string
		grant entities.Permission
	}{
		{name: "пустое право", grant: perm(2, entities.LevelAll, ResourceBranches, "")},
		{name: "право владельца", grant: perm(3, entities.LevelOwner, ResourceBranches, "e")},
		{name: "право на объект", grant: onObject(perm(4, entities.LevelAll, ResourceBranches, "d"), "9")},
		{name: "право с полями", grant: withFields(perm(5, entities.LevelAll, ResourceBranches, "c"), []string{"name"}, nil, nil)},
		{name: "право другого типа", grant: perm(6, entities.LevelAll, ResourceRoles, "vced")},
	}
	allowedSet := func(store Store) map[string]bool {
		out := make(map[string]bool)
		engine := NewEngine(store)
		for _, objectID := range []string{"", "9"} {
			for _, verb := range Verbs {
				ok, err := engine.AuthorizeObject(context.Background(), activeUser(1), ResourceBranches, verb, objectID)
				require.NoError(t, err)
				out[objectID+":"+string(verb)] = ok
			}
		}
		return out
	}

	for _, tc := range additions {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			store.grant(1, perm(1, entities.LevelAll, ResourceBranches, "v"))
			before := allowedSet(store)

			store.grant(1, tc.grant)
			after := allowedSet(store)

			for key, ok := range before {
				if ok {
					assert.True(t, after[key], key)
				}
			}
		})
	}
}

func TestBegin_Denied(t *testing.T) {
	store := newFakeStore()
	store.grant(1, perm(1, entities.LevelAll, ResourceBranches, "v"))
	gk, observer := newTestGatekeeper(t, store)

	_, err := gk.Begin(context.Background(), activeUser(1), ResourceBranches, VerbDelete, "3")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, recordedDecision{ResourceBranches, VerbDelete, OutcomeDenied}, observer.last())
}

func TestBegin_AssignedBranchesList(t *testing.T) {
	store := newFakeStore()
	store.grant(1, withFields(
		perm(1, entities.LevelAssignedBranches, ResourceStaff, "v"),
		[]string{"id", "email", "branch_id"}, nil, nil,
	))
	store.assign(1, 10, 20)
	gk, observer := newTestGatekeeper(t, store)

	decision, err := gk.Begin(context.Background(), activeUser(1), ResourceStaff, VerbView, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllowed, observer.last().outcome)
	assert.Equal(t, ScopeAssigned, decision.Predicate.Kind)

	sql, args, err := decision.Where().ToSql()
	require.NoError(t, err)
	assert.Equal(t, `"branch_id" IN (?,?)`, sql)
	assert.Equal(t, []interface{}{uint64(10), uint64(20)}, args)

	rows := decision.PresentAll([]Record{
		{"id": int64(1), "email": "a@example.com", "branch_id": int64(10), "first_name": "Анна"},
	})
	assert.Equal(t, []Record{{"id": int64(1), "email": "a@example.com", "branch_id": int64(10)}}, rows)
}

func TestBegin_SessionMemoizesLookups(t *testing.T) {
	store := newFakeStore()
	store.grant(1, perm(1, entities.LevelAssignedBranches, ResourceStaff, "v"))
	store.assign(1, 10)
	gk, _ := newTestGatekeeper(t, store)

	ctx := WithSession(context.Background(), NewSession(store))
	_, err := gk.Begin(ctx, activeUser(1), ResourceStaff, VerbView, "")
	require.NoError(t, err)
	_, err = gk.Begin(ctx, activeUser(1), ResourceStaff, VerbView, "")
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls["direct"])
	assert.Equal(t, 1, store.calls["assignment"])
}

func TestDecision_CheckHidesOutOfScopeObject(t *testing.T) {
	store := newFakeStore()
	store.grant(1, withFields(perm(1, entities.LevelOwner, ResourceBranchSettings, "ve"), []string{"*"}, nil, []string{"fast_delivery"}))
	store.owned[1] = &entities.Branch{ID: 5}
	gk, _ := newTestGatekeeper(t, store)

	decision, err := gk.Begin(context.Background(), activeUser(1), ResourceBranchSettings, VerbEdit, "77")
	require.NoError(t, err)

	assert.NoError(t, decision.Check(Record{"id": int64(77), "branch_id": int64(5)}))
	assert.ErrorIs(t, decision.Check(Record{"id": int64(77), "branch_id": int64(6)}), apperrors.ErrNotFound)
	assert.ErrorIs(t, decision.Check(Record{"id": int64(77), "branch_id": nil}), apperrors.ErrNotFound)
}

func TestDecision_NonBranchScopedResource(t *testing.T) {
	store := newFakeStore()
	store.grant(1, perm(1, entities.LevelOwner, ResourceRoles, "v"))
	gk, _ := newTestGatekeeper(t, store)

	decision, err := gk.Begin(context.Background(), activeUser(1), ResourceRoles, VerbView, "")
	require.NoError(t, err)

	sql, _, err := decision.Where().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "TRUE", sql)
	assert.True(t, decision.Admits(Record{"id": int64(1)}))
}

func TestDecision_Accept(t *testing.T) {
	store := newFakeStore()
	store.grant(1, withFields(
		perm(1, entities.LevelAll, ResourceBranches, "c"),
		nil, []string{"name", "email", "id", "uid"}, nil,
	))
	gk, _ := newTestGatekeeper(t, store)

	decision, err := gk.Begin(context.Background(), activeUser(1), ResourceBranches, VerbCreate, "")
	require.NoError(t, err)

	values, dropped := decision.Accept(Record{
		"name":     "Север",
		"email":    "north@example.com",
		"status":   "ACTIVE",
		"id":       99,
		"uid":      "x",
		"unknown":  true,
		"owner_id": 4,
	})
	assert.Equal(t, Record{"name": "Север", "email": "north@example.com"}, values)
	assert.Equal(t, []string{"id", "owner_id", "status", "uid", "unknown"}, dropped)
}

func TestDecision_DeleteHasNoFields(t *testing.T) {
	store := newFakeStore()
	store.grant(1, withFields(perm(1, entities.LevelAll, ResourceRoles, "d"), []string{"*"}, []string{"*"}, []string{"*"}))
	gk, _ := newTestGatekeeper(t, store)

	decision, err := gk.Begin(context.Background(), activeUser(1), ResourceRoles, VerbDelete, "1")
	require.NoError(t, err)
	assert.True(t, decision.Fields.IsEmpty())
}
