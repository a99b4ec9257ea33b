package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/entities"
	"clan-backend/pkg/customvalidator"
	apperrors "clan-backend/pkg/errors"
	"clan-backend/pkg/eventbus"
	"clan-backend/pkg/utils"
)

// memStore: хранилище доступа в памяти.
type memStore struct {
	mu          sync.Mutex
	direct      map[uint64][]entities.Permission
	assignments map[uint64]*entities.BranchAssignment
	owned       map[uint64]*entities.Branch
	calls       int
}

func newMemStore() *memStore {
	return &memStore{
		direct:      make(map[uint64][]entities.Permission),
		assignments: make(map[uint64]*entities.BranchAssignment),
		owned:       make(map[uint64]*entities.Branch),
	}
}

func (m *memStore) DirectPermissions(_ context.Context, userID uint64, resource authz.ResourceType) ([]entities.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var out []entities.Permission
	for _, p := range m.direct[userID] {
		if p.ResourceType == string(resource) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) BranchAssignment(_ context.Context, userID uint64) (*entities.BranchAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.assignments[userID], nil
}

func (m *memStore) BranchRoles(context.Context, []uint64, authz.ResourceType) ([]entities.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return nil, nil
}

func (m *memStore) OwnedBranch(_ context.Context, userID uint64) (*entities.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.owned[userID], nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// grant выдаёт право; verbs из букв v, c, e, d.
func (m *memStore) grant(userID uint64, id uint64, level entities.AccessLevel, resource authz.ResourceType, verbs string, view, create, edit []string) {
	m.direct[userID] = append(m.direct[userID], entities.Permission{
		ID:           id,
		Level:        level,
		ResourceType: string(resource),
		View:         strings.Contains(verbs, "v"),
		Create:       strings.Contains(verbs, "c"),
		Edit:         strings.Contains(verbs, "e"),
		Delete:       strings.Contains(verbs, "d"),
		ViewFields:   view,
		CreateFields: create,
		EditFields:   edit,
	})
}

func (m *memStore) assign(userID uint64, branches ...uint64) {
	m.assignments[userID] = &entities.BranchAssignment{ID: userID, UserID: userID, BranchIDs: branches}
}

// fakeResourceRepo: таблицы ресурсов в памяти. Условие видимости только запоминается.
type fakeResourceRepo struct {
	rows   map[authz.ResourceType]map[uint64]authz.Record
	nextID int64

	lastRes    *authz.Resource
	lastWhere  sq.Sqlizer
	lastParams utils.QueryParams
	lastValues authz.Record
	created    int
	updated    int
	deleted    int
}

func newFakeResourceRepo() *fakeResourceRepo {
	return &fakeResourceRepo{rows: make(map[authz.ResourceType]map[uint64]authz.Record), nextID: 100}
}

func (f *fakeResourceRepo) put(resource authz.ResourceType, id uint64, row authz.Record) {
	if f.rows[resource] == nil {
		f.rows[resource] = make(map[uint64]authz.Record)
	}
	row["id"] = int64(id)
	f.rows[resource][id] = row
}

func (f *fakeResourceRepo) List(_ context.Context, res *authz.Resource, where sq.Sqlizer, params utils.QueryParams) ([]authz.Record, uint64, error) {
	f.lastRes, f.lastWhere, f.lastParams = res, where, params
	out := make([]authz.Record, 0)
	for _, row := range f.rows[res.Key] {
		out = append(out, row)
	}
	return out, uint64(len(out)), nil
}

func (f *fakeResourceRepo) Find(_ context.Context, res *authz.Resource, id uint64) (authz.Record, error) {
	row, ok := f.rows[res.Key][id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyRecord(row), nil
}

func (f *fakeResourceRepo) Create(_ context.Context, res *authz.Resource, values authz.Record) (authz.Record, error) {
	f.created++
	f.lastValues = values
	f.nextID++
	row := copyRecord(values)
	f.put(res.Key, uint64(f.nextID), row)
	return copyRecord(row), nil
}

func (f *fakeResourceRepo) Update(_ context.Context, res *authz.Resource, id uint64, where sq.Sqlizer, values authz.Record) (authz.Record, error) {
	f.updated++
	f.lastWhere, f.lastValues = where, values
	row, ok := f.rows[res.Key][id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	for k, v := range values {
		row[k] = v
	}
	return copyRecord(row), nil
}

func (f *fakeResourceRepo) Delete(_ context.Context, res *authz.Resource, id uint64, where sq.Sqlizer) error {
	f.deleted++
	f.lastWhere = where
	if _, ok := f.rows[res.Key][id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.rows[res.Key], id)
	return nil
}

func copyRecord(r authz.Record) authz.Record {
	out := make(authz.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type fakeAdminRepo struct {
	calls      []string
	assignment []uint64
}

func (f *fakeAdminRepo) GrantUserPermission(context.Context, uint64, uint64) error {
	f.calls = append(f.calls, "grant")
	return nil
}

func (f *fakeAdminRepo) RevokeUserPermission(context.Context, uint64, uint64) error {
	f.calls = append(f.calls, "revoke")
	return nil
}

func (f *fakeAdminRepo) AttachRolePermission(context.Context, uint64, uint64) error {
	f.calls = append(f.calls, "attach")
	return nil
}

func (f *fakeAdminRepo) DetachRolePermission(context.Context, uint64, uint64) error {
	f.calls = append(f.calls, "detach")
	return nil
}

func (f *fakeAdminRepo) SetAssignmentBranches(_ context.Context, userID uint64, branchIDs []uint64) (*entities.BranchAssignment, error) {
	f.calls = append(f.calls, "assign")
	f.assignment = branchIDs
	return &entities.BranchAssignment{ID: 1, UserID: userID, BranchIDs: branchIDs}, nil
}

func (f *fakeAdminRepo) UpsertRole(_ context.Context, codename, name string, level entities.AccessLevel) (*entities.Role, error) {
	return &entities.Role{ID: 1, Codename: codename, Name: name, Level: level}, nil
}

type recordingPublisher struct {
	events []eventbus.Event
}

func (p *recordingPublisher) PublishSync(_ context.Context, event eventbus.Event) error {
	p.events = append(p.events, event)
	return nil
}

func testRegistry(t *testing.T) *authz.Registry {
	t.Helper()
	registry, err := authz.DefaultRegistry()
	require.NoError(t, err)
	return registry
}

func testValidator(t *testing.T, registry *authz.Registry) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, customvalidator.RegisterCustomValidations(v, registry))
	return v
}

func testGatekeeper(t *testing.T, store authz.Store) *authz.Gatekeeper {
	t.Helper()
	return authz.NewGatekeeper(store, testRegistry(t), zap.NewNop(), nil)
}

func staffUser(id uint64) *entities.User {
	return &entities.User{ID: id, Email: "staff@example.com", Username: "staff", IsActive: true}
}

func asUser(u *entities.User) context.Context {
	return authz.WithPrincipal(context.Background(), u)
}
