package authz

import (
	"context"
	"strings"
	"sync"

	"github.com/aarondl/null/v8"

	"clan-backend/internal/entities"
)

// fakeStore: хранилище доступа в памяти для тестов ядра.
type fakeStore struct {
	mu sync.Mutex

	direct      map[uint64][]entities.Permission
	assignments map[uint64]*entities.BranchAssignment
	branchRoles map[uint64][]entities.Role
	owned       map[uint64]*entities.Branch
	err         error

	calls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		direct:      make(map[uint64][]entities.Permission),
		assignments: make(map[uint64]*entities.BranchAssignment),
		branchRoles: make(map[uint64][]entities.Role),
		owned:       make(map[uint64]*entities.Branch),
		calls:       make(map[string]int),
	}
}

func (f *fakeStore) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeStore) DirectPermissions(_ context.Context, userID uint64, resource ResourceType) ([]entities.Permission, error) {
	f.count("direct")
	if f.err != nil {
		return nil, f.err
	}
	var out []entities.Permission
	for _, p := range f.direct[userID] {
		if p.ResourceType == string(resource) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) BranchAssignment(_ context.Context, userID uint64) (*entities.BranchAssignment, error) {
	f.count("assignment")
	if f.err != nil {
		return nil, f.err
	}
	return f.assignments[userID], nil
}

func (f *fakeStore) BranchRoles(_ context.Context, branchIDs []uint64, resource ResourceType) ([]entities.Role, error) {
	f.count("roles")
	if f.err != nil {
		return nil, f.err
	}
	var out []entities.Role
	for _, id := range branchIDs {
		for _, role := range f.branchRoles[id] {
			filtered := role
			filtered.Permissions = nil
			for _, p := range role.Permissions {
				if p.ResourceType == string(resource) {
					filtered.Permissions = append(filtered.Permissions, p)
				}
			}
			out = append(out, filtered)
		}
	}
	return out, nil
}

func (f *fakeStore) OwnedBranch(_ context.Context, userID uint64) (*entities.Branch, error) {
	f.count("owned")
	if f.err != nil {
		return nil, f.err
	}
	return f.owned[userID], nil
}

func (f *fakeStore) grant(userID uint64, perms ...entities.Permission) {
	f.direct[userID] = append(f.direct[userID], perms...)
}

func (f *fakeStore) assign(userID uint64, branches ...uint64) {
	f.assignments[userID] = &entities.BranchAssignment{ID: userID * 10, UserID: userID, BranchIDs: branches}
}

func activeUser(id uint64) *entities.User {
	return &entities.User{ID: id, Email: "user@example.com", IsActive: true}
}

func superuser(id uint64) *entities.User {
	u := activeUser(id)
	u.IsSuperuser = true
	return u
}

// perm собирает право; verbs из букв v, c, e, d.
func perm(id uint64, level entities.AccessLevel, resource ResourceType, verbs string) entities.Permission {
	return entities.Permission{
		ID:           id,
		Level:        level,
		ResourceType: string(resource),
		View:         strings.Contains(verbs, "v"),
		Create:       strings.Contains(verbs, "c"),
		Edit:         strings.Contains(verbs, "e"),
		Delete:       strings.Contains(verbs, "d"),
	}
}

func onObject(p entities.Permission, objectID string) entities.Permission {
	p.ObjectID = null.StringFrom(objectID)
	return p
}

func withFields(p entities.Permission, view, create, edit []string) entities.Permission {
	p.ViewFields = view
	p.CreateFields = create
	p.EditFields = edit
	return p
}
