package authz

import (
	"context"
	"fmt"
	"sync"

	"clan-backend/internal/entities"
	"clan-backend/pkg/contextkeys"
)

// Store: read-only доступ ядра к правам, ролям, назначениям и филиалам.
// "Нет записи" считается нормальным результатом (пустой срез или nil без ошибки).
// Ошибка возвращается только при недоступности хранилища.
type Store interface {
	// DirectPermissions: права, выданные пользователю напрямую на тип ресурса, по возрастанию id.
	DirectPermissions(ctx context.Context, userID uint64, resource ResourceType) ([]entities.Permission, error)
	// BranchAssignment: назначение пользователя на филиалы или nil.
	BranchAssignment(ctx context.Context, userID uint64) (*entities.BranchAssignment, error)
	// BranchRoles: роли филиалов branchIDs; в Permissions только права на resource.
	BranchRoles(ctx context.Context, branchIDs []uint64, resource ResourceType) ([]entities.Role, error)
	// OwnedBranch: филиал, которым владеет пользователь, или nil.
	OwnedBranch(ctx context.Context, userID uint64) (*entities.Branch, error)
}

// Session запоминает результаты Store в пределах одного запроса,
// чтобы шаги конвейера не повторяли одни и те же запросы.
// Между запросами Session не переиспользуется.
type Session struct {
	store Store

	mu          sync.Mutex
	direct      map[string][]entities.Permission
	assignments map[uint64]*entities.BranchAssignment
	owned       map[uint64]*entities.Branch
	roles       map[string][]entities.Role
}

func NewSession(store Store) *Session {
	return &Session{
		store:       store,
		direct:      make(map[string][]entities.Permission),
		assignments: make(map[uint64]*entities.BranchAssignment),
		owned:       make(map[uint64]*entities.Branch),
		roles:       make(map[string][]entities.Role),
	}
}

func (s *Session) DirectPermissions(ctx context.Context, userID uint64, resource ResourceType) ([]entities.Permission, error) {
	key := fmt.Sprintf("%d:%s", userID, resource)
	s.mu.Lock()
	if perms, ok := s.direct[key]; ok {
		s.mu.Unlock()
		return perms, nil
	}
	s.mu.Unlock()

	perms, err := s.store.DirectPermissions(ctx, userID, resource)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.direct[key] = perms
	s.mu.Unlock()
	return perms, nil
}

func (s *Session) BranchAssignment(ctx context.Context, userID uint64) (*entities.BranchAssignment, error) {
	s.mu.Lock()
	if a, ok := s.assignments[userID]; ok {
		s.mu.Unlock()
		return a, nil
	}
	s.mu.Unlock()

	a, err := s.store.BranchAssignment(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.assignments[userID] = a
	s.mu.Unlock()
	return a, nil
}

func (s *Session) BranchRoles(ctx context.Context, branchIDs []uint64, resource ResourceType) ([]entities.Role, error) {
	key := fmt.Sprintf("%v:%s", branchIDs, resource)
	s.mu.Lock()
	if roles, ok := s.roles[key]; ok {
		s.mu.Unlock()
		return roles, nil
	}
	s.mu.Unlock()

	roles, err := s.store.BranchRoles(ctx, branchIDs, resource)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.roles[key] = roles
	s.mu.Unlock()
	return roles, nil
}

func (s *Session) OwnedBranch(ctx context.Context, userID uint64) (*entities.Branch, error) {
	s.mu.Lock()
	if b, ok := s.owned[userID]; ok {
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	b, err := s.store.OwnedBranch(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.owned[userID] = b
	s.mu.Unlock()
	return b, nil
}

type sessionKey struct{}

// WithSession кладёт сессию запроса в контекст.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom достаёт сессию запроса; если её нет, создаёт одноразовую поверх store.
func SessionFrom(ctx context.Context, store Store) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return s
	}
	return NewSession(store)
}

// PrincipalFrom достаёт принципала, положенного auth-middleware.
func PrincipalFrom(ctx context.Context) *entities.User {
	u, _ := ctx.Value(contextkeys.PrincipalKey).(*entities.User)
	return u
}

// WithPrincipal кладёт принципала в контекст.
func WithPrincipal(ctx context.Context, u *entities.User) context.Context {
	return context.WithValue(ctx, contextkeys.PrincipalKey, u)
}
