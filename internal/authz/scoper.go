package authz

import (
	"context"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"clan-backend/internal/entities"
)

// ScopeKind: вид ограничения строк.
type ScopeKind string

const (
	ScopeNone     ScopeKind = "NONE"
	ScopeAll      ScopeKind = "ALL"
	ScopeAssigned ScopeKind = "ASSIGNED_BRANCHES"
	ScopeOwner    ScopeKind = "OWNER"
)

// RowPredicate: какие строки типа ресурса видит принципал.
// Для ScopeAssigned и ScopeOwner Branches содержит допустимые филиалы.
type RowPredicate struct {
	Kind     ScopeKind `json:"kind"`
	Branches []uint64  `json:"branches,omitempty"`
}

func AllRows() RowPredicate { return RowPredicate{Kind: ScopeAll} }
func NoRows() RowPredicate { return RowPredicate{Kind: ScopeNone} }

func BranchRows(kind ScopeKind, branches ...uint64) RowPredicate {
	return RowPredicate{Kind: kind, Branches: append([]uint64(nil), branches...)}
}

// Sqlizer превращает предикат в условие WHERE по колонке филиала.
// Условие применяется в запросе до выборки строк, а не фильтром в памяти.
func (p RowPredicate) Sqlizer(branchColumn string) sq.Sqlizer {
	switch p.Kind {
	case ScopeAll:
		return sq.Expr("TRUE")
	case ScopeAssigned, ScopeOwner:
		if len(p.Branches) == 0 {
			return sq.Expr("FALSE")
		}
		if len(p.Branches) == 1 {
			return sq.Eq{branchColumn: p.Branches[0]}
		}
		return sq.Eq{branchColumn: p.Branches}
	}
	return sq.Expr("FALSE")
}

// Admits: проходит ли строка с данным филиалом через предикат (повторная проверка объекта).
func (p RowPredicate) Admits(branchID *uint64) bool {
	switch p.Kind {
	case ScopeAll:
		return true
	case ScopeAssigned, ScopeOwner:
		if branchID == nil {
			return false
		}
		for _, b := range p.Branches {
			if b == *branchID {
				return true
			}
		}
	}
	return false
}

// AdmitsValue: Admits для значения колонки, прочитанного из БД или JSON.
func (p RowPredicate) AdmitsValue(v interface{}) bool {
	if p.Kind == ScopeAll {
		return true
	}
	id, ok := toUint64(v)
	if !ok {
		return false
	}
	return p.Admits(&id)
}

// Scoper вычисляет предикат строк для принципала и типа ресурса.
type Scoper struct {
	store Store
}

func NewScoper(store Store) *Scoper {
	return &Scoper{store: store}
}

func (s *Scoper) Scope(ctx context.Context, principal *entities.User, resource ResourceType) (RowPredicate, error) {
	return s.ScopeObject(ctx, principal, resource, "")
}

// ScopeObject: предикат с учётом права, выданного на конкретный объект.
func (s *Scoper) ScopeObject(ctx context.Context, principal *entities.User, resource ResourceType, objectID string) (RowPredicate, error) {
	if !principal.IsAuthenticated() {
		return NoRows(), nil
	}
	if principal.IsSuperuser {
		return AllRows(), nil
	}

	perms, err := s.store.DirectPermissions(ctx, principal.ID, resource)
	if err != nil {
		return NoRows(), fmt.Errorf("права пользователя %d на %s: %w", principal.ID, resource, err)
	}
	perm, ok := resolvePermission(perms, objectID)
	if !ok {
		return NoRows(), nil
	}

	switch perm.Level {
	case entities.LevelAll:
		return AllRows(), nil

	case entities.LevelAssignedBranches:
		assignment, err := s.store.BranchAssignment(ctx, principal.ID)
		if err != nil {
			return NoRows(), fmt.Errorf("назначение филиалов пользователя %d: %w", principal.ID, err)
		}
		if assignment == nil {
			return NoRows(), nil
		}
		return BranchRows(ScopeAssigned, assignment.BranchIDs...), nil

	case entities.LevelOwner:
		branch, err := s.store.OwnedBranch(ctx, principal.ID)
		if err != nil {
			return NoRows(), fmt.Errorf("филиал владельца %d: %w", principal.ID, err)
		}
		if branch == nil {
			return NoRows(), nil
		}
		return BranchRows(ScopeOwner, branch.ID), nil
	}

	return NoRows(), nil
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case *uint64:
		if n == nil {
			return 0, false
		}
		return *n, true
	case int64:
		return uint64(n), n >= 0
	case int32:
		return uint64(n), n >= 0
	case int:
		return uint64(n), n >= 0
	case uint32:
		return uint64(n), true
	case float64:
		return uint64(n), n >= 0 && n == float64(uint64(n))
	case string:
		id, err := strconv.ParseUint(n, 10, 64)
		return id, err == nil
	}
	return 0, false
}
