package authz

import (
	"context"
	"fmt"

	"clan-backend/internal/entities"
)

// Engine решает, может ли принципал выполнить глагол над типом ресурса.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// allows: выставлен ли у права флаг, соответствующий глаголу.
func allows(p entities.Permission, verb Verb) bool {
	switch verb {
	case VerbView:
		return p.View
	case VerbCreate:
		return p.Create
	case VerbEdit:
		return p.Edit
	case VerbDelete:
		return p.Delete
	}
	return false
}

// branchWide: уровни, которые распространяются на роли назначенных филиалов.
func branchWide(level entities.AccessLevel) bool {
	return level == entities.LevelAll || level == entities.LevelAssignedBranches
}

// Authorize: проверка на уровне типа ресурса (список, создание).
func (e *Engine) Authorize(ctx context.Context, principal *entities.User, resource ResourceType, verb Verb) (bool, error) {
	return e.AuthorizeObject(ctx, principal, resource, verb, "")
}

// AuthorizeObject: проверка для конкретного объекта. Помимо прав на весь тип
// учитываются права, выданные именно на objectID.
func (e *Engine) AuthorizeObject(ctx context.Context, principal *entities.User, resource ResourceType, verb Verb, objectID string) (bool, error) {
	// Этап 1: Аутентификация
	if !principal.IsAuthenticated() {
		return false, nil
	}

	// Этап 2: Superuser
	if principal.IsSuperuser {
		return true, nil
	}

	// Этап 3: Прямые права пользователя
	direct, err := e.store.DirectPermissions(ctx, principal.ID, resource)
	if err != nil {
		return false, fmt.Errorf("прямые права пользователя %d: %w", principal.ID, err)
	}
	for _, p := range direct {
		if p.AppliesTo(objectID) && allows(p, verb) {
			return true, nil
		}
	}

	// Этап 4: Права через роли назначенных филиалов
	return e.roleAllows(ctx, principal, resource, verb, objectID)
}

func (e *Engine) roleAllows(ctx context.Context, principal *entities.User, resource ResourceType, verb Verb, objectID string) (bool, error) {
	assignment, err := e.store.BranchAssignment(ctx, principal.ID)
	if err != nil {
		return false, fmt.Errorf("назначение филиалов пользователя %d: %w", principal.ID, err)
	}
	// Без назначения проверять нечего. Это не ошибка.
	if assignment == nil || len(assignment.BranchIDs) == 0 {
		return false, nil
	}

	roles, err := e.store.BranchRoles(ctx, assignment.BranchIDs, resource)
	if err != nil {
		return false, fmt.Errorf("роли филиалов пользователя %d: %w", principal.ID, err)
	}

	for _, role := range roles {
		if !branchWide(role.Level) {
			continue
		}
		for _, p := range role.Permissions {
			if p.ResourceType != string(resource) || !branchWide(p.Level) || !p.AppliesTo(objectID) {
				continue
			}
			if allows(p, verb) {
				return true, nil
			}
		}
	}
	return false, nil
}

// resolvePermission: право, по которому определяются уровень и списки полей.
// Право на конкретный объект важнее права на весь тип; среди равных берётся первое по id.
func resolvePermission(perms []entities.Permission, objectID string) (entities.Permission, bool) {
	if objectID != "" {
		for _, p := range perms {
			if p.ObjectID.Valid && p.ObjectID.String == objectID {
				return p, true
			}
		}
	}
	for _, p := range perms {
		if !p.ObjectID.Valid || p.ObjectID.String == "" {
			return p, true
		}
	}
	return entities.Permission{}, false
}
