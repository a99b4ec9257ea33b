package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/entities"
)

// Колонки view/create/edit/delete совпадают с ключевыми словами SQL и всегда в кавычках.
const permissionFields = `p.id, p.uid, p.level, p."view", p."create", p."edit", p."delete", p.resource_type, p.object_id,
	p.view_fields, p.edit_fields, p.create_fields, p.created_at, p.updated_at`

const branchFields = "b.id, b.uid, b.name, b.serial_number, b.email, b.status, b.owner_id, b.role_id, b.created_at, b.updated_at, b.deleted_at"

// AccessRepositoryInterface: чтение модели доступа для authz.
type AccessRepositoryInterface interface {
	authz.Store
}

type AccessRepository struct {
	storage   *pgxpool.Pool
	txManager TxManagerInterface
	logger    *zap.Logger
}

func NewAccessRepository(storage *pgxpool.Pool, txManager TxManagerInterface, logger *zap.Logger) AccessRepositoryInterface {
	return &AccessRepository{storage: storage, txManager: txManager, logger: logger}
}

func scanPermission(row pgx.Row) (*entities.Permission, error) {
	var p entities.Permission
	err := row.Scan(
		&p.ID, &p.UID, &p.Level, &p.View, &p.Create, &p.Edit, &p.Delete, &p.ResourceType, &p.ObjectID,
		&p.ViewFields, &p.EditFields, &p.CreateFields, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func queryPermissions(ctx context.Context, q querier, query string, args ...interface{}) ([]entities.Permission, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entities.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования права: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *AccessRepository) DirectPermissions(ctx context.Context, userID uint64, resource authz.ResourceType) ([]entities.Permission, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1 AND p.resource_type = $2
		ORDER BY p.id`, permissionFields)

	perms, err := queryPermissions(ctx, r.storage, query, userID, string(resource))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса прав пользователя: %w", err)
	}
	return perms, nil
}

func (r *AccessRepository) BranchAssignment(ctx context.Context, userID uint64) (*entities.BranchAssignment, error) {
	var assignment *entities.BranchAssignment

	err := r.txManager.RunInSnapshot(ctx, func(tx pgx.Tx) error {
		var a entities.BranchAssignment
		err := tx.QueryRow(ctx, `
			SELECT id, uid, user_id, created_at, updated_at
			FROM assigned_branches
			WHERE user_id = $1`, userID,
		).Scan(&a.ID, &a.UID, &a.UserID, &a.CreatedAt, &a.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка запроса назначения филиалов: %w", err)
		}

		// Удалённые филиалы в назначение не входят.
		rows, err := tx.Query(ctx, `
			SELECT abb.branch_id
			FROM assigned_branch_branches abb
			JOIN branches b ON b.id = abb.branch_id
			WHERE abb.assigned_branch_id = $1 AND b.deleted_at IS NULL
			ORDER BY abb.branch_id`, a.ID)
		if err != nil {
			return fmt.Errorf("ошибка запроса филиалов назначения: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uint64])
		if err != nil {
			return fmt.Errorf("ошибка сканирования филиалов назначения: %w", err)
		}
		a.BranchIDs = ids
		assignment = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *AccessRepository) BranchRoles(ctx context.Context, branchIDs []uint64, resource authz.ResourceType) ([]entities.Role, error) {
	if len(branchIDs) == 0 {
		return nil, nil
	}

	var roles []entities.Role
	err := r.txManager.RunInSnapshot(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT DISTINCT r.id, r.uid, r.codename, r.name, r.level, r.created_at, r.updated_at
			FROM roles r
			JOIN branches b ON b.role_id = r.id
			WHERE b.id = ANY($1) AND b.deleted_at IS NULL
			ORDER BY r.id`, branchIDs)
		if err != nil {
			return fmt.Errorf("ошибка запроса ролей филиалов: %w", err)
		}
		roles, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entities.Role, error) {
			var role entities.Role
			err := row.Scan(&role.ID, &role.UID, &role.Codename, &role.Name, &role.Level, &role.CreatedAt, &role.UpdatedAt)
			return role, err
		})
		if err != nil {
			return fmt.Errorf("ошибка сканирования роли: %w", err)
		}
		if len(roles) == 0 {
			return nil
		}

		roleIDs := make([]uint64, len(roles))
		index := make(map[uint64]int, len(roles))
		for i, role := range roles {
			roleIDs[i] = role.ID
			index[role.ID] = i
		}

		query := fmt.Sprintf(`
			SELECT rp.role_id, %s
			FROM permissions p
			JOIN role_permissions rp ON rp.permission_id = p.id
			WHERE rp.role_id = ANY($1) AND p.resource_type = $2
			ORDER BY rp.role_id, p.id`, permissionFields)
		permRows, err := tx.Query(ctx, query, roleIDs, string(resource))
		if err != nil {
			return fmt.Errorf("ошибка запроса прав ролей: %w", err)
		}
		defer permRows.Close()

		for permRows.Next() {
			var roleID uint64
			var p entities.Permission
			if err := permRows.Scan(
				&roleID,
				&p.ID, &p.UID, &p.Level, &p.View, &p.Create, &p.Edit, &p.Delete, &p.ResourceType, &p.ObjectID,
				&p.ViewFields, &p.EditFields, &p.CreateFields, &p.CreatedAt, &p.UpdatedAt,
			); err != nil {
				return fmt.Errorf("ошибка сканирования права роли: %w", err)
			}
			i := index[roleID]
			roles[i].Permissions = append(roles[i].Permissions, p)
		}
		return permRows.Err()
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// OwnedBranch: первый по id неудалённый филиал владельца.
func (r *AccessRepository) OwnedBranch(ctx context.Context, userID uint64) (*entities.Branch, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM branches b
		WHERE b.owner_id = $1 AND b.deleted_at IS NULL
		ORDER BY b.id
		LIMIT 1`, branchFields)

	var b entities.Branch
	err := r.storage.QueryRow(ctx, query, userID).Scan(
		&b.ID, &b.UID, &b.Name, &b.SerialNumber, &b.Email, &b.Status, &b.OwnerID, &b.RoleID,
		&b.CreatedAt, &b.UpdatedAt, &b.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса филиала владельца: %w", err)
	}
	return &b, nil
}
