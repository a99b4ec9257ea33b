package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"clan-backend/internal/entities"
	apperrors "clan-backend/pkg/errors"
)

// AccessAdminRepositoryInterface: изменение связей модели доступа.
type AccessAdminRepositoryInterface interface {
	GrantUserPermission(ctx context.Context, userID, permissionID uint64) error
	RevokeUserPermission(ctx context.Context, userID, permissionID uint64) error
	AttachRolePermission(ctx context.Context, roleID, permissionID uint64) error
	DetachRolePermission(ctx context.Context, roleID, permissionID uint64) error
	SetAssignmentBranches(ctx context.Context, userID uint64, branchIDs []uint64) (*entities.BranchAssignment, error)
	UpsertRole(ctx context.Context, codename, name string, level entities.AccessLevel) (*entities.Role, error)
}

type AccessAdminRepository struct {
	storage   *pgxpool.Pool
	txManager TxManagerInterface
	logger    *zap.Logger
}

func NewAccessAdminRepository(storage *pgxpool.Pool, txManager TxManagerInterface, logger *zap.Logger) AccessAdminRepositoryInterface {
	return &AccessAdminRepository{storage: storage, txManager: txManager, logger: logger}
}

// Повторная выдача уже выданного права не ошибка.
func (r *AccessAdminRepository) GrantUserPermission(ctx context.Context, userID, permissionID uint64) error {
	_, err := r.storage.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, permissionID)
	if err != nil {
		return fmt.Errorf("ошибка выдачи права %d пользователю %d: %w", permissionID, userID, err)
	}
	return nil
}

func (r *AccessAdminRepository) RevokeUserPermission(ctx context.Context, userID, permissionID uint64) error {
	tag, err := r.storage.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return fmt.Errorf("ошибка отзыва права %d у пользователя %d: %w", permissionID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *AccessAdminRepository) AttachRolePermission(ctx context.Context, roleID, permissionID uint64) error {
	_, err := r.storage.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("ошибка привязки права %d к роли %d: %w", permissionID, roleID, err)
	}
	return nil
}

func (r *AccessAdminRepository) DetachRolePermission(ctx context.Context, roleID, permissionID uint64) error {
	tag, err := r.storage.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("ошибка отвязки права %d от роли %d: %w", permissionID, roleID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetAssignmentBranches заменяет список филиалов назначения пользователя целиком.
// Назначение создаётся, если его ещё нет.
func (r *AccessAdminRepository) SetAssignmentBranches(ctx context.Context, userID uint64, branchIDs []uint64) (*entities.BranchAssignment, error) {
	var assignment entities.BranchAssignment

	err := r.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO assigned_branches (user_id)
			VALUES ($1)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
			RETURNING id, uid, user_id, created_at, updated_at`, userID,
		).Scan(&assignment.ID, &assignment.UID, &assignment.UserID, &assignment.CreatedAt, &assignment.UpdatedAt)
		if err != nil {
			return fmt.Errorf("ошибка сохранения назначения: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM assigned_branch_branches WHERE assigned_branch_id = $1`, assignment.ID); err != nil {
			return fmt.Errorf("ошибка очистки филиалов назначения: %w", err)
		}

		if len(branchIDs) > 0 {
			rows := make([][]interface{}, len(branchIDs))
			for i, id := range branchIDs {
				rows[i] = []interface{}{assignment.ID, id}
			}
			_, err := tx.CopyFrom(ctx,
				pgx.Identifier{"assigned_branch_branches"},
				[]string{"assigned_branch_id", "branch_id"},
				pgx.CopyFromRows(rows),
			)
			if err != nil {
				return fmt.Errorf("ошибка записи филиалов назначения: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	assignment.BranchIDs = append([]uint64(nil), branchIDs...)
	return &assignment, nil
}

func (r *AccessAdminRepository) UpsertRole(ctx context.Context, codename, name string, level entities.AccessLevel) (*entities.Role, error) {
	var role entities.Role
	err := r.storage.QueryRow(ctx, `
		INSERT INTO roles (codename, name, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (codename) DO UPDATE SET name = EXCLUDED.name, level = EXCLUDED.level, updated_at = now()
		RETURNING id, uid, codename, name, level, created_at, updated_at`, codename, name, string(level),
	).Scan(&role.ID, &role.UID, &role.Codename, &role.Name, &role.Level, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сохранения роли %s: %w", codename, err)
	}
	return &role, nil
}
