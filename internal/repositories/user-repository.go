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

const userSelectFields = "u.id, u.uid, u.email, u.username, u.first_name, u.last_name, u.password, u.is_superuser, u.is_active, u.branch_id, u.created_at, u.updated_at, u.deleted_at"

type UserRepositoryInterface interface {
	FindPrincipal(ctx context.Context, id uint64) (*entities.User, error)
	FindByEmail(ctx context.Context, email string) (*entities.User, error)
	UpsertSuperuser(ctx context.Context, user *entities.User) (*entities.User, error)
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(
		&user.ID, &user.UID, &user.Email, &user.Username, &user.FirstName, &user.LastName, &user.Password,
		&user.IsSuperuser, &user.IsActive, &user.BranchID,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindPrincipal: пользователь для auth-middleware. Удалённые не возвращаются.
func (r *UserRepository) FindPrincipal(ctx context.Context, id uint64) (*entities.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u WHERE u.id = $1 AND u.deleted_at IS NULL`, userSelectFields)
	user, err := scanUser(r.storage.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("ошибка загрузки пользователя %d: %w", id, err)
	}
	return user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u WHERE LOWER(u.email) = LOWER($1) AND u.deleted_at IS NULL LIMIT 1`, userSelectFields)
	user, err := scanUser(r.storage.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("ошибка поиска пользователя по email: %w", err)
	}
	return user, nil
}

// UpsertSuperuser создаёт суперпользователя или обновляет пароль и флаги существующего с тем же email.
func (r *UserRepository) UpsertSuperuser(ctx context.Context, user *entities.User) (*entities.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users AS u (email, username, first_name, password, is_superuser, is_active)
		VALUES ($1, $2, $3, $4, TRUE, TRUE)
		ON CONFLICT (email) DO UPDATE
		SET password = EXCLUDED.password, is_superuser = TRUE, is_active = TRUE, deleted_at = NULL, updated_at = now()
		RETURNING %s`, userSelectFields)

	saved, err := scanUser(r.storage.QueryRow(ctx, query, user.Email, user.Username, user.FirstName, user.Password))
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения суперпользователя: %w", err)
	}
	return saved, nil
}
