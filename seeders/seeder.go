package seeders

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"clan-backend/internal/entities"
)

// SuperuserWriter: то, что нужно сидеру суперпользователя от репозитория пользователей.
type SuperuserWriter interface {
	UpsertSuperuser(ctx context.Context, user *entities.User) (*entities.User, error)
}

// RoleWriter: то, что нужно сидеру ролей от репозитория модели доступа.
type RoleWriter interface {
	UpsertRole(ctx context.Context, codename, name string, level entities.AccessLevel) (*entities.Role, error)
}

type Seeder struct {
	users  SuperuserWriter
	roles  RoleWriter
	logger *zap.Logger
}

func New(users SuperuserWriter, roles RoleWriter, logger *zap.Logger) *Seeder {
	return &Seeder{users: users, roles: roles, logger: logger}
}

// SeedAll: роли, затем суперпользователь. Повторный запуск ничего не ломает.
func (s *Seeder) SeedAll(ctx context.Context, email, password string) error {
	if err := s.SeedRoles(ctx); err != nil {
		return fmt.Errorf("роли: %w", err)
	}
	if err := s.SeedSuperuser(ctx, email, password); err != nil {
		return fmt.Errorf("суперпользователь: %w", err)
	}
	return nil
}
