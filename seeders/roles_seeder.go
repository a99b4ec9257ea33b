package seeders

import (
	"context"

	"go.uber.org/zap"

	"clan-backend/internal/entities"
)

type roleSeed struct {
	Codename string
	Name     string
	Level    entities.AccessLevel
}

// Роли по умолчанию. Права к ним привязываются через администрирование доступа.
var rolesData = []roleSeed{
	{Codename: "branch-manager", Name: "Менеджер филиалов", Level: entities.LevelAssignedBranches},
	{Codename: "branch-owner", Name: "Владелец филиала", Level: entities.LevelOwner},
}

func (s *Seeder) SeedRoles(ctx context.Context) error {
	s.logger.Info("Наполнение таблицы roles")
	for _, r := range rolesData {
		role, err := s.roles.UpsertRole(ctx, r.Codename, r.Name, r.Level)
		if err != nil {
			return err
		}
		s.logger.Info("Роль сохранена", zap.String("codename", role.Codename), zap.Uint64("id", role.ID))
	}
	return nil
}
