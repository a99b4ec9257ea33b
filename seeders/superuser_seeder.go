package seeders

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"clan-backend/internal/entities"
	"clan-backend/pkg/utils"
)

// SeedSuperuser создаёт суперпользователя или обновляет его пароль.
// При пустом email или пароле сидер пропускается.
func (s *Seeder) SeedSuperuser(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		s.logger.Info("SUPERUSER_EMAIL или SUPERUSER_PASSWORD не заданы, суперпользователь не создаётся")
		return nil
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	username := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		username = email[:at]
	}
	user, err := s.users.UpsertSuperuser(ctx, &entities.User{
		Email:     email,
		Username:  username,
		FirstName: "Администратор",
		Password:  hashedPassword,
	})
	if err != nil {
		return err
	}
	s.logger.Info("Суперпользователь сохранён", zap.Uint64("id", user.ID), zap.String("email", user.Email))
	return nil
}
