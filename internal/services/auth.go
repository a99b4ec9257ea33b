package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"clan-backend/internal/dto"
	"clan-backend/internal/repositories"
	"clan-backend/pkg/config"
	apperrors "clan-backend/pkg/errors"
	"clan-backend/pkg/service"
	"clan-backend/pkg/utils"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, payload dto.LoginDTO) (*dto.AuthResponseDTO, error)
	Refresh(ctx context.Context, payload dto.RefreshDTO) (*dto.AuthResponseDTO, error)
}

type AuthService struct {
	userRepo   repositories.UserRepositoryInterface
	cacheRepo  repositories.CacheRepositoryInterface
	jwtService service.JWTService
	logger     *zap.Logger
	cfg        config.AuthConfig
}

func NewAuthService(
	userRepo repositories.UserRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	jwtService service.JWTService,
	logger *zap.Logger,
	cfg config.AuthConfig,
) AuthServiceInterface {
	return &AuthService{
		userRepo:   userRepo,
		cacheRepo:  cacheRepo,
		jwtService: jwtService,
		logger:     logger,
		cfg:        cfg,
	}
}

func loginAttemptsKey(email string) string {
	return "login_attempts:" + strings.ToLower(email)
}

func (s *AuthService) Login(ctx context.Context, payload dto.LoginDTO) (*dto.AuthResponseDTO, error) {
	logger := s.logger.With(zap.String("email", payload.Email))

	if s.lockedOut(ctx, payload.Email) {
		logger.Warn("Слишком много попыток входа")
		return nil, apperrors.NewHttpError(
			http.StatusTooManyRequests,
			fmt.Sprintf("Слишком много попыток. Попробуйте через %.0f минут.", s.cfg.LockoutDuration.Minutes()),
			nil,
			nil,
		)
	}

	user, err := s.userRepo.FindByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			s.failedAttempt(ctx, payload.Email)
		}
		return nil, err
	}
	if err := utils.ComparePasswords(user.Password, payload.Password); err != nil {
		logger.Info("Неверный пароль")
		s.failedAttempt(ctx, payload.Email)
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsAuthenticated() {
		logger.Info("Вход неактивного пользователя")
		return nil, apperrors.ErrUnauthenticated
	}

	if s.cacheRepo != nil {
		_ = s.cacheRepo.Del(ctx, loginAttemptsKey(payload.Email))
	}

	accessToken, refreshToken, err := s.jwtService.GenerateTokens(user.ID)
	if err != nil {
		return nil, err
	}
	logger.Info("Успешный вход", zap.Uint64("user_id", user.ID))

	return &dto.AuthResponseDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         toUserPublic(user),
	}, nil
}

func (s *AuthService) lockedOut(ctx context.Context, email string) bool {
	if s.cacheRepo == nil || s.cfg.MaxLoginAttempts <= 0 {
		return false
	}
	attemptsStr, err := s.cacheRepo.Get(ctx, loginAttemptsKey(email))
	if err != nil {
		return false
	}
	attempts, _ := strconv.Atoi(attemptsStr)
	return attempts >= s.cfg.MaxLoginAttempts
}

func (s *AuthService) failedAttempt(ctx context.Context, email string) {
	if s.cacheRepo == nil || s.cfg.MaxLoginAttempts <= 0 {
		return
	}
	key := loginAttemptsKey(email)
	attempts, err := s.cacheRepo.Incr(ctx, key)
	if err != nil {
		s.logger.Warn("не удалось учесть попытку входа", zap.Error(err))
		return
	}
	if attempts == 1 {
		if err := s.cacheRepo.Expire(ctx, key, s.cfg.LockoutDuration); err != nil {
			s.logger.Warn("не удалось задать срок блокировки", zap.Error(err))
		}
	}
}

func (s *AuthService) Refresh(ctx context.Context, payload dto.RefreshDTO) (*dto.AuthResponseDTO, error) {
	claims, err := s.jwtService.ValidateToken(payload.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefreshToken {
		return nil, apperrors.ErrTokenIsNotRefresh
	}

	user, err := s.userRepo.FindPrincipal(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsAuthenticated() {
		return nil, apperrors.ErrUnauthenticated
	}

	accessToken, refreshToken, err := s.jwtService.GenerateTokens(user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponseDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         toUserPublic(user),
	}, nil
}
