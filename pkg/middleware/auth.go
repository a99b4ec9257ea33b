package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/entities"
	"clan-backend/pkg/contextkeys"
	apperrors "clan-backend/pkg/errors"
	"clan-backend/pkg/service"
	"clan-backend/pkg/utils"
)

// PrincipalLoader загружает пользователя, от имени которого выполняется запрос.
type PrincipalLoader interface {
	FindPrincipal(ctx context.Context, userID uint64) (*entities.User, error)
}

type AuthMiddleware struct {
	jwtService service.JWTService
	users      PrincipalLoader
	store      authz.Store
	logger     *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, users PrincipalLoader, store authz.Store, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtSvc,
		users:      users,
		store:      store,
		logger:     logger,
	}
}

// Auth проверяет access-токен, загружает принципала и открывает сессию проверок доступа на время запроса.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			m.logger.Debug("AuthMiddleware: Пустой заголовок Authorization")
			return utils.ErrorResponse(c, apperrors.ErrEmptyAuthHeader, m.logger)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.logger.Debug("AuthMiddleware: Неверный формат заголовка Authorization")
			return utils.ErrorResponse(c, apperrors.ErrInvalidAuthHeader, m.logger)
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			m.logger.Debug("AuthMiddleware: Ошибка валидации токена", zap.Error(err))
			return utils.ErrorResponse(c, err, m.logger)
		}
		if claims.IsRefreshToken {
			m.logger.Warn("AuthMiddleware: Попытка доступа с refresh токеном", zap.Uint64("userID", claims.UserID))
			return utils.ErrorResponse(c, apperrors.ErrTokenIsNotAccess, m.logger)
		}

		ctx := c.Request().Context()
		principal, err := m.users.FindPrincipal(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return utils.ErrorResponse(c, apperrors.ErrUnauthenticated, m.logger)
			}
			return utils.ErrorResponse(c, err, m.logger)
		}
		if !principal.IsAuthenticated() {
			m.logger.Info("AuthMiddleware: Пользователь неактивен или удалён", zap.Uint64("userID", claims.UserID))
			return utils.ErrorResponse(c, apperrors.ErrUnauthenticated, m.logger)
		}

		ctx = context.WithValue(ctx, contextkeys.UserIDKey, principal.ID)
		ctx = authz.WithPrincipal(ctx, principal)
		ctx = authz.WithSession(ctx, authz.NewSession(m.store))
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}
