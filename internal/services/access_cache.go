package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/entities"
	"clan-backend/internal/repositories"
)

const accessVersionKey = "access:version"

// CacheObserver: счётчики попаданий и промахов кеша.
type CacheObserver interface {
	CacheHit(kind string)
	CacheMiss(kind string)
}

type AccessCacheInterface interface {
	authz.Store
	// Invalidate делает недействительными все снимки модели доступа.
	Invalidate(ctx context.Context) error
}

// CachedAccessStore кеширует ответы хранилища доступа в Redis между запросами.
// Ключи содержат номер версии; Invalidate увеличивает версию, и старые ключи
// больше не читаются, а затем истекают по TTL. Если Redis недоступен, читаем из БД.
//
// Если увеличить версию не удалось, кеш не читается, пока версия не будет
// увеличена при следующем успешном обращении к Redis.
type CachedAccessStore struct {
	store     authz.Store
	cacheRepo repositories.CacheRepositoryInterface
	logger    *zap.Logger
	cacheTTL  time.Duration
	observer  CacheObserver
	pending   atomic.Bool
}

func NewCachedAccessStore(
	store authz.Store,
	cacheRepo repositories.CacheRepositoryInterface,
	logger *zap.Logger,
	cacheTTL time.Duration,
	observer CacheObserver,
) AccessCacheInterface {
	return &CachedAccessStore{
		store:     store,
		cacheRepo: cacheRepo,
		logger:    logger,
		cacheTTL:  cacheTTL,
		observer:  observer,
	}
}

func (s *CachedAccessStore) version(ctx context.Context) (string, bool) {
	if s.pending.Load() {
		v, err := s.bump(ctx)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(v, 10), true
	}
	v, err := s.cacheRepo.Get(ctx, accessVersionKey)
	if errors.Is(err, repositories.ErrCacheMiss) {
		return "0", true
	}
	if err != nil {
		s.logger.Warn("AccessCache: Не удалось прочитать версию кеша, читаем из БД", zap.Error(err))
		return "", false
	}
	return v, true
}

func (s *CachedAccessStore) hit(kind string) {
	if s.observer != nil {
		s.observer.CacheHit(kind)
	}
}

func (s *CachedAccessStore) miss(kind string) {
	if s.observer != nil {
		s.observer.CacheMiss(kind)
	}
}

// cached: общий путь: версия, чтение ключа, загрузка из хранилища, запись в кеш.
func cached[T any](ctx context.Context, s *CachedAccessStore, kind, key string, load func() (T, error)) (T, error) {
	if s.cacheTTL <= 0 {
		return load()
	}
	version, ok := s.version(ctx)
	if !ok {
		return load()
	}
	cacheKey := fmt.Sprintf("access:v%s:%s:%s", version, kind, key)

	var value T
	if raw, err := s.cacheRepo.Get(ctx, cacheKey); err == nil {
		err := json.Unmarshal([]byte(raw), &value)
		if err == nil {
			s.hit(kind)
			return value, nil
		}
		s.logger.Warn("AccessCache: Ошибка десериализации из кеша", zap.String("key", cacheKey), zap.Error(err))
	} else if !errors.Is(err, repositories.ErrCacheMiss) {
		s.logger.Warn("AccessCache: Ошибка чтения кеша", zap.String("key", cacheKey), zap.Error(err))
	}
	s.miss(kind)

	value, err := load()
	if err != nil {
		return value, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("AccessCache: Не удалось сериализовать значение для кеша", zap.String("key", cacheKey), zap.Error(err))
		return value, nil
	}
	if err := s.cacheRepo.Set(ctx, cacheKey, string(raw), s.cacheTTL); err != nil {
		s.logger.Warn("AccessCache: Не удалось сохранить значение в кеш", zap.String("key", cacheKey), zap.Error(err))
	}
	return value, nil
}

func (s *CachedAccessStore) DirectPermissions(ctx context.Context, userID uint64, resource authz.ResourceType) ([]entities.Permission, error) {
	key := fmt.Sprintf("%d:%s", userID, resource)
	return cached(ctx, s, "direct", key, func() ([]entities.Permission, error) {
		return s.store.DirectPermissions(ctx, userID, resource)
	})
}

func (s *CachedAccessStore) BranchAssignment(ctx context.Context, userID uint64) (*entities.BranchAssignment, error) {
	return cached(ctx, s, "assignment", strconv.FormatUint(userID, 10), func() (*entities.BranchAssignment, error) {
		return s.store.BranchAssignment(ctx, userID)
	})
}

func (s *CachedAccessStore) BranchRoles(ctx context.Context, branchIDs []uint64, resource authz.ResourceType) ([]entities.Role, error) {
	ids := make([]string, len(branchIDs))
	for i, id := range branchIDs {
		ids[i] = strconv.FormatUint(id, 10)
	}
	key := strings.Join(ids, ",") + ":" + string(resource)
	return cached(ctx, s, "roles", key, func() ([]entities.Role, error) {
		return s.store.BranchRoles(ctx, branchIDs, resource)
	})
}

func (s *CachedAccessStore) OwnedBranch(ctx context.Context, userID uint64) (*entities.Branch, error) {
	return cached(ctx, s, "owned", strconv.FormatUint(userID, 10), func() (*entities.Branch, error) {
		return s.store.OwnedBranch(ctx, userID)
	})
}

func (s *CachedAccessStore) Invalidate(ctx context.Context) error {
	s.pending.Store(true)
	if _, err := s.bump(ctx); err != nil {
		s.logger.Error("AccessCache: Ошибка инвалидации кеша доступа, кеш отключён до восстановления Redis", zap.Error(err))
		return fmt.Errorf("инвалидация кеша доступа: %w", err)
	}
	return nil
}

// bump увеличивает версию и снимает отложенную инвалидацию.
func (s *CachedAccessStore) bump(ctx context.Context) (int64, error) {
	version, err := s.cacheRepo.Incr(ctx, accessVersionKey)
	if err != nil {
		return 0, err
	}
	s.pending.Store(false)
	s.logger.Info("AccessCache: Кеш доступа инвалидирован", zap.Int64("version", version))
	return version, nil
}
