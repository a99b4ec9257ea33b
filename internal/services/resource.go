package services

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/dto"
	"clan-backend/internal/events"
	"clan-backend/internal/repositories"
	apperrors "clan-backend/pkg/errors"
	"clan-backend/pkg/eventbus"
	"clan-backend/pkg/utils"
)

// EventPublisher: синхронная публикация: к следующему запросу обработчики уже отработали.
type EventPublisher interface {
	PublishSync(ctx context.Context, event eventbus.Event) error
}

type ResourceServiceInterface interface {
	List(ctx context.Context, resource authz.ResourceType, params utils.QueryParams) ([]authz.Record, uint64, error)
	Get(ctx context.Context, resource authz.ResourceType, id uint64) (authz.Record, error)
	Create(ctx context.Context, resource authz.ResourceType, payload authz.Record) (authz.Record, error)
	Update(ctx context.Context, resource authz.ResourceType, id uint64, payload authz.Record) (authz.Record, error)
	Delete(ctx context.Context, resource authz.ResourceType, id uint64) error
}

type ResourceService struct {
	gatekeeper *authz.Gatekeeper
	repo       repositories.ResourceRepositoryInterface
	publisher  EventPublisher
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewResourceService(
	gatekeeper *authz.Gatekeeper,
	repo repositories.ResourceRepositoryInterface,
	publisher EventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
) ResourceServiceInterface {
	return &ResourceService{
		gatekeeper: gatekeeper,
		repo:       repo,
		publisher:  publisher,
		validate:   validate,
		logger:     logger,
	}
}

func objectID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (s *ResourceService) List(ctx context.Context, resource authz.ResourceType, params utils.QueryParams) ([]authz.Record, uint64, error) {
	decision, err := s.gatekeeper.Begin(ctx, authz.PrincipalFrom(ctx), resource, authz.VerbView, "")
	if err != nil {
		return nil, 0, err
	}

	res, params := visibleQuery(decision, params)
	rows, total, err := s.repo.List(ctx, res, decision.Where(), params)
	if err != nil {
		return nil, 0, err
	}
	return decision.PresentAll(rows), total, nil
}

// visibleQuery убирает из фильтров, поиска и сортировки колонки, которых вызывающий не видит.
func visibleQuery(decision *authz.Decision, params utils.QueryParams) (*authz.Resource, utils.QueryParams) {
	res := *decision.Resource

	filters := make(map[string]string, len(params.Filters))
	for col, val := range params.Filters {
		if decision.Fields.Has(col) {
			filters[col] = val
		}
	}
	params.Filters = filters

	if !decision.Fields.Has(params.SortBy) {
		params.SortBy = res.IDColumn
		params.SortOrder = "asc"
	}

	searchable := make([]string, 0, len(res.Searchable))
	for _, col := range res.Searchable {
		if decision.Fields.Has(col) {
			searchable = append(searchable, col)
		}
	}
	res.Searchable = searchable
	return &res, params
}

func (s *ResourceService) Get(ctx context.Context, resource authz.ResourceType, id uint64) (authz.Record, error) {
	decision, err := s.gatekeeper.Begin(ctx, authz.PrincipalFrom(ctx), resource, authz.VerbView, objectID(id))
	if err != nil {
		return nil, err
	}
	row, err := s.load(ctx, decision, id)
	if err != nil {
		return nil, err
	}
	return decision.Present(row), nil
}

// load читает объект и делает повторную проверку по области решения.
func (s *ResourceService) load(ctx context.Context, decision *authz.Decision, id uint64) (authz.Record, error) {
	row, err := s.repo.Find(ctx, decision.Resource, id)
	if err != nil {
		return nil, err
	}
	if err := decision.Check(row); err != nil {
		s.logger.Debug("объект вне области доступа",
			zap.String("resource", string(decision.Resource.Key)),
			zap.Uint64("id", id),
			zap.Uint64("user_id", decision.Principal.ID),
		)
		return nil, err
	}
	return row, nil
}

func (s *ResourceService) Create(ctx context.Context, resource authz.ResourceType, payload authz.Record) (authz.Record, error) {
	decision, err := s.gatekeeper.Begin(ctx, authz.PrincipalFrom(ctx), resource, authz.VerbCreate, "")
	if err != nil {
		return nil, err
	}

	values, err := s.accept(decision, payload)
	if err != nil {
		return nil, err
	}
	if decision.Resource.UIDColumn != "" {
		values[decision.Resource.UIDColumn] = uuid.NewString()
	}

	row, err := s.repo.Create(ctx, decision.Resource, values)
	if err != nil {
		return nil, err
	}
	s.accessChanged(ctx, decision, row, "create")
	return decision.Present(row), nil
}

func (s *ResourceService) Update(ctx context.Context, resource authz.ResourceType, id uint64, payload authz.Record) (authz.Record, error) {
	decision, err := s.gatekeeper.Begin(ctx, authz.PrincipalFrom(ctx), resource, authz.VerbEdit, objectID(id))
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, decision, id); err != nil {
		return nil, err
	}

	values, err := s.accept(decision, payload)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.Update(ctx, decision.Resource, id, decision.Where(), values)
	if err != nil {
		return nil, err
	}
	s.accessChanged(ctx, decision, row, "update")
	return decision.Present(row), nil
}

func (s *ResourceService) Delete(ctx context.Context, resource authz.ResourceType, id uint64) error {
	decision, err := s.gatekeeper.Begin(ctx, authz.PrincipalFrom(ctx), resource, authz.VerbDelete, objectID(id))
	if err != nil {
		return err
	}
	row, err := s.load(ctx, decision, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, decision.Resource, id, decision.Where()); err != nil {
		return err
	}
	s.accessChanged(ctx, decision, row, "delete")
	return nil
}

// accept очищает payload по решению и проверяет, что запись не уводится за пределы области.
func (s *ResourceService) accept(decision *authz.Decision, payload authz.Record) (authz.Record, error) {
	values, dropped := decision.Accept(payload)
	if len(dropped) > 0 {
		s.logger.Debug("поля отброшены из payload",
			zap.String("resource", string(decision.Resource.Key)),
			zap.Strings("fields", dropped),
			zap.Uint64("user_id", decision.Principal.ID),
		)
	}

	res := decision.Resource
	if res.BranchScoped() && res.BranchColumn != res.IDColumn {
		if v, ok := values[res.BranchColumn]; ok && !decision.Predicate.AdmitsValue(v) {
			return nil, apperrors.ErrForbidden
		}
	}

	if err := s.validatePayload(res.Key, values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *ResourceService) validatePayload(resource authz.ResourceType, values authz.Record) error {
	var target interface{}
	switch resource {
	case authz.ResourcePermissions:
		target = &dto.PermissionPayloadDTO{}
	case authz.ResourceRoles:
		target = &dto.RolePayloadDTO{}
	default:
		return nil
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return apperrors.NewBadRequestError("некорректные данные")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.NewBadRequestError("некорректный формат полей: " + err.Error())
	}
	return s.validate.Struct(target)
}

func (s *ResourceService) accessChanged(ctx context.Context, decision *authz.Decision, row authz.Record, action string) {
	if !decision.Resource.Key.AccessModel() {
		return
	}
	event := events.AccessChangedEvent{
		Resource: decision.Resource.Key,
		ObjectID: objectIDOf(decision.Resource, row),
		ActorID:  decision.Principal.ID,
		Action:   action,
	}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.Error("не удалось обработать изменение модели доступа", zap.String("resource", string(event.Resource)), zap.Error(err))
	}
}

func objectIDOf(res *authz.Resource, row authz.Record) string {
	switch v := row[res.IDColumn].(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	}
	return ""
}
