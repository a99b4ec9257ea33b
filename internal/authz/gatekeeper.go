package authz

import (
	"context"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"clan-backend/internal/entities"
	apperrors "clan-backend/pkg/errors"
)

// Исходы решения для метрик.
const (
	OutcomeAllowed         = "allowed"
	OutcomeDenied          = "denied"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeMisconfigured   = "misconfigured"
	OutcomeError           = "error"
)

// ResourceUnregistered: метка метрик для всех типов вне реестра.
const ResourceUnregistered ResourceType = "unregistered"

// DecisionObserver получает каждое решение Gatekeeper.
type DecisionObserver interface {
	ObserveDecision(resource ResourceType, verb Verb, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(ResourceType, Verb, string, time.Duration) {}

// Gatekeeper: единая точка входа для обработчиков ресурсов:
// проверка глагола, предикат строк и набор полей за один вызов.
type Gatekeeper struct {
	store    Store
	registry *Registry
	logger   *zap.Logger
	observer DecisionObserver
}

func NewGatekeeper(store Store, registry *Registry, logger *zap.Logger, observer DecisionObserver) *Gatekeeper {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Gatekeeper{
		store:    store,
		registry: registry,
		logger:   logger,
		observer: observer,
	}
}

func (g *Gatekeeper) Registry() *Registry { return g.registry }

func (g *Gatekeeper) session(ctx context.Context) *Session {
	return SessionFrom(ctx, g.store)
}

func (g *Gatekeeper) Authorize(ctx context.Context, principal *entities.User, resource ResourceType, verb Verb) (bool, error) {
	return NewEngine(g.session(ctx)).Authorize(ctx, principal, resource, verb)
}

func (g *Gatekeeper) AuthorizeObject(ctx context.Context, principal *entities.User, resource ResourceType, verb Verb, objectID string) (bool, error) {
	return NewEngine(g.session(ctx)).AuthorizeObject(ctx, principal, resource, verb, objectID)
}

func (g *Gatekeeper) Scope(ctx context.Context, principal *entities.User, resource ResourceType) (RowPredicate, error) {
	return NewScoper(g.session(ctx)).Scope(ctx, principal, resource)
}

func (g *Gatekeeper) FieldsFor(ctx context.Context, principal *entities.User, resource ResourceType, phase Phase) (FieldSet, error) {
	return NewProjector(g.session(ctx)).FieldsFor(ctx, principal, resource, phase)
}

// Begin проверяет запрос целиком и возвращает решение, которое обработчик
// применяет к выборке и к payload. objectID пустой для операций над всем типом.
func (g *Gatekeeper) Begin(ctx context.Context, principal *entities.User, resource ResourceType, verb Verb, objectID string) (decision *Decision, err error) {
	start := time.Now()
	outcome := OutcomeError
	res, ok := g.registry.Lookup(resource)
	label := resource
	if !ok {
		label = ResourceUnregistered
	}
	defer func() {
		g.observer.ObserveDecision(label, verb, outcome, time.Since(start))
	}()

	if !principal.IsAuthenticated() {
		outcome = OutcomeUnauthenticated
		return nil, apperrors.ErrUnauthenticated
	}

	if !ok {
		outcome = OutcomeMisconfigured
		g.logger.Error("тип ресурса не зарегистрирован в модели доступа", zap.String("resource", string(resource)))
		return nil, apperrors.ErrConfigurationGap
	}

	if !res.Allows(verb) {
		outcome = OutcomeDenied
		g.logger.Debug("глагол не поддерживается ресурсом", zap.String("resource", string(resource)), zap.String("verb", string(verb)))
		return nil, apperrors.ErrForbidden
	}

	session := g.session(ctx)

	allowed, err := NewEngine(session).AuthorizeObject(ctx, principal, resource, verb, objectID)
	if err != nil {
		g.logger.Error("ошибка проверки прав", zap.Uint64("user_id", principal.ID), zap.String("resource", string(resource)), zap.Error(err))
		return nil, fmt.Errorf("проверка прав: %w", err)
	}
	if !allowed {
		outcome = OutcomeDenied
		g.logger.Debug("доступ запрещён",
			zap.Uint64("user_id", principal.ID),
			zap.String("resource", string(resource)),
			zap.String("verb", string(verb)),
			zap.String("object_id", objectID),
		)
		return nil, apperrors.ErrForbidden
	}

	predicate := AllRows()
	if res.BranchScoped() {
		predicate, err = NewScoper(session).ScopeObject(ctx, principal, resource, objectID)
		if err != nil {
			g.logger.Error("ошибка вычисления области доступа", zap.Uint64("user_id", principal.ID), zap.String("resource", string(resource)), zap.Error(err))
			return nil, fmt.Errorf("область доступа: %w", err)
		}
	}

	var fields FieldSet
	if phase, ok := PhaseFor(verb); ok {
		fields, err = NewProjector(session).FieldsForObject(ctx, principal, resource, phase, objectID)
		if err != nil {
			g.logger.Error("ошибка вычисления набора полей", zap.Uint64("user_id", principal.ID), zap.String("resource", string(resource)), zap.Error(err))
			return nil, fmt.Errorf("набор полей: %w", err)
		}
	}

	outcome = OutcomeAllowed
	return &Decision{
		Principal: principal,
		Resource:  res,
		Verb:      verb,
		ObjectID:  objectID,
		Predicate: predicate,
		Fields:    fields,
	}, nil
}

// Decision: результат Begin. Fields относится к фазе глагола и используется
// и для входного payload, и для ответа.
type Decision struct {
	Principal *entities.User
	Resource  *Resource
	Verb      Verb
	ObjectID  string
	Predicate RowPredicate
	Fields    FieldSet
}

// Where: условие выборки строк, разрешённых решением.
func (d *Decision) Where() sq.Sqlizer {
	if !d.Resource.BranchScoped() {
		return sq.Expr("TRUE")
	}
	return d.Predicate.Sqlizer(pgx.Identifier{d.Resource.BranchColumn}.Sanitize())
}

// Admits: проходит ли прочитанная запись через предикат решения.
func (d *Decision) Admits(row Record) bool {
	if !d.Resource.BranchScoped() {
		return true
	}
	return d.Predicate.AdmitsValue(row[d.Resource.BranchColumn])
}

// Check: повторная проверка объекта. Объект вне области выглядит как несуществующий.
func (d *Decision) Check(row Record) error {
	if !d.Admits(row) {
		return apperrors.ErrNotFound
	}
	return nil
}

// Present проецирует запись на поля решения.
func (d *Decision) Present(row Record) Record {
	return Project(row, d.Fields)
}

func (d *Decision) PresentAll(rows []Record) []Record {
	return ProjectAll(rows, d.Fields)
}

// Accept оставляет в payload только разрешённые для записи колонки ресурса.
// Возвращает очищенный payload и отброшенные поля.
func (d *Decision) Accept(payload Record) (Record, []string) {
	out := make(Record, len(payload))
	var dropped []string
	for k, v := range payload {
		if !d.Fields.Has(k) || !d.Resource.HasColumn(k) || d.Resource.IsReadOnly(k) {
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(dropped)
	return out, dropped
}
