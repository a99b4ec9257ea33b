package repositories

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	db "clan-backend/internal/infrastructure/bd"
	apperrors "clan-backend/pkg/errors"
	"clan-backend/pkg/utils"
)

// ResourceRepositoryInterface: CRUD над любым ресурсом из реестра.
// where: условие видимости строк от authz; репозиторий его только применяет.
type ResourceRepositoryInterface interface {
	List(ctx context.Context, res *authz.Resource, where sq.Sqlizer, params utils.QueryParams) ([]authz.Record, uint64, error)
	Find(ctx context.Context, res *authz.Resource, id uint64) (authz.Record, error)
	Create(ctx context.Context, res *authz.Resource, values authz.Record) (authz.Record, error)
	Update(ctx context.Context, res *authz.Resource, id uint64, where sq.Sqlizer, values authz.Record) (authz.Record, error)
	Delete(ctx context.Context, res *authz.Resource, id uint64, where sq.Sqlizer) error
}

type ResourceRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewResourceRepository(storage *pgxpool.Pool, logger *zap.Logger) ResourceRepositoryInterface {
	return &ResourceRepository{storage: storage, logger: logger}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NotDeleted: строки без отметки об удалении; для ресурсов без мягкого удаления все строки.
func NotDeleted(res *authz.Resource) sq.Sqlizer {
	if !res.SoftDelete {
		return sq.Expr("TRUE")
	}
	return sq.Eq{db.Quote("deleted_at"): nil}
}

func byID(res *authz.Resource, id uint64) sq.Sqlizer {
	return sq.Eq{db.Quote(res.IDColumn): id}
}

// BuildList: запросы выборки и подсчёта с одним и тем же условием.
func BuildList(res *authz.Resource, where sq.Sqlizer, params utils.QueryParams) (sq.SelectBuilder, sq.SelectBuilder) {
	base := sq.And{where, NotDeleted(res)}

	// поиск и фильтры у подсчёта те же, что у выборки; сортировки и пагинации нет
	countParams := params
	countParams.Limit = 0
	countParams.SortBy = ""
	count := psql.Select("COUNT(*)").From(db.Quote(res.Table)).Where(base)
	count = db.ApplyListParams(count, countParams, res.Columns, res.Searchable)

	list := psql.Select(db.QuoteAll(res.Columns)...).From(db.Quote(res.Table)).Where(base)
	list = db.ApplyListParams(list, params, res.Columns, res.Searchable)
	if params.SortBy != res.IDColumn {
		// стабильный порядок страниц
		list = list.OrderBy(db.Quote(res.IDColumn) + " ASC")
	}
	return list, count
}

func (r *ResourceRepository) List(ctx context.Context, res *authz.Resource, where sq.Sqlizer, params utils.QueryParams) ([]authz.Record, uint64, error) {
	listQuery, countQuery := BuildList(res, where, params)

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("count ToSql для %s: %w", res.Key, err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта %s: %w", res.Key, err)
	}
	if total == 0 {
		return []authz.Record{}, 0, nil
	}

	sqlQuery, args, err := listQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ToSql для %s: %w", res.Key, err)
	}
	r.logger.Debug("ResourceRepository.List", zap.String("resource", string(res.Key)), zap.String("sql", sqlQuery))

	rows, err := r.storage.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки %s: %w", res.Key, err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения %s: %w", res.Key, err)
	}
	return records, total, nil
}

// Find читает объект по id без условия видимости: повторную проверку делает вызывающий.
func (r *ResourceRepository) Find(ctx context.Context, res *authz.Resource, id uint64) (authz.Record, error) {
	query, args, err := psql.Select(db.QuoteAll(res.Columns)...).
		From(db.Quote(res.Table)).
		Where(sq.And{byID(res, id), NotDeleted(res)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ToSql для %s: %w", res.Key, err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", res.Key, err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", res.Key, err)
	}
	if len(records) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return records[0], nil
}

// BuildInsert: INSERT с RETURNING всех колонок ресурса.
func BuildInsert(res *authz.Resource, values authz.Record) (string, []interface{}, error) {
	cols, vals := splitValues(values)
	if len(cols) == 0 {
		return "", nil, apperrors.NewBadRequestError("нет полей для создания")
	}
	return psql.Insert(db.Quote(res.Table)).
		Columns(db.QuoteAll(cols)...).
		Values(vals...).
		Suffix("RETURNING " + joinColumns(res.Columns)).
		ToSql()
}

func (r *ResourceRepository) Create(ctx context.Context, res *authz.Resource, values authz.Record) (authz.Record, error) {
	query, args, err := BuildInsert(res, values)
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, constraintError(res, "создания", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, constraintError(res, "создания", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("создание %s не вернуло строку", res.Key)
	}
	return records[0], nil
}

// BuildUpdate: UPDATE только видимой строки; updated_at обновляется, если колонка есть.
func BuildUpdate(res *authz.Resource, id uint64, where sq.Sqlizer, values authz.Record) (string, []interface{}, error) {
	cols, vals := splitValues(values)
	builder := psql.Update(db.Quote(res.Table))
	for i, col := range cols {
		builder = builder.Set(db.Quote(col), vals[i])
	}
	if res.HasColumn("updated_at") {
		builder = builder.Set(db.Quote("updated_at"), sq.Expr("now()"))
	} else if len(cols) == 0 {
		return "", nil, apperrors.NewBadRequestError("нет полей для изменения")
	}
	return builder.
		Where(sq.And{byID(res, id), where, NotDeleted(res)}).
		Suffix("RETURNING " + joinColumns(res.Columns)).
		ToSql()
}

func (r *ResourceRepository) Update(ctx context.Context, res *authz.Resource, id uint64, where sq.Sqlizer, values authz.Record) (authz.Record, error) {
	query, args, err := BuildUpdate(res, id, where, values)
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, constraintError(res, "изменения", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, constraintError(res, "изменения", err)
	}
	if len(records) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return records[0], nil
}

// BuildDelete: мягкое удаление, если ресурс его объявляет, иначе DELETE.
func BuildDelete(res *authz.Resource, id uint64, where sq.Sqlizer) (string, []interface{}, error) {
	cond := sq.And{byID(res, id), where, NotDeleted(res)}
	if res.SoftDelete {
		return psql.Update(db.Quote(res.Table)).
			Set(db.Quote("deleted_at"), sq.Expr("now()")).
			Where(cond).
			ToSql()
	}
	return psql.Delete(db.Quote(res.Table)).Where(cond).ToSql()
}

func (r *ResourceRepository) Delete(ctx context.Context, res *authz.Resource, id uint64, where sq.Sqlizer) error {
	query, args, err := BuildDelete(res, id, where)
	if err != nil {
		return fmt.Errorf("ToSql для %s: %w", res.Key, err)
	}
	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", res.Key, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// constraintError переводит нарушения ограничений БД в ошибки клиента.
func constraintError(res *authz.Resource, op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("ошибка %s %s: %w", op, res.Key, err)
	}
	switch pgErr.Code {
	case "23502": // not_null_violation
		return apperrors.NewHttpError(http.StatusBadRequest, "не заполнено обязательное поле "+pgErr.ColumnName, apperrors.ErrBadRequest,
			map[string]interface{}{"field": pgErr.ColumnName})
	case "23503": // foreign_key_violation
		return apperrors.NewHttpError(http.StatusBadRequest, "ссылка на несуществующую запись", apperrors.ErrBadRequest,
			map[string]interface{}{"constraint": pgErr.ConstraintName})
	case "23505": // unique_violation
		return fmt.Errorf("ошибка %s %s: %w", op, res.Key, apperrors.ErrConflict)
	case "22P02", "23514": // invalid_text_representation, check_violation
		return apperrors.NewHttpError(http.StatusBadRequest, "недопустимое значение поля", apperrors.ErrBadRequest, nil)
	}
	return fmt.Errorf("ошибка %s %s: %w", op, res.Key, err)
}

// splitValues: колонки в детерминированном порядке и значения, приведённые для pgx.
func splitValues(values authz.Record) ([]string, []interface{}) {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	vals := make([]interface{}, len(cols))
	for i, col := range cols {
		vals[i] = normalizeValue(values[col])
	}
	return cols, vals
}

// normalizeValue: числа из JSON приходят как float64; целые отдаём как int64.
func normalizeValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

func joinColumns(cols []string) string {
	return strings.Join(db.QuoteAll(cols), ", ")
}

func collectRecords(rows pgx.Rows) ([]authz.Record, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()

	var out []authz.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("rows.Values: %w", err)
		}
		rec := make(authz.Record, len(fields))
		for i, fd := range fields {
			rec[fd.Name] = recordValue(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// recordValue: uuid из pgx приходит массивом байт, в записи нужен строковый вид.
func recordValue(v interface{}) interface{} {
	if b, ok := v.([16]byte); ok {
		return uuid.UUID(b).String()
	}
	return v
}
