package db

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"clan-backend/pkg/utils"
)

// Quote экранирует имя колонки или таблицы. В модели доступа есть колонки
// с зарезервированными именами: view, create, edit, delete.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteAll: Quote для списка колонок.
func QuoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Quote(n)
	}
	return out
}

// ApplyListParams добавляет в выборку фильтры, поиск, сортировку и пагинацию.
// Учитываются только колонки из allowed, остальные параметры молча пропускаются.
func ApplyListParams(builder sq.SelectBuilder, params utils.QueryParams, allowed []string, searchable []string) sq.SelectBuilder {
	isAllowed := func(col string) bool {
		for _, a := range allowed {
			if a == col {
				return true
			}
		}
		return false
	}

	for col, val := range params.Filters {
		if !isAllowed(col) {
			continue
		}
		if strings.Contains(val, ",") {
			builder = builder.Where(sq.Eq{Quote(col): strings.Split(val, ",")})
		} else {
			builder = builder.Where(sq.Eq{Quote(col): val})
		}
	}

	if params.Search != "" && len(searchable) > 0 {
		or := sq.Or{}
		for _, col := range searchable {
			or = append(or, sq.ILike{Quote(col) + "::text": "%" + params.Search + "%"})
		}
		builder = builder.Where(or)
	}

	if params.SortBy != "" && isAllowed(params.SortBy) {
		dir := "ASC"
		if strings.EqualFold(params.SortOrder, "desc") {
			dir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("%s %s", Quote(params.SortBy), dir))
	}

	if params.Limit > 0 {
		builder = builder.Limit(params.Limit).Offset(params.Offset)
	}
	return builder
}
