package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"clan-backend/internal/entities"
)

// Record: плоская запись или входной payload: имя поля -> значение.
type Record map[string]interface{}

// FieldSet: набор видимых/изменяемых полей либо WILDCARD (все поля).
// Нулевое значение означает пустой набор.
type FieldSet struct {
	all   bool
	names map[string]struct{}
}

func Wildcard() FieldSet { return FieldSet{all: true} }

func Fields(names ...string) FieldSet {
	fs := FieldSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		fs.names[n] = struct{}{}
	}
	return fs
}

// FieldSetFromList: список из записи Permission. nil даёт пустой набор, "*" в списке даёт WILDCARD.
func FieldSetFromList(list []string) FieldSet {
	for _, n := range list {
		if n == entities.AllFieldsMarker {
			return Wildcard()
		}
	}
	return Fields(list...)
}

func (f FieldSet) IsWildcard() bool { return f.all }

func (f FieldSet) IsEmpty() bool { return !f.all && len(f.names) == 0 }

func (f FieldSet) Has(name string) bool {
	if f.all {
		return true
	}
	_, ok := f.names[name]
	return ok
}

// Names: отсортированный список полей; для WILDCARD это ["*"].
func (f FieldSet) Names() []string {
	if f.all {
		return []string{entities.AllFieldsMarker}
	}
	out := make([]string, 0, len(f.names))
	for n := range f.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (f FieldSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Names())
}

// Project возвращает новую запись, в которой остались только поля из набора.
// Исходная запись не изменяется.
func Project(record Record, fields FieldSet) Record {
	out := make(Record, len(record))
	for k, v := range record {
		if fields.Has(k) {
			out[k] = v
		}
	}
	return out
}

// ProjectAll: Project для списка записей.
func ProjectAll(records []Record, fields FieldSet) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, Project(r, fields))
	}
	return out
}

// Rejected: поля payload, которые не входят в набор. Для сообщений об ошибке и логов.
func Rejected(record Record, fields FieldSet) []string {
	if fields.all {
		return nil
	}
	var out []string
	for k := range record {
		if !fields.Has(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ToRecord переводит структуру в Record через её JSON-представление.
func ToRecord(v interface{}) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("сериализация записи: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("десериализация записи: %w", err)
	}
	return rec, nil
}

// Projector выбирает набор полей по праву принципала.
type Projector struct {
	store Store
}

func NewProjector(store Store) *Projector {
	return &Projector{store: store}
}

func (p *Projector) FieldsFor(ctx context.Context, principal *entities.User, resource ResourceType, phase Phase) (FieldSet, error) {
	return p.FieldsForObject(ctx, principal, resource, phase, "")
}

func (p *Projector) FieldsForObject(ctx context.Context, principal *entities.User, resource ResourceType, phase Phase, objectID string) (FieldSet, error) {
	if !principal.IsAuthenticated() {
		return FieldSet{}, nil
	}
	if principal.IsSuperuser {
		return Wildcard(), nil
	}

	perms, err := p.store.DirectPermissions(ctx, principal.ID, resource)
	if err != nil {
		return FieldSet{}, fmt.Errorf("права пользователя %d на %s: %w", principal.ID, resource, err)
	}
	perm, ok := resolvePermission(perms, objectID)
	if !ok {
		return FieldSet{}, nil
	}

	switch phase {
	case PhaseView:
		return FieldSetFromList(perm.ViewFields), nil
	case PhaseCreate:
		return FieldSetFromList(perm.CreateFields), nil
	case PhaseEdit:
		return FieldSetFromList(perm.EditFields), nil
	}
	return FieldSet{}, nil
}
