package authz

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

// Resource: политика одного типа ресурса: таблица, колонки и колонка филиала.
// Пустой BranchColumn означает, что ресурс не ограничивается по филиалам.
type Resource struct {
	Key          ResourceType `yaml:"key"`
	Table        string       `yaml:"table"`
	IDColumn     string       `yaml:"id_column"`
	BranchColumn string       `yaml:"branch_column"`
	UIDColumn    string       `yaml:"uid_column"`
	SoftDelete   bool         `yaml:"soft_delete"`
	NoCreate     bool         `yaml:"no_create"`
	Columns      []string     `yaml:"columns"`
	ReadOnly     []string     `yaml:"read_only"`
	Searchable   []string     `yaml:"searchable"`
}

func (r *Resource) BranchScoped() bool { return r.BranchColumn != "" }

// Allows: поддерживает ли ресурс глагол в общих эндпоинтах. Записи с no_create
// создаются только своими потоками (например, регистрацией сотрудника).
func (r *Resource) Allows(verb Verb) bool {
	return !(r.NoCreate && verb == VerbCreate)
}

func (r *Resource) HasColumn(name string) bool {
	return contains(r.Columns, name)
}

func (r *Resource) IsReadOnly(name string) bool {
	return contains(r.ReadOnly, name)
}

// Registry: неизменяемое после загрузки отображение типа ресурса на его политику.
type Registry struct {
	resources map[ResourceType]*Resource
	order     []ResourceType
}

type registryFile struct {
	Resources []Resource `yaml:"resources"`
}

// DefaultRegistry: встроенный реестр.
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultRegistryYAML)
}

// LoadRegistry читает реестр из файла; при пустом пути встроенный реестр.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать реестр ресурсов %s: %w", path, err)
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	// Неизвестные ключи запрещены.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("не удалось разобрать реестр ресурсов: %w", err)
	}

	reg := &Registry{resources: make(map[ResourceType]*Resource, len(file.Resources))}
	for i := range file.Resources {
		res := file.Resources[i]
		if err := validateResource(&res); err != nil {
			return nil, err
		}
		if _, dup := reg.resources[res.Key]; dup {
			return nil, fmt.Errorf("ресурс %q объявлен дважды", res.Key)
		}
		reg.resources[res.Key] = &res
		reg.order = append(reg.order, res.Key)
	}
	return reg, nil
}

func validateResource(res *Resource) error {
	if !res.Key.Known() {
		return fmt.Errorf("неизвестный тип ресурса %q", res.Key)
	}
	if res.Table == "" {
		return fmt.Errorf("ресурс %q: не указана таблица", res.Key)
	}
	if res.IDColumn == "" {
		res.IDColumn = "id"
	}
	if len(res.Columns) == 0 {
		return fmt.Errorf("ресурс %q: пустой список колонок", res.Key)
	}
	if !res.HasColumn(res.IDColumn) {
		return fmt.Errorf("ресурс %q: колонка id %q не входит в columns", res.Key, res.IDColumn)
	}
	if res.BranchColumn != "" && !res.HasColumn(res.BranchColumn) {
		return fmt.Errorf("ресурс %q: колонка филиала %q не входит в columns", res.Key, res.BranchColumn)
	}
	for _, col := range append(append([]string{}, res.ReadOnly...), res.Searchable...) {
		if !res.HasColumn(col) {
			return fmt.Errorf("ресурс %q: колонка %q не входит в columns", res.Key, col)
		}
	}
	return nil
}

// Lookup возвращает политику ресурса; false, если ресурс не подключён к модели доступа.
func (r *Registry) Lookup(key ResourceType) (*Resource, bool) {
	if r == nil {
		return nil, false
	}
	res, ok := r.resources[key]
	return res, ok
}

// Resources: ресурсы в порядке объявления.
func (r *Registry) Resources() []*Resource {
	out := make([]*Resource, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.resources[key])
	}
	return out
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
