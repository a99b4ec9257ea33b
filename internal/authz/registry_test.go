package authz

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	registry, err := DefaultRegistry()
	require.NoError(t, err)

	keys := make([]ResourceType, 0)
	for _, res := range registry.Resources() {
		keys = append(keys, res.Key)
	}
	assert.Equal(t, []ResourceType{
		ResourceBranches, ResourceBranchSettings, ResourceStaff,
		ResourcePermissions, ResourceRoles, ResourceAssignedBranches,
	}, keys)

	staff, ok := registry.Lookup(ResourceStaff)
	require.True(t, ok)
	assert.Equal(t, "users", staff.Table)
	assert.True(t, staff.BranchScoped())
	assert.False(t, staff.HasColumn("password"), "пароль не должен быть доступен через общий эндпоинт")
	assert.True(t, staff.NoCreate)
	assert.False(t, staff.Allows(VerbCreate), "сотрудники создаются регистрацией, а не общим эндпоинтом")
	assert.True(t, staff.Allows(VerbEdit))

	roles, ok := registry.Lookup(ResourceRoles)
	require.True(t, ok)
	assert.False(t, roles.BranchScoped())

	_, ok = registry.Lookup("orders")
	assert.False(t, ok)

	var nilRegistry *Registry
	_, ok = nilRegistry.Lookup(ResourceRoles)
	assert.False(t, ok)
}

func TestParseRegistry_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown key": `
resources:
  - key: orders
    table: orders
    columns: [id]`,
		"duplicate": `
resources:
  - key: roles
    table: roles
    columns: [id]
  - key: roles
    table: roles
    columns: [id]`,
		"no table": `
resources:
  - key: roles
    columns: [id]`,
		"no columns": `
resources:
  - key: roles
    table: roles`,
		"branch column missing": `
resources:
  - key: staff
    table: users
    branch_column: branch_id
    columns: [id, email]`,
		"searchable column missing": `
resources:
  - key: roles
    table: roles
    columns: [id]
    searchable: [name]`,
		"bad yaml": `resources: [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseRegistry_RejectsMisspelledKey(t *testing.T) {
	_, err := ParseRegistry([]byte(`
resources:
  - key: staff
    table: users
    branch_colum: branch_id
    columns: [id, branch_id]
`))
	require.Error(t, err, "ресурс не должен молча потерять ограничение по филиалам")
	assert.Contains(t, err.Error(), "branch_colum")
}

func TestParseRegistry_Empty(t *testing.T) {
	registry, err := ParseRegistry(nil)
	require.NoError(t, err)
	assert.Empty(t, registry.Resources())
}

func TestParseRegistry_DefaultIDColumn(t *testing.T) {
	registry, err := ParseRegistry([]byte(`
resources:
  - key: roles
    table: roles
    columns: [id, name]
`))
	require.NoError(t, err)
	roles, _ := registry.Lookup(ResourceRoles)
	assert.Equal(t, "id", roles.IDColumn)
}

func TestLoadRegistry_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
resources:
  - key: branches
    table: branches
    branch_column: id
    columns: [id, name]
`), 0o600))

	registry, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, registry.Resources(), 1)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestVerbFromMethod(t *testing.T) {
	cases := map[string]Verb{
		http.MethodGet:     VerbView,
		http.MethodHead:    VerbView,
		http.MethodOptions: VerbView,
		http.MethodPost:    VerbCreate,
		http.MethodPut:     VerbEdit,
		"patch":            VerbEdit,
		http.MethodDelete:  VerbDelete,
	}
	for method, want := range cases {
		got, ok := VerbFromMethod(method)
		assert.True(t, ok, method)
		assert.Equal(t, want, got, method)
	}
	_, ok := VerbFromMethod("TRACE")
	assert.False(t, ok)
}

func TestPhaseFor(t *testing.T) {
	phase, ok := PhaseFor(VerbEdit)
	assert.True(t, ok)
	assert.Equal(t, PhaseEdit, phase)

	_, ok = PhaseFor(VerbDelete)
	assert.False(t, ok)
}

func TestResourceType(t *testing.T) {
	assert.True(t, ResourceBranchSettings.Known())
	assert.False(t, ResourceType("orders").Known())

	assert.True(t, ResourcePermissions.AccessModel())
	assert.True(t, ResourceAssignedBranches.AccessModel())
	assert.False(t, ResourceBranchSettings.AccessModel())
	assert.False(t, ResourceStaff.AccessModel())
}
