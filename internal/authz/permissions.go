// internal/authz/permissions.go
package authz

import (
	"net/http"
	"strings"
)

// Verb: запрашиваемое действие над типом ресурса.
type Verb string

const (
	VerbView   Verb = "VIEW"
	VerbCreate Verb = "CREATE"
	VerbEdit   Verb = "EDIT"
	VerbDelete Verb = "DELETE"
)

// Verbs: все глаголы в порядке отображения.
var Verbs = []Verb{VerbView, VerbCreate, VerbEdit, VerbDelete}

// VerbFromMethod сопоставляет HTTP-метод с глаголом. Для неизвестного метода false.
func VerbFromMethod(method string) (Verb, bool) {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return VerbView, true
	case http.MethodPost:
		return VerbCreate, true
	case http.MethodPut, http.MethodPatch:
		return VerbEdit, true
	case http.MethodDelete:
		return VerbDelete, true
	}
	return "", false
}

// Phase: фаза операции, для которой выбирается список полей.
type Phase string

const (
	PhaseView   Phase = "VIEW"
	PhaseCreate Phase = "CREATE"
	PhaseEdit   Phase = "EDIT"
)

// PhaseFor: фаза полей для глагола. У DELETE фазы нет.
func PhaseFor(verb Verb) (Phase, bool) {
	switch verb {
	case VerbView:
		return PhaseView, true
	case VerbCreate:
		return PhaseCreate, true
	case VerbEdit:
		return PhaseEdit, true
	}
	return "", false
}

// ResourceType: стабильный ключ типа ресурса.
type ResourceType string

// --- ВСЕ ТИПЫ РЕСУРСОВ В СИСТЕМЕ ---

const (
	ResourceBranches         ResourceType = "branches"
	ResourceBranchSettings   ResourceType = "branch_settings"
	ResourceStaff            ResourceType = "staff"
	ResourcePermissions      ResourceType = "permissions"
	ResourceRoles            ResourceType = "roles"
	ResourceAssignedBranches ResourceType = "assigned_branches"
)

var knownResources = map[ResourceType]struct{}{
	ResourceBranches:         {},
	ResourceBranchSettings:   {},
	ResourceStaff:            {},
	ResourcePermissions:      {},
	ResourceRoles:            {},
	ResourceAssignedBranches: {},
}

func (r ResourceType) Known() bool {
	_, ok := knownResources[r]
	return ok
}

// AccessModel: ресурсы, изменение которых меняет результат проверок доступа.
func (r ResourceType) AccessModel() bool {
	switch r {
	case ResourcePermissions, ResourceRoles, ResourceAssignedBranches, ResourceBranches:
		return true
	}
	return false
}
