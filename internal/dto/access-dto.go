package dto

import (
	"github.com/aarondl/null/v8"

	"clan-backend/internal/authz"
)

type UserPermissionDTO struct {
	UserID       uint64 `json:"user_id" validate:"required,gt=0"`
	PermissionID uint64 `json:"permission_id" validate:"required,gt=0"`
}

type RolePermissionDTO struct {
	RoleID       uint64 `json:"role_id" validate:"required,gt=0"`
	PermissionID uint64 `json:"permission_id" validate:"required,gt=0"`
}

type AssignBranchesDTO struct {
	UserID    uint64   `json:"user_id" validate:"required,gt=0"`
	BranchIDs []uint64 `json:"branches" validate:"dive,gt=0"`
}

// PermissionPayloadDTO: проверка полей записи permissions, пришедших в общий эндпоинт ресурсов.
// Все поля необязательны: при частичном изменении приходит только часть.
type PermissionPayloadDTO struct {
	Level        *string     `json:"level" validate:"omitempty,access_level"`
	ResourceType *string     `json:"resource_type" validate:"omitempty,resource_type"`
	ObjectID     null.String `json:"object_id"`
	ViewFields   []string    `json:"view_fields" validate:"omitempty,field_list"`
	EditFields   []string    `json:"edit_fields" validate:"omitempty,field_list"`
	CreateFields []string    `json:"create_fields" validate:"omitempty,field_list"`
}

type RolePayloadDTO struct {
	Codename *string `json:"codename" validate:"omitempty,min=2,max=64"`
	Level    *string `json:"level" validate:"omitempty,access_level"`
}

// AccessEntryDTO: что вызывающий может делать с одним типом ресурса.
type AccessEntryDTO struct {
	Resource     authz.ResourceType `json:"resource"`
	Verbs        []authz.Verb       `json:"verbs"`
	Scope        authz.RowPredicate `json:"scope"`
	ViewFields   authz.FieldSet     `json:"view_fields"`
	CreateFields authz.FieldSet     `json:"create_fields"`
	EditFields   authz.FieldSet     `json:"edit_fields"`
}

type AccessOverviewDTO struct {
	User      UserPublicDTO    `json:"user"`
	Resources []AccessEntryDTO `json:"resources"`
}
