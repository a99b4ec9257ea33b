package entities

import (
	"github.com/aarondl/null/v8"

	"clan-backend/pkg/types"
)

// AccessLevel: широта действия права или роли.
type AccessLevel string

const (
	LevelAll              AccessLevel = "ALL"
	LevelAssignedBranches AccessLevel = "ASSIGNED_BRANCHES"
	LevelOwner            AccessLevel = "OWNER"
)

func (l AccessLevel) Valid() bool {
	switch l {
	case LevelAll, LevelAssignedBranches, LevelOwner:
		return true
	}
	return false
}

// AllFieldsMarker в списке полей означает "все поля модели".
const AllFieldsMarker = "*"

// Permission: запись о праве на тип ресурса (или на один объект, если задан ObjectID).
// nil-список полей означает пустой набор, а не "все поля".
type Permission struct {
	ID           uint64      `json:"id"`
	UID          string      `json:"uid"`
	Level        AccessLevel `json:"level"`
	View         bool        `json:"view"`
	Create       bool        `json:"create"`
	Edit         bool        `json:"edit"`
	Delete       bool        `json:"delete"`
	ResourceType string      `json:"resource_type"`
	ObjectID     null.String `json:"object_id"`
	ViewFields   []string    `json:"view_fields"`
	EditFields   []string    `json:"edit_fields"`
	CreateFields []string    `json:"create_fields"`

	types.BaseEntity
}

// AppliesTo: действует ли право на объект objectID.
// Право без ObjectID действует на весь тип; пустой objectID означает операцию над типом.
func (p Permission) AppliesTo(objectID string) bool {
	if !p.ObjectID.Valid || p.ObjectID.String == "" {
		return true
	}
	return objectID != "" && p.ObjectID.String == objectID
}
