package entities

import (
	"clan-backend/pkg/types"
)

// Role: переиспользуемый набор прав. Привязывается к филиалу, а не к пользователю.
type Role struct {
	ID          uint64       `json:"id"`
	UID         string       `json:"uid"`
	Codename    string       `json:"codename"`
	Name        string       `json:"name"`
	Level       AccessLevel  `json:"level"`
	Permissions []Permission `json:"permissions"`

	types.BaseEntity
}
