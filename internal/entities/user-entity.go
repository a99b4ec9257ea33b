// Файл: internal/entities/user-entity.go
package entities

import (
	"clan-backend/pkg/types"
)

// User: принципал запроса. Прямые права, назначение на филиалы и владение филиалом
// хранятся в отдельных таблицах и подтягиваются хранилищем доступа по ID.
type User struct {
	ID          uint64  `json:"id" db:"id"`
	UID         string  `json:"uid" db:"uid"`
	Email       string  `json:"email" db:"email"`
	Username    string  `json:"username" db:"username"`
	FirstName   string  `json:"first_name" db:"first_name"`
	LastName    *string `json:"last_name,omitempty" db:"last_name"`
	Password    string  `json:"-" db:"password"`
	IsSuperuser bool    `json:"is_superuser" db:"is_superuser"`
	IsActive    bool    `json:"is_active" db:"is_active"`
	BranchID    *uint64 `json:"branch_id" db:"branch_id"`

	types.BaseEntity
	types.SoftDelete
}

// IsAuthenticated: принципал разрешён и активен.
func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != 0 && u.IsActive && u.DeletedAt == nil
}
