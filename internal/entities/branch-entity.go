package entities

import (
	"clan-backend/pkg/types"
)

type BranchStatus string

const (
	BranchActive    BranchStatus = "ACTIVE"
	BranchReviewing BranchStatus = "REVIEWING"
	BranchInactive  BranchStatus = "INACTIVE"
	BranchBlocked   BranchStatus = "BLOCKED"
)

type Branch struct {
	ID           uint64       `json:"id"`
	UID          string       `json:"uid"`
	Name         string       `json:"name"`
	SerialNumber string       `json:"serial_number"`
	Email        string       `json:"email"`
	Status       BranchStatus `json:"status"`
	OwnerID      uint64       `json:"owner_id"`
	RoleID       *uint64      `json:"role_id"`

	types.BaseEntity
	types.SoftDelete
}
