package entities

import (
	"clan-backend/pkg/types"
)

// BranchAssignment: филиалы, которые администрирует сотрудник. Не более одной записи на пользователя.
type BranchAssignment struct {
	ID        uint64   `json:"id"`
	UID       string   `json:"uid"`
	UserID    uint64   `json:"user_id"`
	BranchIDs []uint64 `json:"branches"`

	types.BaseEntity
}

func (a *BranchAssignment) Has(branchID uint64) bool {
	if a == nil {
		return false
	}
	for _, id := range a.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}
