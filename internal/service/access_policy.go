package service

import (
	"github.com/noah-isme/studio-booking-api/internal/models"
)

// Actor is the authenticated principal behind a request, resolved from the
// JWT claims by the auth middleware.
type Actor struct {
	UserID string
	Role   models.UserRole
	Owner  models.OwnerRef
}

// AccessPolicy answers whether an actor may mutate a given slot. Ownership
// scoping is already applied by every repository query; this covers the
// finer rule inside a studio account.
type AccessPolicy interface {
	CanMutateSlot(actor Actor, slot *models.Slot) bool
}

// RoleAccessPolicy is the default policy: owners mutate anything in their
// scope, staff only the slots they are assigned to teach.
type RoleAccessPolicy struct{}

// CanMutateSlot implements AccessPolicy.
func (RoleAccessPolicy) CanMutateSlot(actor Actor, slot *models.Slot) bool {
	if actor.Role == models.RoleOwner {
		return true
	}
	return slot.TeacherID != nil && *slot.TeacherID == actor.UserID
}
