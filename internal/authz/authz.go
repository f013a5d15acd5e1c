// Package authz holds the authorization predicates. They are pure functions of
// the actor and the target and never touch storage.
package authz

import (
	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

const (
	ReasonDeleteUnknownUser = "user not found or not signed in"
	ReasonDeleteSelf        = "cannot delete yourself"
	ReasonDeleteAdmin       = "cannot delete an admin"
	ReasonDeleteHigherRole  = "cannot delete a user with the same or higher role"
	ReasonDeleteWithMentees = "cannot delete a user with assigned mentees"
)

// Decision carries the outcome of a check that can be explained to the caller.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

func isAdmin(actor *models.User) bool {
	return actor != nil && actor.Role == models.RoleAdmin
}

// isStaff reports whether the actor ranks above BUDDY.
func isStaff(actor *models.User) bool {
	return actor != nil && actor.Role.Outranks(models.RoleBuddy)
}

// CanUserDeleteUser applies the deletion rules in a fixed order: self, admin
// target, role rank, then assigned mentees.
func CanUserDeleteUser(actor, target *models.User, assignedMentees int) Decision {
	if actor == nil || target == nil {
		return deny(ReasonDeleteUnknownUser)
	}
	if actor.ID == target.ID {
		return deny(ReasonDeleteSelf)
	}
	if target.Role == models.RoleAdmin {
		return deny(ReasonDeleteAdmin)
	}
	if target.Role.AtLeast(actor.Role) {
		return deny(ReasonDeleteHigherRole)
	}
	if assignedMentees > 0 {
		return deny(ReasonDeleteWithMentees)
	}
	return allow()
}

// CanManageUsers gates listing, creating and editing users.
func CanManageUsers(actor *models.User) bool {
	return isStaff(actor)
}

// CanAssignRole allows admins to grant any role and everyone else only roles
// strictly below their own.
func CanAssignRole(actor *models.User, role models.Role) bool {
	if actor == nil || !role.IsValid() {
		return false
	}
	return isAdmin(actor) || actor.Role.Outranks(role)
}

// CanEditUser lets users edit themselves and staff edit lower ranked users.
func CanEditUser(actor, target *models.User) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.ID == target.ID || isAdmin(actor) {
		return true
	}
	return isStaff(actor) && actor.Role.Outranks(target.Role)
}

func CanMutateMentee(actor *models.User) bool {
	return isStaff(actor)
}

func CanViewMentee(actor *models.User, mentee *models.Mentee) bool {
	if actor == nil || mentee == nil {
		return false
	}
	return isStaff(actor) || mentee.BuddyID == actor.ID
}

// CanUpdateMenteeStatus lets the assigned buddy track progress alongside staff.
func CanUpdateMenteeStatus(actor *models.User, mentee *models.Mentee) bool {
	return CanViewMentee(actor, mentee)
}

// CanAddNote lets anyone who can see the mentee leave a note.
func CanAddNote(actor *models.User, mentee *models.Mentee) bool {
	return CanViewMentee(actor, mentee)
}

func CanMutateNote(actor *models.User, note *models.Note) bool {
	if actor == nil || note == nil {
		return false
	}
	return isAdmin(actor) || note.AuthorID == actor.ID
}

func CanCreateFAQ(actor *models.User) bool {
	return isStaff(actor)
}

func CanMutateFAQ(actor *models.User, faq *models.FAQ) bool {
	if actor == nil || faq == nil {
		return false
	}
	return faq.AuthorID == actor.ID || isStaff(actor)
}

// CanViewAsset grants access to the owner, admins and users the asset is shared with.
func CanViewAsset(actor *models.User, asset *models.Asset) bool {
	if actor == nil || asset == nil {
		return false
	}
	return isAdmin(actor) || asset.OwnerID == actor.ID || asset.IsSharedWith(actor.ID)
}

// CanMutateAsset is limited to the owner and admins. Sharing never grants it.
func CanMutateAsset(actor *models.User, asset *models.Asset) bool {
	if actor == nil || asset == nil {
		return false
	}
	return isAdmin(actor) || asset.OwnerID == actor.ID
}

// CanSendMenteeEmail requires every recipient to be one of the actor's mentees.
func CanSendMenteeEmail(actor *models.User, recipients []*models.Mentee) bool {
	if actor == nil || len(recipients) == 0 {
		return false
	}
	for _, m := range recipients {
		if m == nil || m.BuddyID != actor.ID {
			return false
		}
	}
	return true
}
