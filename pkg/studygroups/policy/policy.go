// Package policy is the authorization engine: pure, stateless decision
// functions over already-fetched entities. Every function is total over its
// inputs (a nil user or nil entity resolves to deny, never a panic) and
// deny is the default for anything not explicitly allowed.
//
// The rule set is closed and finite, so it is expressed as plain functions
// rather than interface dispatch.
package policy

import (
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
)

// Courses: any signed-in user may browse; only admins write.

func CanListCourses(user *models.User) bool {
	return user != nil
}

func CanViewCourse(user *models.User) bool {
	return user != nil
}

func CanManageCourse(user *models.User) bool {
	return user.IsAdmin()
}

// Study groups: any signed-in user may browse and create; the creator and
// admins manage.

func CanListGroups(user *models.User) bool {
	return user != nil
}

func CanViewGroup(user *models.User) bool {
	return user != nil
}

func CanCreateGroup(user *models.User) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
		return true
	}
	return false
}

func CanManageGroup(user *models.User, group *models.StudyGroup) bool {
	if user == nil || group == nil {
		return false
	}
	return user.IsAdmin() || group.CreatorID == user.ID
}

// Memberships: only the group creator and admins see or resolve join
// requests. Joining itself is open to anyone who can view the group.

func CanListMemberships(user *models.User, group *models.StudyGroup) bool {
	return CanManageGroup(user, group)
}

func CanResolveMembership(user *models.User, group *models.StudyGroup) bool {
	return CanManageGroup(user, group)
}

func CanJoinGroup(user *models.User, group *models.StudyGroup) bool {
	return user != nil && group != nil
}

// Sessions: visible to admins, the group creator, and approved members of
// the group; managed by admins and the creator only. The membership
// argument is the caller's membership row for the session's group, or nil.

func CanViewSession(user *models.User, group *models.StudyGroup, membership *models.StudyGroupMembership) bool {
	if user == nil || group == nil {
		return false
	}
	if user.IsAdmin() || group.CreatorID == user.ID {
		return true
	}
	return membership != nil &&
		membership.UserID == user.ID &&
		membership.Status == models.MembershipApproved
}

func CanManageSession(user *models.User, group *models.StudyGroup) bool {
	return CanManageGroup(user, group)
}

// Attendance recording follows session management.

func CanRecordAttendance(user *models.User, group *models.StudyGroup) bool {
	return CanManageGroup(user, group)
}

// RSVPs: creating one requires an approved membership in the session's
// group; updating and deleting are strictly owner-only, with no admin
// override.

func CanCreateRSVP(user *models.User, membership *models.StudyGroupMembership) bool {
	if user == nil || membership == nil {
		return false
	}
	return membership.UserID == user.ID &&
		membership.Status == models.MembershipApproved
}

func CanModifyRSVP(user *models.User, rsvp *models.SessionRSVP) bool {
	if user == nil || rsvp == nil {
		return false
	}
	return rsvp.UserID == user.ID
}

func CanDeleteRSVP(user *models.User, rsvp *models.SessionRSVP) bool {
	return CanModifyRSVP(user, rsvp)
}

// Dashboard: admins only.

func CanViewDashboard(user *models.User) bool {
	return user.IsAdmin()
}
