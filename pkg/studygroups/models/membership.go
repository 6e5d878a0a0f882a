package models

import "time"

// MembershipStatus represents the approval state of a join request
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
	MembershipRejected MembershipStatus = "rejected"
)

// StudyGroupMembership links a user to a study group through the approval
// workflow. A user may hold unlimited rejected rows per group (retained for
// audit) but at most one pending-or-approved row at a time; the partial
// unique index below enforces that at the storage boundary so two
// concurrent joins cannot both commit.
//
// Memberships are never soft-deleted: rejected history must stay visible to
// the uniqueness predicate.
type StudyGroupMembership struct {
	ID           uint             `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	UserID       uint             `gorm:"not null;index;uniqueIndex:idx_active_membership,where:status <> 'rejected'" json:"user_id"`
	StudyGroupID uint             `gorm:"not null;index;uniqueIndex:idx_active_membership" json:"study_group_id"`
	Status       MembershipStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RequestedAt  time.Time        `gorm:"not null" json:"requested_at"`
	ApprovedAt   *time.Time       `json:"approved_at,omitempty"`
	ApprovedByID *uint            `json:"approved_by_id,omitempty"`

	// Relationships
	User       User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StudyGroup StudyGroup `gorm:"foreignKey:StudyGroupID" json:"study_group,omitempty"`
	ApprovedBy *User      `gorm:"foreignKey:ApprovedByID" json:"approved_by,omitempty"`
}
