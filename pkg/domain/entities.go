// Package domain defines the persistent entities, patch types, error kinds,
// and rule evaluation primitives shared by the portalcore storage backends.
package domain

import "time"

// EntityType identifies the type of record stored in the domain document.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityUser identifies a registered user record.
	EntityUser EntityType = "user"
	// EntityContainer identifies a course or board record.
	EntityContainer EntityType = "container"
	// EntityItem identifies an assignment or destination record.
	EntityItem EntityType = "item"
	// EntitySubmission identifies a submission entry attached to an item.
	EntitySubmission EntityType = "submission"
)

// Role classifies a user within the course-portal deployment. The travel
// deployment leaves it empty.
type Role string

// Recognised user roles. RoleNone is valid: board users carry no role.
const (
	RoleNone       Role = ""
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Valid reports whether the role is one of the recognised values.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents a registered identity. Users are created at login and are
// never updated or deleted afterwards.
type User struct {
	Base
	Name string `json:"name"`
	Role Role   `json:"role,omitempty"`
}

// Container groups items: a course with an enrollment roster, or a travel
// board. OwnerID is a weak reference to the creating user and is nil for seed
// data. MemberIDs holds enrolled user IDs in enrollment order.
type Container struct {
	Base
	Title       string   `json:"title"`
	Description string   `json:"description"`
	OwnerID     *string  `json:"owner_id"`
	MemberIDs   []string `json:"members"`
}

// Item is the primary content entity: an assignment or a destination.
// ContainerID is the weak back-reference to the containing course/board; an
// item belongs to at most one container at a time because the reference is a
// scalar.
type Item struct {
	Base
	Title       string       `json:"title"`
	Description string       `json:"description"`
	ContainerID *string      `json:"container_id"`
	OwnerID     *string      `json:"owner_id"`
	DueDate     string       `json:"due_date,omitempty"`
	Status      string       `json:"status,omitempty"`
	Submissions []Submission `json:"submissions,omitempty"`
}

// Submission records a fact attached to an item by an actor. The list is
// append-only; only Grade is mutated afterwards, and only by grading.
type Submission struct {
	ActorID     string    `json:"actor_id"`
	Payload     string    `json:"payload"`
	Grade       *string   `json:"grade"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ContainerPatch describes a partial container update. Nil fields are
// retained unchanged.
type ContainerPatch struct {
	Title       *string
	Description *string
}

// ItemPatch describes a partial item update. Nil fields are retained
// unchanged.
type ItemPatch struct {
	Title       *string
	Description *string
	DueDate     *string
	Status      *string
}

// CloneUser returns an independent copy of the user.
func CloneUser(u User) User { return u }

// CloneContainer returns an independent copy of the container, including its
// membership list.
func CloneContainer(c Container) Container {
	cp := c
	if c.OwnerID != nil {
		owner := *c.OwnerID
		cp.OwnerID = &owner
	}
	cp.MemberIDs = append([]string(nil), c.MemberIDs...)
	if cp.MemberIDs == nil {
		cp.MemberIDs = []string{}
	}
	return cp
}

// CloneItem returns an independent copy of the item, including submissions.
func CloneItem(i Item) Item {
	cp := i
	if i.ContainerID != nil {
		container := *i.ContainerID
		cp.ContainerID = &container
	}
	if i.OwnerID != nil {
		owner := *i.OwnerID
		cp.OwnerID = &owner
	}
	cp.Submissions = make([]Submission, 0, len(i.Submissions))
	for _, s := range i.Submissions {
		cp.Submissions = append(cp.Submissions, CloneSubmission(s))
	}
	return cp
}

// CloneSubmission returns an independent copy of the submission.
func CloneSubmission(s Submission) Submission {
	cp := s
	if s.Grade != nil {
		grade := *s.Grade
		cp.Grade = &grade
	}
	return cp
}
