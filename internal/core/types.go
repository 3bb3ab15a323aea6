// Package core exposes the transactional service surface over the portalcore
// document store: session handling, container/item repositories, submissions
// and grading.
package core

import "portalcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Role               = domain.Role
	Base               = domain.Base
	User               = domain.User
	Container          = domain.Container
	Item               = domain.Item
	Submission         = domain.Submission
	ContainerPatch     = domain.ContainerPatch
	ItemPatch          = domain.ItemPatch
	Document           = domain.Document
	Change             = domain.Change
	Action             = domain.Action
	Severity           = domain.Severity
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityUser       = domain.EntityUser
	EntityContainer  = domain.EntityContainer
	EntityItem       = domain.EntityItem
	EntitySubmission = domain.EntitySubmission
)

const (
	RoleNone       = domain.RoleNone
	RoleInstructor = domain.RoleInstructor
	RoleStudent    = domain.RoleStudent
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
