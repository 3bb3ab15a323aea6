package core

import (
	"context"
	"fmt"

	"portalcore/pkg/domain"
)

// referenceIntegrityRule reports dangling weak references as warnings.
// Queries tolerate them (the presentation layer renders "Unknown"), so the
// rule never blocks a commit; mutation paths that require a resolvable
// reference fail before rule evaluation.
type referenceIntegrityRule struct{}

// NewReferenceIntegrityRule constructs the warning-only dangling reference
// rule.
func NewReferenceIntegrityRule() Rule {
	return referenceIntegrityRule{}
}

func (referenceIntegrityRule) Name() string { return "reference_integrity" }

func (r referenceIntegrityRule) Evaluate(_ context.Context, view TransactionView, _ []Change) (Result, error) {
	var result Result
	warn := func(entity EntityType, entityID, message string) {
		result.Violations = append(result.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Entity:   entity,
			EntityID: entityID,
			Message:  message,
		})
	}

	for _, c := range view.ListContainers() {
		if c.OwnerID != nil {
			if _, ok := view.FindUser(*c.OwnerID); !ok {
				warn(domain.EntityContainer, c.ID, fmt.Sprintf("owner %q does not resolve", *c.OwnerID))
			}
		}
		for _, member := range c.MemberIDs {
			if _, ok := view.FindUser(member); !ok {
				warn(domain.EntityContainer, c.ID, fmt.Sprintf("member %q does not resolve", member))
			}
		}
	}

	for _, it := range view.ListItems() {
		if it.OwnerID != nil {
			if _, ok := view.FindUser(*it.OwnerID); !ok {
				warn(domain.EntityItem, it.ID, fmt.Sprintf("owner %q does not resolve", *it.OwnerID))
			}
		}
		if it.ContainerID != nil {
			if _, ok := view.FindContainer(*it.ContainerID); !ok {
				warn(domain.EntityItem, it.ID, fmt.Sprintf("container %q does not resolve", *it.ContainerID))
			}
		}
		for _, sub := range it.Submissions {
			if _, ok := view.FindUser(sub.ActorID); !ok {
				warn(domain.EntitySubmission, it.ID, fmt.Sprintf("actor %q does not resolve", sub.ActorID))
			}
		}
	}

	return result, nil
}
