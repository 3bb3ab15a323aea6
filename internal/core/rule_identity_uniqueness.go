package core

import (
	"context"
	"fmt"

	"portalcore/pkg/domain"
)

// identityUniquenessRule blocks commits that would leave duplicate IDs inside
// any collection. Creation paths already guard against this; the rule catches
// imported or hand-built state.
type identityUniquenessRule struct{}

// NewIdentityUniquenessRule constructs the blocking ID uniqueness rule.
func NewIdentityUniquenessRule() Rule {
	return identityUniquenessRule{}
}

func (identityUniquenessRule) Name() string { return "identity_uniqueness" }

func (r identityUniquenessRule) Evaluate(_ context.Context, view TransactionView, _ []Change) (Result, error) {
	var result Result
	check := func(entity EntityType, ids []string) {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				result.Violations = append(result.Violations, Violation{
					Rule:     r.Name(),
					Severity: SeverityBlock,
					Entity:   entity,
					EntityID: id,
					Message:  fmt.Sprintf("duplicate %s id %q", entity, id),
				})
				continue
			}
			seen[id] = struct{}{}
		}
	}

	users := view.ListUsers()
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	check(domain.EntityUser, ids)

	containers := view.ListContainers()
	ids = ids[:0]
	for _, c := range containers {
		ids = append(ids, c.ID)
	}
	check(domain.EntityContainer, ids)

	items := view.ListItems()
	ids = ids[:0]
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	check(domain.EntityItem, ids)

	return result, nil
}
