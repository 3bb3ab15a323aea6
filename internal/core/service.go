package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portalcore/internal/infra/persistence/memory"
	"portalcore/pkg/domain"
)

// Service exposes the capability surface consumed by the presentation layer:
// session handling plus the container/item repositories. Every mutation runs
// in one store transaction followed by exactly one whole-document save; the
// service never calls back into presentation.
type Service struct {
	store   PersistentStore
	session *Session
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		session: NewSession(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store with the
// given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Session returns the process-lifetime session.
func (s *Service) Session() *Session {
	return s.session
}

// ContainerFilter narrows ListContainers results. Nil fields match anything.
type ContainerFilter struct {
	OwnerID *string
}

// ItemFilter narrows ListItems results. Nil fields match anything.
type ItemFilter struct {
	ContainerID *string
	OwnerID     *string
}

func (s *Service) startSpan(ctx context.Context, op string) (context.Context, TraceSpan) {
	if s.tracer == nil {
		return ctx, noopSpan{}
	}
	return s.tracer.Start(ctx, op)
}

func (s *Service) finish(ctx context.Context, op string, entity EntityType, entityID string, res Result, err error, started time.Time, span TraceSpan) {
	span.End(err)
	duration := s.now().Sub(started)
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, duration)
	}
	if s.audit != nil {
		entry := AuditEntry{
			Operation: op,
			Status:    AuditStatusSuccess,
			Entity:    entity,
			EntityID:  entityID,
			Warnings:  len(res.Warnings()),
			At:        s.now(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
}

// Login registers a new user and makes it the active session user. Every
// login mints a fresh identity, even for a name seen before; there is no
// lookup by name.
func (s *Service) Login(ctx context.Context, name string, role Role) (User, Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "login")
	var created User
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateUser(User{Name: name, Role: role})
		return err
	})
	if err == nil {
		s.session.set(created)
	}
	s.finish(ctx, "login", EntityUser, created.ID, res, err, started, span)
	return created, res, err
}

// Logout clears the active user. The document is untouched.
func (s *Service) Logout() {
	s.session.Clear()
}

// CurrentUser returns the active session user, if any.
func (s *Service) CurrentUser() (User, bool) {
	return s.session.Current()
}

// ListContainers returns containers in insertion order, optionally filtered
// by owner.
func (s *Service) ListContainers(ctx context.Context, filter ContainerFilter) ([]Container, error) {
	var out []Container
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, c := range view.ListContainers() {
			if filter.OwnerID != nil {
				if c.OwnerID == nil || *c.OwnerID != *filter.OwnerID {
					continue
				}
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// CreateContainer persists a new course/board owned by ownerID.
func (s *Service) CreateContainer(ctx context.Context, ownerID, title, description string) (Container, Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "create_container")
	var created Container
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		owner := ownerID
		var err error
		created, err = tx.CreateContainer(Container{
			Title:       title,
			Description: description,
			OwnerID:     &owner,
		})
		return err
	})
	s.finish(ctx, "create_container", EntityContainer, created.ID, res, err, started, span)
	return created, res, err
}

// UpdateContainer merges the patch into the container. Ownership is not
// checked here: any caller may update any container.
func (s *Service) UpdateContainer(ctx context.Context, id string, patch ContainerPatch) (Container, Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "update_container")
	var updated Container
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateContainer(id, func(c *Container) error {
			if patch.Title != nil {
				if err := requireNonEmpty("title", *patch.Title); err != nil {
					return err
				}
				c.Title = *patch.Title
			}
			if patch.Description != nil {
				c.Description = *patch.Description
			}
			return nil
		})
		return err
	})
	s.finish(ctx, "update_container", EntityContainer, id, res, err, started, span)
	return updated, res, err
}

// DeleteContainer removes the container and clears back-references on its
// items without deleting them.
func (s *Service) DeleteContainer(ctx context.Context, id string) (Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "delete_container")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteContainer(id)
	})
	s.finish(ctx, "delete_container", EntityContainer, id, res, err, started, span)
	return res, err
}

// AddMember enrolls userID into the container. Re-enrolling reports
// added=false and changes nothing.
func (s *Service) AddMember(ctx context.Context, containerID, userID string) (bool, Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "add_member")
	var added bool
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		added, err = tx.AddMember(containerID, userID)
		return err
	})
	s.finish(ctx, "add_member", EntityContainer, containerID, res, err, started, span)
	return added, res, err
}

// PlaceItem moves the item into the container, implicitly removing it from
// any prior container.
func (s *Service) PlaceItem(ctx context.Context, containerID, itemID string) (Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "place_item")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.PlaceItem(containerID, itemID)
	})
	s.finish(ctx, "place_item", EntityItem, itemID, res, err, started, span)
	return res, err
}

// RemoveItem clears the item's back-reference when it points at containerID;
// otherwise it is a no-op.
func (s *Service) RemoveItem(ctx context.Context, containerID, itemID string) (Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "remove_item")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.RemoveItem(containerID, itemID)
	})
	s.finish(ctx, "remove_item", EntityItem, itemID, res, err, started, span)
	return res, err
}

// ListItems returns items in insertion order, optionally filtered by
// container and/or owner.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	var out []Item
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, it := range view.ListItems() {
			if filter.ContainerID != nil {
				if it.ContainerID == nil || *it.ContainerID != *filter.ContainerID {
					continue
				}
			}
			if filter.OwnerID != nil {
				if it.OwnerID == nil || *it.OwnerID != *filter.OwnerID {
					continue
				}
			}
			out = append(out, it)
		}
		return nil
	})
	return out, err
}

// CreateItem persists a new assignment/destination authored by actorID. When
// the item carries a container reference the actor must own that container;
// without one the item is created unplaced.
func (s *Service) CreateItem(ctx context.Context, actorID string, item Item) (Item, Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "create_item")
	var created Item
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindUser(actorID); !ok {
			return domain.NotFoundError{Entity: EntityUser, ID: actorID}
		}
		if item.ContainerID != nil {
			container, ok := tx.FindContainer(*item.ContainerID)
			if !ok {
				return domain.NotFoundError{Entity: EntityContainer, ID: *item.ContainerID}
			}
			if container.OwnerID == nil || *container.OwnerID != actorID {
				return domain.AuthorizationError{
					ActorID: actorID,
					Reason:  fmt.Sprintf("does not own container %s", container.ID),
				}
			}
		}
		owner := actorID
		item.OwnerID = &owner
		var err error
		created, err = tx.CreateItem(item)
		return err
	})
	s.finish(ctx, "create_item", EntityItem, created.ID, res, err, started, span)
	return created, res, err
}

// UpdateItem merges the patch into the item; unspecified fields are retained.
func (s *Service) UpdateItem(ctx context.Context, id string, patch ItemPatch) (Item, Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "update_item")
	var updated Item
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateItem(id, func(it *Item) error {
			if patch.Title != nil {
				if err := requireNonEmpty("title", *patch.Title); err != nil {
					return err
				}
				it.Title = *patch.Title
			}
			if patch.Description != nil {
				it.Description = *patch.Description
			}
			if patch.DueDate != nil {
				it.DueDate = *patch.DueDate
			}
			if patch.Status != nil {
				it.Status = *patch.Status
			}
			return nil
		})
		return err
	})
	s.finish(ctx, "update_item", EntityItem, id, res, err, started, span)
	return updated, res, err
}

// DeleteItem removes the item outright; stale membership entries elsewhere
// are tolerated by queries.
func (s *Service) DeleteItem(ctx context.Context, id string) (Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "delete_item")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteItem(id)
	})
	s.finish(ctx, "delete_item", EntityItem, id, res, err, started, span)
	return res, err
}

// Submit appends a submission by actorID to the item. The actor must be an
// enrolled member of the item's container. Repeat submissions append new
// entries; nothing is deduplicated.
func (s *Service) Submit(ctx context.Context, itemID, actorID, payload string) (Submission, Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "submit")
	var created Submission
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		item, ok := tx.FindItem(itemID)
		if !ok {
			return domain.NotFoundError{Entity: EntityItem, ID: itemID}
		}
		if item.ContainerID == nil {
			return domain.AuthorizationError{ActorID: actorID, Reason: fmt.Sprintf("item %s is not part of any container", itemID)}
		}
		container, ok := tx.FindContainer(*item.ContainerID)
		if !ok {
			return domain.NotFoundError{Entity: EntityContainer, ID: *item.ContainerID}
		}
		enrolled := false
		for _, member := range container.MemberIDs {
			if member == actorID {
				enrolled = true
				break
			}
		}
		if !enrolled {
			return domain.AuthorizationError{
				ActorID: actorID,
				Reason:  fmt.Sprintf("not enrolled in container %s", container.ID),
			}
		}
		var err error
		created, err = tx.AppendSubmission(itemID, Submission{ActorID: actorID, Payload: payload})
		return err
	})
	s.finish(ctx, "submit", EntitySubmission, itemID, res, err, started, span)
	return created, res, err
}

// Grade overwrites the grade of the submission at index. Empty input leaves
// the stored grade unchanged.
func (s *Service) Grade(ctx context.Context, itemID string, index int, grade string) (Result, error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "grade")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.GradeSubmission(itemID, index, grade)
	})
	s.finish(ctx, "grade", EntitySubmission, itemID, res, err, started, span)
	return res, err
}

func requireNonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
