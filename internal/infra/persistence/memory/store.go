// Package memory provides the authoritative in-memory implementation of the
// portalcore persistence store. Durable backends embed it and mirror the whole
// document after every successful transaction.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"portalcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// User aliases domain.User for in-memory persistence operations.
	User = domain.User
	// Container aliases domain.Container.
	Container = domain.Container
	// Item aliases domain.Item.
	Item = domain.Item
	// Submission aliases domain.Submission.
	Submission = domain.Submission
	// Document aliases the root state snapshot.
	Document = domain.Document
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// ID prefixes preserved from the persisted document shape: users, containers,
// items.
const (
	userIDPrefix      = "u"
	containerIDPrefix = "c"
	itemIDPrefix      = "i"
)

// Store owns the single in-memory document and applies transactions to a deep
// clone, committing only when the transaction function and all registered
// rules succeed.
type Store struct {
	mu     sync.RWMutex
	state  Document
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an empty in-memory store backed by the provided rules
// engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  Document{}.Clone(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// ExportState returns a deep copy of the current document.
func (s *Store) ExportState() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ImportState replaces the store state with the provided document.
func (s *Store) ImportState(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = doc.Clone()
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider; used by tests for deterministic
// timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules are evaluated against the mutated copy; blocking findings
// abort the commit and surface as RuleViolationError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.Clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := &view{doc: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.Clone()
	s.mu.RUnlock()
	return fn(&view{doc: &snapshot})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := findUser(&s.state, id); i >= 0 {
		return domain.CloneUser(s.state.Users[i]), true
	}
	return User{}, false
}

// ListUsers returns all users in insertion order.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.state.Users))
	for _, u := range s.state.Users {
		out = append(out, domain.CloneUser(u))
	}
	return out
}

// GetContainer retrieves a container by ID.
func (s *Store) GetContainer(id string) (Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := findContainer(&s.state, id); i >= 0 {
		return domain.CloneContainer(s.state.Containers[i]), true
	}
	return Container{}, false
}

// ListContainers returns all containers in insertion order.
func (s *Store) ListContainers() []Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Container, 0, len(s.state.Containers))
	for _, c := range s.state.Containers {
		out = append(out, domain.CloneContainer(c))
	}
	return out
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := findItem(&s.state, id); i >= 0 {
		return domain.CloneItem(s.state.Items[i]), true
	}
	return Item{}, false
}

// ListItems returns all items in insertion order.
func (s *Store) ListItems() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.state.Items))
	for _, it := range s.state.Items {
		out = append(out, domain.CloneItem(it))
	}
	return out
}

// Entity lookups are linear scans: collections are small and slice order is
// the persisted insertion order.
func findUser(doc *Document, id string) int {
	for i := range doc.Users {
		if doc.Users[i].ID == id {
			return i
		}
	}
	return -1
}

func findContainer(doc *Document, id string) int {
	for i := range doc.Containers {
		if doc.Containers[i].ID == id {
			return i
		}
	}
	return -1
}

func findItem(doc *Document, id string) int {
	for i := range doc.Items {
		if doc.Items[i].ID == id {
			return i
		}
	}
	return -1
}

type transaction struct {
	state   Document
	changes []Change
	now     time.Time
}

var _ domain.Transaction = (*transaction)(nil)

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// CreateUser stores a new user. The name is trimmed and must be non-empty.
func (tx *transaction) CreateUser(u User) (User, error) {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return User{}, domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !u.Role.Valid() {
		return User{}, domain.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", u.Role)}
	}
	if u.ID == "" {
		u.ID = newID(userIDPrefix)
	}
	if findUser(&tx.state, u.ID) >= 0 {
		return User{}, fmt.Errorf("user %q already exists", u.ID)
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.Users = append(tx.state.Users, domain.CloneUser(u))
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, EntityID: u.ID})
	return domain.CloneUser(u), nil
}

// CreateContainer stores a new course/board. The title is trimmed and must be
// non-empty; a non-nil owner reference must resolve.
func (tx *transaction) CreateContainer(c Container) (Container, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return Container{}, domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if c.OwnerID != nil && findUser(&tx.state, *c.OwnerID) < 0 {
		return Container{}, domain.NotFoundError{Entity: domain.EntityUser, ID: *c.OwnerID}
	}
	if c.ID == "" {
		c.ID = newID(containerIDPrefix)
	}
	if findContainer(&tx.state, c.ID) >= 0 {
		return Container{}, fmt.Errorf("container %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.Containers = append(tx.state.Containers, domain.CloneContainer(c))
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionCreate, EntityID: c.ID})
	return domain.CloneContainer(c), nil
}

// UpdateContainer mutates a container using the provided mutator function.
// The ID is immutable.
func (tx *transaction) UpdateContainer(id string, mutator func(*Container) error) (Container, error) {
	i := findContainer(&tx.state, id)
	if i < 0 {
		return Container{}, domain.NotFoundError{Entity: domain.EntityContainer, ID: id}
	}
	current := domain.CloneContainer(tx.state.Containers[i])
	if err := mutator(&current); err != nil {
		return Container{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.Containers[i] = domain.CloneContainer(current)
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionUpdate, EntityID: id})
	return domain.CloneContainer(current), nil
}

// DeleteContainer removes a container and clears the back-reference on every
// item pointing at it. The items themselves are not deleted.
func (tx *transaction) DeleteContainer(id string) error {
	i := findContainer(&tx.state, id)
	if i < 0 {
		return domain.NotFoundError{Entity: domain.EntityContainer, ID: id}
	}
	tx.state.Containers = append(tx.state.Containers[:i], tx.state.Containers[i+1:]...)
	for j := range tx.state.Items {
		item := &tx.state.Items[j]
		if item.ContainerID != nil && *item.ContainerID == id {
			item.ContainerID = nil
			item.UpdatedAt = tx.now
			tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionUpdate, EntityID: item.ID})
		}
	}
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionDelete, EntityID: id})
	return nil
}

// AddMember enrolls a user into a container's membership list. Re-enrolling
// an existing member is a no-op reported as added=false.
func (tx *transaction) AddMember(containerID, userID string) (bool, error) {
	i := findContainer(&tx.state, containerID)
	if i < 0 {
		return false, domain.NotFoundError{Entity: domain.EntityContainer, ID: containerID}
	}
	container := &tx.state.Containers[i]
	for _, member := range container.MemberIDs {
		if member == userID {
			return false, nil
		}
	}
	container.MemberIDs = append(container.MemberIDs, userID)
	container.UpdatedAt = tx.now
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionUpdate, EntityID: containerID})
	return true, nil
}

// PlaceItem sets the item's container back-reference. Because the reference
// is a scalar, placing an item into a new container implicitly removes it
// from any prior one.
func (tx *transaction) PlaceItem(containerID, itemID string) error {
	if findContainer(&tx.state, containerID) < 0 {
		return domain.NotFoundError{Entity: domain.EntityContainer, ID: containerID}
	}
	j := findItem(&tx.state, itemID)
	if j < 0 {
		return domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
	}
	item := &tx.state.Items[j]
	ref := containerID
	item.ContainerID = &ref
	item.UpdatedAt = tx.now
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionUpdate, EntityID: itemID})
	return nil
}

// RemoveItem clears the item's back-reference when it currently equals
// containerID; any other value is left untouched.
func (tx *transaction) RemoveItem(containerID, itemID string) error {
	j := findItem(&tx.state, itemID)
	if j < 0 {
		return domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
	}
	item := &tx.state.Items[j]
	if item.ContainerID == nil || *item.ContainerID != containerID {
		return nil
	}
	item.ContainerID = nil
	item.UpdatedAt = tx.now
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionUpdate, EntityID: itemID})
	return nil
}

// CreateItem stores a new assignment/destination. The title is trimmed and
// must be non-empty; non-nil references must resolve.
func (tx *transaction) CreateItem(item Item) (Item, error) {
	item.Title = strings.TrimSpace(item.Title)
	if item.Title == "" {
		return Item{}, domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if item.OwnerID != nil && findUser(&tx.state, *item.OwnerID) < 0 {
		return Item{}, domain.NotFoundError{Entity: domain.EntityUser, ID: *item.OwnerID}
	}
	if item.ContainerID != nil && findContainer(&tx.state, *item.ContainerID) < 0 {
		return Item{}, domain.NotFoundError{Entity: domain.EntityContainer, ID: *item.ContainerID}
	}
	if item.ID == "" {
		item.ID = newID(itemIDPrefix)
	}
	if findItem(&tx.state, item.ID) >= 0 {
		return Item{}, fmt.Errorf("item %q already exists", item.ID)
	}
	item.CreatedAt = tx.now
	item.UpdatedAt = tx.now
	tx.state.Items = append(tx.state.Items, domain.CloneItem(item))
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionCreate, EntityID: item.ID})
	return domain.CloneItem(item), nil
}

// UpdateItem mutates an item using the provided mutator function. The ID is
// immutable.
func (tx *transaction) UpdateItem(id string, mutator func(*Item) error) (Item, error) {
	j := findItem(&tx.state, id)
	if j < 0 {
		return Item{}, domain.NotFoundError{Entity: domain.EntityItem, ID: id}
	}
	current := domain.CloneItem(tx.state.Items[j])
	if err := mutator(&current); err != nil {
		return Item{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.Items[j] = domain.CloneItem(current)
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionUpdate, EntityID: id})
	return domain.CloneItem(current), nil
}

// DeleteItem removes an item outright. Membership entries pointing at it
// become dangling references tolerated by queries.
func (tx *transaction) DeleteItem(id string) error {
	j := findItem(&tx.state, id)
	if j < 0 {
		return domain.NotFoundError{Entity: domain.EntityItem, ID: id}
	}
	tx.state.Items = append(tx.state.Items[:j], tx.state.Items[j+1:]...)
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionDelete, EntityID: id})
	return nil
}

// AppendSubmission appends a submission entry to an item. One actor may
// submit multiple times; entries are never deduplicated.
func (tx *transaction) AppendSubmission(itemID string, submission Submission) (Submission, error) {
	j := findItem(&tx.state, itemID)
	if j < 0 {
		return Submission{}, domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
	}
	submission.Payload = strings.TrimSpace(submission.Payload)
	if submission.Payload == "" {
		return Submission{}, domain.ValidationError{Field: "payload", Reason: "must not be empty"}
	}
	submission.SubmittedAt = tx.now
	item := &tx.state.Items[j]
	item.Submissions = append(item.Submissions, domain.CloneSubmission(submission))
	item.UpdatedAt = tx.now
	tx.recordChange(Change{Entity: domain.EntitySubmission, Action: domain.ActionCreate, EntityID: itemID})
	return domain.CloneSubmission(submission), nil
}

// GradeSubmission overwrites the grade of the submission at index. Empty
// input leaves the prior grade unchanged; it is a no-op, not a clear.
func (tx *transaction) GradeSubmission(itemID string, index int, grade string) error {
	j := findItem(&tx.state, itemID)
	if j < 0 {
		return domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
	}
	item := &tx.state.Items[j]
	if index < 0 || index >= len(item.Submissions) {
		return domain.NotFoundError{Entity: domain.EntitySubmission, ID: fmt.Sprintf("%s[%d]", itemID, index)}
	}
	grade = strings.TrimSpace(grade)
	if grade == "" {
		return nil
	}
	item.Submissions[index].Grade = &grade
	item.UpdatedAt = tx.now
	tx.recordChange(Change{Entity: domain.EntitySubmission, Action: domain.ActionUpdate, EntityID: fmt.Sprintf("%s[%d]", itemID, index)})
	return nil
}

func (tx *transaction) FindUser(id string) (User, bool) {
	if i := findUser(&tx.state, id); i >= 0 {
		return domain.CloneUser(tx.state.Users[i]), true
	}
	return User{}, false
}

func (tx *transaction) FindContainer(id string) (Container, bool) {
	if i := findContainer(&tx.state, id); i >= 0 {
		return domain.CloneContainer(tx.state.Containers[i]), true
	}
	return Container{}, false
}

func (tx *transaction) FindItem(id string) (Item, bool) {
	if i := findItem(&tx.state, id); i >= 0 {
		return domain.CloneItem(tx.state.Items[i]), true
	}
	return Item{}, false
}

// view exposes a read-only snapshot of transactional state to rules and
// queries.
type view struct {
	doc *Document
}

var _ domain.TransactionView = (*view)(nil)

func (v *view) ListUsers() []User {
	out := make([]User, 0, len(v.doc.Users))
	for _, u := range v.doc.Users {
		out = append(out, domain.CloneUser(u))
	}
	return out
}

func (v *view) ListContainers() []Container {
	out := make([]Container, 0, len(v.doc.Containers))
	for _, c := range v.doc.Containers {
		out = append(out, domain.CloneContainer(c))
	}
	return out
}

func (v *view) ListItems() []Item {
	out := make([]Item, 0, len(v.doc.Items))
	for _, it := range v.doc.Items {
		out = append(out, domain.CloneItem(it))
	}
	return out
}

func (v *view) FindUser(id string) (User, bool) {
	if i := findUser(v.doc, id); i >= 0 {
		return domain.CloneUser(v.doc.Users[i]), true
	}
	return User{}, false
}

func (v *view) FindContainer(id string) (Container, bool) {
	if i := findContainer(v.doc, id); i >= 0 {
		return domain.CloneContainer(v.doc.Containers[i]), true
	}
	return Container{}, false
}

func (v *view) FindItem(id string) (Item, bool) {
	if i := findItem(v.doc, id); i >= 0 {
		return domain.CloneItem(v.doc.Items[i]), true
	}
	return Item{}, false
}
