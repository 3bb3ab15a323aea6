package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	CreateUser(User) (User, error)
	CreateContainer(Container) (Container, error)
	UpdateContainer(id string, mutator func(*Container) error) (Container, error)
	DeleteContainer(id string) error
	AddMember(containerID, userID string) (bool, error)
	PlaceItem(containerID, itemID string) error
	RemoveItem(containerID, itemID string) error
	CreateItem(Item) (Item, error)
	UpdateItem(id string, mutator func(*Item) error) (Item, error)
	DeleteItem(id string) error
	AppendSubmission(itemID string, submission Submission) (Submission, error)
	GradeSubmission(itemID string, index int, grade string) error
	FindUser(id string) (User, bool)
	FindContainer(id string) (Container, bool)
	FindItem(id string) (Item, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// queries. List order is insertion order.
type TransactionView interface {
	ListUsers() []User
	ListContainers() []Container
	ListItems() []Item
	FindUser(id string) (User, bool)
	FindContainer(id string) (Container, bool)
	FindItem(id string) (Item, bool)
}

// PersistentStore is a minimal abstraction over durable backends. Every
// successful transaction is followed by exactly one whole-document save.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetUser(id string) (User, bool)
	ListUsers() []User
	GetContainer(id string) (Container, bool)
	ListContainers() []Container
	GetItem(id string) (Item, bool)
	ListItems() []Item
	ExportState() Document
	ImportState(Document)
}
