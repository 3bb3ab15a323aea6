package memory_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"portalcore/internal/infra/persistence/memory"
	"portalcore/pkg/domain"
)

func strPtr(v string) *string { return &v }

func must[T any](t *testing.T, v T, err error) T {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

type fixture struct {
	instructorID string
	studentID    string
	courseID     string
	assignmentID string
}

func seedStore(t *testing.T, store *memory.Store) fixture {
	t.Helper()
	ctx := context.Background()

	var ids fixture
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		instructorVal, err := tx.CreateUser(domain.User{Name: "Ada", Role: domain.RoleInstructor})
		instructor := must(t, instructorVal, err)
		ids.instructorID = instructor.ID
		studentVal, err := tx.CreateUser(domain.User{Name: "Lin", Role: domain.RoleStudent})
		student := must(t, studentVal, err)
		ids.studentID = student.ID

		courseVal, err := tx.CreateContainer(domain.Container{
			Title:       "Intro to Web",
			Description: "HTML, CSS, JS basics",
			OwnerID:     &ids.instructorID,
		})
		course := must(t, courseVal, err)
		ids.courseID = course.ID

		assignmentVal, err := tx.CreateItem(domain.Item{
			Title:       "Homework 1",
			Description: "Build a page",
			ContainerID: &ids.courseID,
			OwnerID:     &ids.instructorID,
		})
		assignment := must(t, assignmentVal, err)
		ids.assignmentID = assignment.ID
		return nil
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return ids
}

func TestStoreCreateAndLookup(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)

	user, ok := store.GetUser(ids.studentID)
	if !ok || user.Name != "Lin" || user.Role != domain.RoleStudent {
		t.Fatalf("unexpected user lookup: %+v ok=%v", user, ok)
	}
	if !strings.HasPrefix(user.ID, "u-") {
		t.Fatalf("user id %q missing prefix", user.ID)
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not stamped: %+v", user.Base)
	}

	course, ok := store.GetContainer(ids.courseID)
	if !ok || course.Title != "Intro to Web" {
		t.Fatalf("unexpected container lookup: %+v ok=%v", course, ok)
	}
	if !strings.HasPrefix(course.ID, "c-") {
		t.Fatalf("container id %q missing prefix", course.ID)
	}
	if course.OwnerID == nil || *course.OwnerID != ids.instructorID {
		t.Fatalf("owner reference lost: %+v", course.OwnerID)
	}
	if course.MemberIDs == nil || len(course.MemberIDs) != 0 {
		t.Fatalf("expected empty roster, got %+v", course.MemberIDs)
	}

	item, ok := store.GetItem(ids.assignmentID)
	if !ok || item.Title != "Homework 1" {
		t.Fatalf("unexpected item lookup: %+v ok=%v", item, ok)
	}
	if !strings.HasPrefix(item.ID, "i-") {
		t.Fatalf("item id %q missing prefix", item.ID)
	}
	if item.ContainerID == nil || *item.ContainerID != ids.courseID {
		t.Fatalf("container back-reference lost: %+v", item.ContainerID)
	}

	if _, ok := store.GetUser("u-missing"); ok {
		t.Fatalf("lookup of missing user succeeded")
	}
}

func TestStoreValidationRejectsBlankInput(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Name: "   "})
		return err
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateContainer(domain.Container{Title: ""})
		return err
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank title, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateItem(domain.Item{Title: "\t\n"})
		return err
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank item title, got %v", err)
	}

	if store.ExportState().Users != nil && len(store.ExportState().Users) != 0 {
		t.Fatalf("failed transaction mutated state")
	}
}

func TestStoreRejectsDanglingReferencesOnCreate(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateContainer(domain.Container{Title: "Orphans", OwnerID: strPtr("u-ghost")})
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for dangling owner, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateItem(domain.Item{Title: "Nowhere", ContainerID: strPtr("c-ghost")})
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for dangling container reference, got %v", err)
	}
}

func TestStoreInsertionOrderIsListOrder(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	titles := []string{"First", "Second", "Third"}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, title := range titles {
			if _, err := tx.CreateContainer(domain.Container{Title: title}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("create containers: %v", err)
	}

	containers := store.ListContainers()
	if len(containers) != len(titles) {
		t.Fatalf("expected %d containers, got %d", len(titles), len(containers))
	}
	for i, title := range titles {
		if containers[i].Title != title {
			t.Fatalf("position %d: got %q, want %q", i, containers[i].Title, title)
		}
	}
}

func TestStoreUpdateContainerKeepsIDAndStampsUpdatedAt(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)
	ctx := context.Background()

	later := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return later })

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContainer(ids.courseID, func(c *domain.Container) error {
			c.ID = "c-hijacked"
			c.Title = "Advanced Web"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	course, ok := store.GetContainer(ids.courseID)
	if !ok {
		t.Fatalf("container lost its id after update")
	}
	if course.Title != "Advanced Web" {
		t.Fatalf("title not updated: %q", course.Title)
	}
	if !course.UpdatedAt.Equal(later) {
		t.Fatalf("UpdatedAt not restamped: %v", course.UpdatedAt)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContainer("c-missing", func(*domain.Container) error { return nil })
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found updating missing container, got %v", err)
	}
}

func TestStoreDeleteContainerClearsItemBackReferences(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteContainer(ids.courseID)
	}); err != nil {
		t.Fatalf("delete container: %v", err)
	}

	if _, ok := store.GetContainer(ids.courseID); ok {
		t.Fatalf("container still present after delete")
	}
	item, ok := store.GetItem(ids.assignmentID)
	if !ok {
		t.Fatalf("item was cascaded away; it must survive container deletion")
	}
	if item.ContainerID != nil {
		t.Fatalf("item back-reference not cleared: %v", *item.ContainerID)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteContainer(ids.courseID)
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func TestStoreAddMemberIsIdempotent(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)
	ctx := context.Background()

	var first, second bool
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		if first, err = tx.AddMember(ids.courseID, ids.studentID); err != nil {
			return err
		}
		second, err = tx.AddMember(ids.courseID, ids.studentID)
		return err
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if !first || second {
		t.Fatalf("expected added=true then added=false, got %v then %v", first, second)
	}

	course, _ := store.GetContainer(ids.courseID)
	if len(course.MemberIDs) != 1 || course.MemberIDs[0] != ids.studentID {
		t.Fatalf("roster drifted: %+v", course.MemberIDs)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.AddMember("c-missing", ids.studentID)
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing container, got %v", err)
	}
}

func TestStorePlaceItemMovesBetweenContainers(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	var boardA, boardB, itemID string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		a, err := tx.CreateContainer(domain.Container{Title: "Summer Trip"})
		boardA = must(t, a, err).ID
		b, err := tx.CreateContainer(domain.Container{Title: "Weekend Getaways"})
		boardB = must(t, b, err).ID
		it, err := tx.CreateItem(domain.Item{Title: "Lisbon"})
		itemID = must(t, it, err).ID
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.PlaceItem(boardA, itemID)
	}); err != nil {
		t.Fatalf("place into first board: %v", err)
	}
	item, _ := store.GetItem(itemID)
	if item.ContainerID == nil || *item.ContainerID != boardA {
		t.Fatalf("item not placed in first board: %+v", item.ContainerID)
	}

	// Placing again moves the item; the scalar reference makes membership
	// exclusive.
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.PlaceItem(boardB, itemID)
	}); err != nil {
		t.Fatalf("place into second board: %v", err)
	}
	item, _ = store.GetItem(itemID)
	if item.ContainerID == nil || *item.ContainerID != boardB {
		t.Fatalf("item did not move to second board: %+v", item.ContainerID)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.PlaceItem("c-missing", itemID)
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing container, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.PlaceItem(boardA, "i-missing")
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing item, got %v", err)
	}
}

func TestStoreRemoveItemOnlyClearsMatchingReference(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	var boardA, boardB, itemID string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		a, err := tx.CreateContainer(domain.Container{Title: "Summer Trip"})
		boardA = must(t, a, err).ID
		b, err := tx.CreateContainer(domain.Container{Title: "Weekend Getaways"})
		boardB = must(t, b, err).ID
		it, err := tx.CreateItem(domain.Item{Title: "Lisbon", ContainerID: &boardA})
		itemID = must(t, it, err).ID
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Removing from a board the item is not on leaves the placement alone.
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.RemoveItem(boardB, itemID)
	}); err != nil {
		t.Fatalf("remove from other board: %v", err)
	}
	item, _ := store.GetItem(itemID)
	if item.ContainerID == nil || *item.ContainerID != boardA {
		t.Fatalf("mismatched remove mutated placement: %+v", item.ContainerID)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.RemoveItem(boardA, itemID)
	}); err != nil {
		t.Fatalf("remove from own board: %v", err)
	}
	item, _ = store.GetItem(itemID)
	if item.ContainerID != nil {
		t.Fatalf("placement not cleared: %v", *item.ContainerID)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.RemoveItem(boardA, "i-missing")
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing item, got %v", err)
	}
}

func TestStoreSubmissionsAppendWithoutDeduplication(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)
	ctx := context.Background()

	for _, payload := range []string{"first draft", "first draft"} {
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.AppendSubmission(ids.assignmentID, domain.Submission{ActorID: ids.studentID, Payload: payload})
			return err
		}); err != nil {
			t.Fatalf("append submission: %v", err)
		}
	}

	item, _ := store.GetItem(ids.assignmentID)
	if len(item.Submissions) != 2 {
		t.Fatalf("expected two identical submissions retained, got %d", len(item.Submissions))
	}
	for _, sub := range item.Submissions {
		if sub.ActorID != ids.studentID || sub.Payload != "first draft" {
			t.Fatalf("unexpected submission: %+v", sub)
		}
		if sub.SubmittedAt.IsZero() {
			t.Fatalf("SubmittedAt not stamped")
		}
		if sub.Grade != nil {
			t.Fatalf("fresh submission already graded")
		}
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.AppendSubmission(ids.assignmentID, domain.Submission{ActorID: ids.studentID, Payload: "  "})
		return err
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank payload, got %v", err)
	}
}

func TestStoreGradeSubmission(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.AppendSubmission(ids.assignmentID, domain.Submission{ActorID: ids.studentID, Payload: "answers"})
		return err
	}); err != nil {
		t.Fatalf("append submission: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.GradeSubmission(ids.assignmentID, 0, "B+")
	}); err != nil {
		t.Fatalf("grade: %v", err)
	}
	item, _ := store.GetItem(ids.assignmentID)
	if item.Submissions[0].Grade == nil || *item.Submissions[0].Grade != "B+" {
		t.Fatalf("grade not stored: %+v", item.Submissions[0].Grade)
	}

	// Empty input is a no-op, never a clear.
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.GradeSubmission(ids.assignmentID, 0, "   ")
	}); err != nil {
		t.Fatalf("empty grade: %v", err)
	}
	item, _ = store.GetItem(ids.assignmentID)
	if item.Submissions[0].Grade == nil || *item.Submissions[0].Grade != "B+" {
		t.Fatalf("empty grade input overwrote stored grade: %+v", item.Submissions[0].Grade)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.GradeSubmission(ids.assignmentID, 0, "A")
	}); err != nil {
		t.Fatalf("regrade: %v", err)
	}
	item, _ = store.GetItem(ids.assignmentID)
	if *item.Submissions[0].Grade != "A" {
		t.Fatalf("regrade did not overwrite: %q", *item.Submissions[0].Grade)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.GradeSubmission(ids.assignmentID, 5, "A")
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for out-of-range index, got %v", err)
	}
}

func TestStoreDeleteItemLeavesNoTrace(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteItem(ids.assignmentID)
	}); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if _, ok := store.GetItem(ids.assignmentID); ok {
		t.Fatalf("item still present after delete")
	}
	if _, ok := store.GetContainer(ids.courseID); !ok {
		t.Fatalf("container vanished with item")
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteItem(ids.assignmentID)
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func TestStoreFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)
	ctx := context.Background()

	before := store.ExportState()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateContainer(domain.Container{Title: "Doomed"}); err != nil {
			return err
		}
		return tx.DeleteItem("i-missing")
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected transaction failure, got %v", err)
	}
	after := store.ExportState()
	if len(after.Containers) != len(before.Containers) {
		t.Fatalf("aborted transaction leaked a container")
	}
	if _, ok := store.GetContainer(ids.courseID); !ok {
		t.Fatalf("existing container lost")
	}
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	store := memory.NewStore(nil)
	seedStore(t, store)

	snapshot := store.ExportState()
	other := memory.NewStore(nil)
	other.ImportState(snapshot)

	if len(other.ListUsers()) != 2 || len(other.ListContainers()) != 1 || len(other.ListItems()) != 1 {
		t.Fatalf("imported state incomplete: %+v", other.ExportState())
	}

	// Mutating the first store must not bleed into the second.
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateContainer(domain.Container{Title: "Extra"})
		return err
	}); err != nil {
		t.Fatalf("mutate original: %v", err)
	}
	if len(other.ListContainers()) != 1 {
		t.Fatalf("import shares state with source store")
	}
}

func TestStoreViewSeesConsistentSnapshot(t *testing.T) {
	store := memory.NewStore(nil)
	ids := seedStore(t, store)

	err := store.View(context.Background(), func(view domain.TransactionView) error {
		if _, ok := view.FindUser(ids.studentID); !ok {
			t.Fatalf("view missing seeded user")
		}
		if _, ok := view.FindContainer(ids.courseID); !ok {
			t.Fatalf("view missing seeded container")
		}
		items := view.ListItems()
		if len(items) != 1 || items[0].ID != ids.assignmentID {
			t.Fatalf("unexpected view items: %+v", items)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
