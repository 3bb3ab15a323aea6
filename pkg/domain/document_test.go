package domain_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"portalcore/pkg/domain"
)

func sampleDocument() domain.Document {
	owner := "u-1"
	containerRef := "c-1"
	grade := "A"
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return domain.Document{
		Users: []domain.User{
			{Base: domain.Base{ID: "u-1", CreatedAt: at, UpdatedAt: at}, Name: "Ada", Role: domain.RoleInstructor},
			{Base: domain.Base{ID: "u-2", CreatedAt: at, UpdatedAt: at}, Name: "Lin", Role: domain.RoleStudent},
		},
		Containers: []domain.Container{
			{Base: domain.Base{ID: "c-1", CreatedAt: at, UpdatedAt: at}, Title: "Intro to Web", Description: "HTML, CSS, JS basics", OwnerID: &owner, MemberIDs: []string{"u-2"}},
		},
		Items: []domain.Item{
			{Base: domain.Base{ID: "i-1", CreatedAt: at, UpdatedAt: at}, Title: "Homework 1", ContainerID: &containerRef, OwnerID: &owner, Submissions: []domain.Submission{
				{ActorID: "u-2", Payload: "answers", Grade: &grade, SubmittedAt: at},
			}},
		},
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	original := sampleDocument()
	clone := original.Clone()

	clone.Users[0].Name = "changed"
	clone.Containers[0].MemberIDs[0] = "u-999"
	*clone.Containers[0].OwnerID = "u-999"
	clone.Items[0].Submissions[0].Payload = "tampered"
	*clone.Items[0].Submissions[0].Grade = "F"
	*clone.Items[0].ContainerID = "c-999"

	if original.Users[0].Name != "Ada" {
		t.Fatalf("clone shares user backing array")
	}
	if original.Containers[0].MemberIDs[0] != "u-2" {
		t.Fatalf("clone shares membership slice")
	}
	if *original.Containers[0].OwnerID != "u-1" {
		t.Fatalf("clone shares owner pointer")
	}
	if original.Items[0].Submissions[0].Payload != "answers" {
		t.Fatalf("clone shares submissions slice")
	}
	if *original.Items[0].Submissions[0].Grade != "A" {
		t.Fatalf("clone shares grade pointer")
	}
	if *original.Items[0].ContainerID != "c-1" {
		t.Fatalf("clone shares container reference pointer")
	}
}

func TestDocumentJSONRoundTripIdentity(t *testing.T) {
	original := sampleDocument()
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded domain.Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round trip drifted:\nbefore %+v\nafter  %+v", original, decoded)
	}
}
