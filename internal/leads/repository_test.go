package leads

import (
	"context"
	"errors"
	"testing"
)

func TestInMemorySaveAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	lead, err := repo.Save(ctx, &Lead{
		SessionID: "sess-1",
		Name:      "Laura Martínez",
		Phone:     "5512345678",
		Need:      "family",
		Budget:    300000,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if lead.ID == "" || lead.CreatedAt.IsZero() {
		t.Error("expected generated id and created_at")
	}

	got, err := repo.GetBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if got.Name != "Laura Martínez" {
		t.Errorf("unexpected name %q", got.Name)
	}
}

func TestInMemorySaveMergesNonEmptyFields(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, err := repo.Save(ctx, &Lead{
		SessionID:   "sess-1",
		Name:        "Laura Martínez",
		Phone:       "5512345678",
		ContactTime: "por la tarde",
		Budget:      300000,
	})
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}

	// A retried handoff sends the same name and phone but no contact time;
	// the stored value must survive.
	second, err := repo.Save(ctx, &Lead{
		SessionID: "sess-1",
		Name:      "Laura Martínez",
		Phone:     "5599999999",
	})
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if second.ID != first.ID {
		t.Error("upsert should keep the original id")
	}
	if second.Phone != "5599999999" {
		t.Errorf("phone should update, got %q", second.Phone)
	}
	if second.ContactTime != "por la tarde" {
		t.Errorf("empty field should not clear stored value, got %q", second.ContactTime)
	}
	if second.Budget != 300000 {
		t.Errorf("zero budget should not clear stored value, got %f", second.Budget)
	}
}

func TestSaveValidation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	cases := []struct {
		name string
		lead Lead
		want error
	}{
		{"missing session", Lead{Name: "Ana", Phone: "5512345678"}, ErrMissingSession},
		{"missing name", Lead{SessionID: "s", Phone: "5512345678"}, ErrInvalidName},
		{"missing phone", Lead{SessionID: "s", Name: "Ana"}, ErrMissingContact},
	}
	for _, tc := range cases {
		if _, err := repo.Save(ctx, &tc.lead); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestGetBySessionNotFound(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.GetBySession(context.Background(), "missing"); !errors.Is(err, ErrLeadNotFound) {
		t.Errorf("expected ErrLeadNotFound, got %v", err)
	}
}
