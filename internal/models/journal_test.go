// ABOUTME: Tests for journal entries, ids, and record decoding.
// ABOUTME: Covers constructors, id format, table registry and validation errors.
package models

import (
	"errors"
	"strings"
	"testing"
)

func TestNewWorkoutEntry(t *testing.T) {
	w := NewWorkoutEntry("usr_1", "Leg day").WithDetails("5x5 squats")

	if !strings.HasPrefix(w.ID, "wo_") {
		t.Errorf("ID = %s, want wo_ prefix", w.ID)
	}
	if w.Title != "Leg day" || w.Details != "5x5 squats" {
		t.Errorf("unexpected fields: %+v", w)
	}
	if w.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestNewNutritionEntry(t *testing.T) {
	n := NewNutritionEntry("usr_1", "Breakfast")
	if !strings.HasPrefix(n.ID, "nut_") {
		t.Errorf("ID = %s, want nut_ prefix", n.ID)
	}
	if n.Details != "" {
		t.Errorf("Details = %q, want empty", n.Details)
	}
}

func TestNewIDFormat(t *testing.T) {
	id := NewID(PrefixSchedule)
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("id %q has %d parts, want 3", id, len(parts))
	}
	if parts[0] != "sess" {
		t.Errorf("prefix = %s, want sess", parts[0])
	}
	if len(parts[1]) != 8 {
		t.Errorf("random part %q has length %d, want 8", parts[1], len(parts[1]))
	}
	if NewID("x") == NewID("x") {
		t.Error("expected distinct ids")
	}
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord(TableUsers, []byte(`{"id":"usr_1","name":"Ana","email":"a@b.c","role":"client"}`))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	u, ok := rec.(*User)
	if !ok {
		t.Fatalf("got %T, want *User", rec)
	}
	if u.RecordID() != "usr_1" || u.Role != RoleClient {
		t.Errorf("unexpected user: %+v", u)
	}

	if _, err := DecodeRecord("bogus", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestEveryTableHasRecordType(t *testing.T) {
	for _, tbl := range AllTables {
		if _, err := NewRecord(tbl); err != nil {
			t.Errorf("NewRecord(%s): %v", tbl, err)
		}
		if !IsValidTable(string(tbl)) {
			t.Errorf("IsValidTable(%s) = false", tbl)
		}
	}
}

func TestValidationError(t *testing.T) {
	v := Violations{}
	if v.Err(TableProfiles) != nil {
		t.Fatal("expected nil error for empty violations")
	}
	v.Add("age", "must be between 10 and 100")
	v.Add("age", "ignored")
	v.Add("bio", "too long")

	err := v.Err(TableProfiles)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if msg, _ := ve.Field("age"); msg != "must be between 10 and 100" {
		t.Errorf("age message = %q", msg)
	}
	want := "invalid profiles record: age: must be between 10 and 100; bio: too long"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
