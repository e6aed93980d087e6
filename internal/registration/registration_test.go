package registration

import (
	"testing"
)

func completeDraft() *Draft {
	return &Draft{
		Place: "Chennai",
		Participants: []Participant{
			{Name: "Arun", Gender: Male, Age: 34, Mobile: "9876543210", Accommodation: Dorm},
			{Name: "Meena", Gender: Female, Age: 31, Mobile: "9876543211", Accommodation: Room},
		},
	}
}

func TestComputeTotal(t *testing.T) {
	fees := FeeSchedule{ProgramFee: 2000, DormFee: 500, RoomFee: 1000}

	d := completeDraft()
	// One Dorm (2000+500) + one Room (2000+1000) = 5500.
	if got := d.ComputeTotal(fees); got != 5500 {
		t.Errorf("ComputeTotal() = %v, want 5500", got)
	}

	// Empty accommodation falls back to Dorm pricing.
	d.Participants[1].Accommodation = ""
	if got := d.ComputeTotal(fees); got != 5000 {
		t.Errorf("ComputeTotal() with default accommodation = %v, want 5000", got)
	}
}

func TestSetParticipantCount(t *testing.T) {
	d := NewDraft()
	d.Participants[0].Name = "Arun"

	d.SetParticipantCount(3)
	if len(d.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(d.Participants))
	}
	if d.Participants[0].Name != "Arun" {
		t.Errorf("existing participant lost on grow")
	}
	if d.Participants[2].Accommodation != Dorm || d.Participants[2].Gender != Male {
		t.Errorf("padding did not use default records: %+v", d.Participants[2])
	}

	d.PrimaryIndex = 2
	d.SetParticipantCount(1)
	if len(d.Participants) != 1 {
		t.Fatalf("expected 1 participant after truncation, got %d", len(d.Participants))
	}
	if d.PrimaryIndex != 0 {
		t.Errorf("primary index not reset after truncation, got %d", d.PrimaryIndex)
	}

	d.SetParticipantCount(0)
	if len(d.Participants) != MinParticipants {
		t.Errorf("count below minimum not clamped: %d", len(d.Participants))
	}
	d.SetParticipantCount(100)
	if len(d.Participants) != MaxParticipants {
		t.Errorf("count above maximum not clamped: %d", len(d.Participants))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Draft)
		wantField string
	}{
		{"complete draft", func(d *Draft) {}, ""},
		{"missing place", func(d *Draft) { d.Place = "  " }, "place"},
		{"missing name", func(d *Draft) { d.Participants[1].Name = "" }, "participants[1].name"},
		{"missing age", func(d *Draft) { d.Participants[0].Age = 0 }, "participants[0].age"},
		{"missing mobile", func(d *Draft) { d.Participants[1].Mobile = "" }, "participants[1].mobile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := completeDraft()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Validate() field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestUpdateParticipant(t *testing.T) {
	d := NewDraft()
	p := Participant{Name: "Kavi", Gender: Female, Age: 25, Mobile: "9000000000", Accommodation: Room}

	if err := d.UpdateParticipant(0, p); err != nil {
		t.Fatalf("UpdateParticipant: %v", err)
	}
	if d.Participants[0] != p {
		t.Errorf("participant not updated: %+v", d.Participants[0])
	}
	if err := d.UpdateParticipant(5, p); err == nil {
		t.Errorf("expected out of range error")
	}
}

func TestLastUsedCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache := NewLastUsedCache(dir)

	// First run: nothing cached, not an error.
	got, err := cache.Load()
	if err != nil || got != nil {
		t.Fatalf("Load() on empty cache = (%v, %v), want (nil, nil)", got, err)
	}

	d := completeDraft()
	if err := cache.Save(d); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err = cache.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.Place != d.Place || len(got.Participants) != len(d.Participants) {
		t.Errorf("cached draft mismatch: %+v", got)
	}
}
