package transaction

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"PENDING", StatusPending},
		{"HOLD", StatusHold},
		{"REGISTERED", StatusRegistered},
		{"BNK_VERIFIED", StatusBnkVerified},
		{"REJECTED", StatusRejected},
		{"", StatusPending},
		{"something-old", StatusPending},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.raw); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusRegistered},
		{StatusPending, StatusHold},
		{StatusHold, StatusRegistered},
		{StatusHold, StatusPending},
		{StatusRegistered, StatusBnkVerified},
		{StatusRegistered, StatusPending},
		{StatusRegistered, StatusHold},
		{StatusBnkVerified, StatusRegistered},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusBnkVerified}, // must pass through REGISTERED
		{StatusBnkVerified, StatusPending},
		{StatusBnkVerified, StatusHold},
		{StatusRejected, StatusPending}, // terminal
		{StatusRejected, StatusRegistered},
		{StatusPending, StatusPending}, // self transitions are not moves
	}
	for _, tt := range denied {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}

	// No reachable state may transition into REJECTED; the status exists
	// only for records written by earlier generations of the system.
	for from := range transitions {
		if CanTransition(from, StatusRejected) {
			t.Errorf("CanTransition(%s, REJECTED) = true, want false", from)
		}
	}
}
