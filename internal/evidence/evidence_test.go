package evidence

import (
	"context"
	"errors"
	"testing"
)

// mockRecognizer returns canned text or a canned error.
type mockRecognizer struct {
	text string
	err  error
}

func (m *mockRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	return m.text, m.err
}

func f(v float64) *float64 { return &v }

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		expected float64
		parsed   *float64
		want     bool
	}{
		{"exact match", 5500, f(5500), true},
		{"within tolerance above", 5500, f(5500.5), true},
		{"within tolerance below", 5500, f(5499.5), true},
		{"just outside tolerance", 5500, f(5498), false},
		{"far off", 5500, f(5400), false},
		{"missing parsed amount", 5500, nil, false},
		{"boundary is exclusive", 5500, f(5501), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconcile(tt.expected, tt.parsed); got != tt.want {
				t.Errorf("Reconcile(%v, %v) = %v, want %v", tt.expected, tt.parsed, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *float64
	}{
		{"rupee symbol", "Paid to Bagavath Mission\n₹5,500\nCompleted", f(5500)},
		{"rs prefix", "Rs. 500 sent", f(500)},
		{"inr prefix", "INR 2500.50", f(2500.50)},
		{"misread one after symbol", "₹ I", f(1)},
		{"paid label", "Paid: 4,500.00\nto merchant", f(4500)},
		{"lonely one line", "Payment\n!\nDone", f(1)},
		{"grouped number line", "Transfer\n12,345.00\nOK", f(12345)},
		{"decimal line", "Total\n4500.00", f(4500)},
		{"small integer line", "Sent\n500", f(500)},
		{"bare four digit rejected", "Sent\n4505", nil},
		{"phone number rejected", "Call 9876543210 for help", nil},
		{"no amount", "Payment completed successfully", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAmount(tt.text)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseAmount(%q) = %v, want nil", tt.text, *got)
			case tt.want != nil && got == nil:
				t.Errorf("parseAmount(%q) = nil, want %v", tt.text, *tt.want)
			case tt.want != nil && got != nil && *got != *tt.want:
				t.Errorf("parseAmount(%q) = %v, want %v", tt.text, *got, *tt.want)
			}
		})
	}
}

func TestParseTransactionRef(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"google header", "Google transaction ID\nCICAgKDjrYvYZg", "CICAgKDjrYvYZg"},
		{"upi header", "UPI transaction ID: 316913742955", "316913742955"},
		{"ref no", "UPI Ref. No. 123456789012", "123456789012"},
		{"generic fallback", "Transaction ID - ABC123xyz", "ABC123xyz"},
		{"none", "Payment done", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTransactionRef(tt.text); got != tt.want {
				t.Errorf("parseTransactionRef(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	rec := &mockRecognizer{text: "Paid to Mission\n₹5,500\nUPI transaction ID: 316913742955\nFrom: Arun Kumar"}
	ext, err := Extract(ctx, rec, []byte("img"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ext.Amount == nil || *ext.Amount != 5500 {
		t.Errorf("Amount = %v, want 5500", ext.Amount)
	}
	if ext.TransactionRef != "316913742955" {
		t.Errorf("TransactionRef = %q", ext.TransactionRef)
	}

	// Recognition failure yields a partial result, not a hard stop.
	rec = &mockRecognizer{err: ErrNoText}
	ext, err = Extract(ctx, rec, []byte("img"))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
	if ext.Amount != nil {
		t.Errorf("partial extraction should carry no amount")
	}
}

func TestSenderLine(t *testing.T) {
	text := "Payment successful\nFrom: Arun Kumar\n₹500"
	if got := SenderLine(text); got != "Arun Kumar" {
		t.Errorf("SenderLine = %q, want %q", got, "Arun Kumar")
	}
	if got := SenderLine("no sender here at all"); got != "" {
		t.Errorf("SenderLine on missing line = %q, want empty", got)
	}
}

func TestSniffImageMIME(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	if mime, ok := sniffImageMIME(jpeg); !ok || mime != "image/jpeg" {
		t.Errorf("jpeg sniff = %q, %v", mime, ok)
	}
	if _, ok := sniffImageMIME([]byte("plain text")); ok {
		t.Errorf("expected unsupported format for text bytes")
	}
}
