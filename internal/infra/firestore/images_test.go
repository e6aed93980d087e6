package firestore

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"testing"
)

// Minimal PNG: magic bytes followed by padding, enough for content sniffing.
var pngPayload = append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 8)...)

func TestDecodeLegacyPayload(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngPayload)

	tests := []struct {
		name  string
		input string
	}{
		{"bare base64", encoded},
		{"data url prefix", "data:image/png;base64," + encoded},
		{"trailing whitespace", encoded + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeLegacyPayload(tt.input)
			if err != nil {
				t.Fatalf("decodeLegacyPayload: %v", err)
			}
			if !bytes.Equal(got, pngPayload) {
				t.Fatalf("decoded %d bytes, want the original payload", len(got))
			}
			// The decoded bytes must sniff as an image, not as text.
			if ct := http.DetectContentType(got); ct != "image/png" {
				t.Errorf("content type = %q, want image/png", ct)
			}
		})
	}
}

func TestDecodeLegacyPayloadRejectsGarbage(t *testing.T) {
	if _, err := decodeLegacyPayload("not base64 at all!"); err == nil {
		t.Fatal("expected decode error")
	}
}
