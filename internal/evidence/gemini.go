package evidence

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiRecognizer implements Recognizer using a Gemini vision model as the
// optical-recognition capability.
type GeminiRecognizer struct {
	model string
}

// NewGeminiRecognizer creates a recognizer for the given model name.
func NewGeminiRecognizer(model string) *GeminiRecognizer {
	return &GeminiRecognizer{model: model}
}

const recognizePrompt = "You are an OCR engine for payment screenshots.\n\n" +
	"Task:\n" +
	"- Transcribe ALL visible text in the attached image, top to bottom.\n" +
	"- Preserve line breaks: one output line per visual line.\n" +
	"- Keep currency symbols, punctuation and digits exactly as shown.\n" +
	"- Output ONLY the transcribed text.\n" +
	"- Do NOT describe the image, do NOT add commentary.\n" +
	"- Do NOT wrap the response in code fences.\n" +
	"- If the image contains no text at all, output an empty response.\n"

// Recognize sends the image to the model and returns the raw transcribed
// text. Unsupported formats are rejected before any network call.
func (r *GeminiRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	mimeType, ok := sniffImageMIME(image)
	if !ok {
		return "", fmt.Errorf("recognize: %w", ErrUnsupportedFormat)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: recognizePrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("recognize: generate content: %w", err)
	}

	raw := cleanModelText(resp.Text())
	if raw == "" {
		return "", fmt.Errorf("recognize: %w", ErrNoText)
	}
	return raw, nil
}

// cleanModelText strips Markdown fences if the model ignored instructions.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// sniffImageMIME detects the image format from magic bytes. Only formats the
// recognition capability accepts are reported.
func sniffImageMIME(data []byte) (string, bool) {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", true
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "image/png", true
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp", true
	default:
		return "", false
	}
}

var _ Recognizer = (*GeminiRecognizer)(nil)
