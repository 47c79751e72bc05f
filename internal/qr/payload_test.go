package qr

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestStudentPayloadRoundTrip(t *testing.T) {
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	text := StudentPayload("s1", "Alice", issued)

	p, ok := ParsePayload(text)
	if !ok {
		t.Fatalf("payload not parseable: %q", text)
	}
	if p.Type != TypeStudent || p.StudentID != "s1" || p.StudentName != "Alice" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.Timestamp != issued.Format(time.RFC3339) {
		t.Fatalf("unexpected timestamp: %q", p.Timestamp)
	}
}

func TestSessionPayloadRoundTrip(t *testing.T) {
	s := Session{
		SessionID:   "session_42",
		SessionName: "Lecture",
		ClassID:     "cs101",
		CreatedAt:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC),
	}
	p, ok := ParsePayload(SessionPayload(s))
	if !ok {
		t.Fatal("session payload not parseable")
	}
	if p.Type != TypeSession || p.SessionID != "session_42" || p.ClassID != "cs101" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.ExpiresAt); err != nil {
		t.Fatalf("expires_at not RFC3339: %q", p.ExpiresAt)
	}
}

func TestParsePayloadRejectsNonJSON(t *testing.T) {
	if _, ok := ParsePayload("just-a-student-id"); ok {
		t.Fatal("bare text must not parse as a payload")
	}
}

func TestRenderPNG(t *testing.T) {
	img, err := RenderPNG(StudentPayload("s1", "Alice", time.Now()))
	if err != nil {
		t.Fatalf("RenderPNG failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(img)
	if err != nil {
		t.Fatalf("rendered image is not base64: %v", err)
	}
	if len(raw) < 8 || string(raw[1:4]) != "PNG" {
		t.Fatal("rendered image is not a PNG")
	}
}
