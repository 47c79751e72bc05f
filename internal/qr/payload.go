package qr

import (
	"encoding/base64"
	"encoding/json"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// Payload type tags embedded in generated QR codes.
const (
	TypeStudent = "student_id"
	TypeSession = "attendance_session"
)

// Payload is the JSON document encoded into a QR code. Student and session
// codes share the struct; unused fields are omitted.
type Payload struct {
	Type        string `json:"type"`
	StudentID   string `json:"student_id,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	SessionName string `json:"session_name,omitempty"`
	ClassID     string `json:"class_id,omitempty"`
	Timestamp   string `json:"timestamp"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// StudentPayload builds the QR payload identifying a student.
func StudentPayload(id, name string, issuedAt time.Time) string {
	p := Payload{
		Type:        TypeStudent,
		StudentID:   id,
		StudentName: name,
		Timestamp:   issuedAt.Format(time.RFC3339),
	}
	raw, _ := json.Marshal(p)
	return string(raw)
}

// SessionPayload builds the QR payload for an attendance session.
func SessionPayload(s Session) string {
	p := Payload{
		Type:        TypeSession,
		SessionID:   s.SessionID,
		SessionName: s.SessionName,
		ClassID:     s.ClassID,
		Timestamp:   s.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   s.ExpiresAt.Format(time.RFC3339),
	}
	raw, _ := json.Marshal(p)
	return string(raw)
}

// ParsePayload attempts to read a decoded QR text as a payload document.
// Non-JSON texts report ok=false and are handled as legacy bare ids.
func ParsePayload(text string) (Payload, bool) {
	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Payload{}, false
	}
	return p, true
}

// RenderPNG encodes the payload into a QR image and returns it base64-encoded.
func RenderPNG(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
