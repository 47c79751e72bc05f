package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"attendtrack/internal/config"
	"attendtrack/internal/qr"

	"github.com/gin-gonic/gin"
)

func newQRRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := qr.NewEngine(t.TempDir())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	r := gin.New()
	NewQRHandler(engine, config.Load()).Register(r)
	return r
}

func addQRStudent(t *testing.T, r *gin.Engine, id, name string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/qr-scanner/add-student", map[string]string{
		"student_id":   id,
		"student_name": name,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add-student failed: %d %s", w.Code, w.Body.String())
	}
}

func TestQRAddStudentAndStudentQR(t *testing.T) {
	r := newQRRouter(t)
	addQRStudent(t, r, "s1", "Alice")

	w := doJSON(t, r, http.MethodGet, "/api/qr-scanner/student-qr/s1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("student-qr failed: %d", w.Code)
	}
	var resp struct {
		Success bool   `json:"success"`
		QRData  string `json:"qr_data"`
		QRImage string `json:"qr_image"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !resp.Success || resp.QRData == "" || resp.QRImage == "" {
		t.Fatalf("incomplete student-qr response: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/qr-scanner/student-qr/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown student, got %d", w.Code)
	}
}

func TestQRMarkAttendanceFlow(t *testing.T) {
	r := newQRRouter(t)
	addQRStudent(t, r, "s1", "Alice")

	w := doJSON(t, r, http.MethodPost, "/api/qr-scanner/mark-attendance", map[string]string{
		"student_id": "s1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first mark failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/qr-scanner/mark-attendance", map[string]string{
		"student_id": "s1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate mark, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/qr-scanner/mark-attendance", map[string]string{
		"student_id": "ghost",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown student, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/qr-scanner/attendance-report?student_id=s1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report failed: %d", w.Code)
	}
	var resp struct {
		TotalRecords int `json:"total_records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.TotalRecords != 1 {
		t.Fatalf("expected 1 record, got %d", resp.TotalRecords)
	}
}

func TestQRCreateSession(t *testing.T) {
	r := newQRRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/qr-scanner/create-session", map[string]any{
		"session_name":   "Lecture 1",
		"class_id":       "cs101",
		"duration_hours": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create-session failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		QRData  string `json:"qr_data"`
		Session struct {
			SessionID string `json:"session_id"`
			IsActive  bool   `json:"is_active"`
		} `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !resp.Success || resp.Session.SessionID == "" || !resp.Session.IsActive {
		t.Fatalf("incomplete session response: %s", w.Body.String())
	}
	if _, ok := qr.ParsePayload(resp.QRData); !ok {
		t.Fatalf("session qr_data is not a payload: %q", resp.QRData)
	}

	w = doJSON(t, r, http.MethodPost, "/api/qr-scanner/create-session", map[string]string{
		"session_name": "missing class",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing class_id, got %d", w.Code)
	}
}

func TestQRScanRejectsBadImage(t *testing.T) {
	r := newQRRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/qr-scanner/scan", map[string]string{
		"image_data": validB64, // valid base64, but not an image
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-image payload, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/qr-scanner/scan", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing image_data, got %d", w.Code)
	}
}

func TestQRRemoveStudent(t *testing.T) {
	r := newQRRouter(t)
	addQRStudent(t, r, "s1", "Alice")

	w := doJSON(t, r, http.MethodDelete, "/api/qr-scanner/remove-student", map[string]string{
		"student_id": "s1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("remove failed: %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, "/api/qr-scanner/remove-student", map[string]string{
		"student_id": "s1",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown student, got %d", w.Code)
	}
}
