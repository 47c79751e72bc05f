package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"attendtrack/internal/config"
	"attendtrack/internal/face"
	"attendtrack/internal/faceclient"
	"attendtrack/internal/store"

	"github.com/gin-gonic/gin"
)

// validB64 is a decodable base64 payload; the mock detector ignores contents.
const validB64 = "aGVsbG8gd29ybGQ="

func newFaceRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	file, err := store.NewFile(filepath.Join(t.TempDir(), "face_students.json"))
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	engine, err := face.NewEngine(faceclient.New("", true), file, face.DefaultThreshold)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	r := gin.New()
	NewFaceHandler(engine, config.Load()).Register(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFaceHealth(t *testing.T) {
	r := newFaceRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/face-recognition/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Fatalf("unexpected health payload: %v", resp)
	}
}

func TestFaceAddStudentValidation(t *testing.T) {
	r := newFaceRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/face-recognition/add-student", map[string]string{
		"student_id": "s1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/face-recognition/add-student", map[string]string{
		"student_id":   "s1",
		"student_name": "Alice",
		"image_data":   "!!!not-base64!!!",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad image data, got %d", w.Code)
	}
}

func TestFaceEnrollRecognizeRemoveFlow(t *testing.T) {
	r := newFaceRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/face-recognition/add-student", map[string]string{
		"student_id":   "s1",
		"student_name": "Alice",
		"image_data":   validB64,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("enroll failed: %d %s", w.Code, w.Body.String())
	}

	// The mock detector returns the same embedding for every image, so the
	// enrolled student is an exact match.
	w = doJSON(t, r, http.MethodPost, "/api/face-recognition/recognize", map[string]string{
		"image_data": validB64,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("recognize failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success       bool `json:"success"`
		FacesDetected int  `json:"faces_detected"`
		Results       []struct {
			StudentID  *string `json:"student_id"`
			Recognized bool    `json:"recognized"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !resp.Success || resp.FacesDetected != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected recognize response: %s", w.Body.String())
	}
	if !resp.Results[0].Recognized || resp.Results[0].StudentID == nil || *resp.Results[0].StudentID != "s1" {
		t.Fatalf("expected s1 recognized: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodDelete, "/api/face-recognition/remove-student", map[string]string{
		"student_id": "s1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("remove failed: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/face-recognition/remove-student", map[string]string{
		"student_id": "s1",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown student, got %d", w.Code)
	}
}

func TestFaceRecognizeUnknownWhenNoneEnrolled(t *testing.T) {
	r := newFaceRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/face-recognition/recognize", map[string]string{
		"image_data": validB64,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("recognize with empty registry must not error: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Results []struct {
			StudentName string `json:"student_name"`
			Recognized  bool   `json:"recognized"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Recognized || resp.Results[0].StudentName != "Unknown" {
		t.Fatalf("expected unknown result: %s", w.Body.String())
	}
}

func TestFaceTrainModelNoStudents(t *testing.T) {
	r := newFaceRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/face-recognition/train-model", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with empty registry, got %d", w.Code)
	}
}
