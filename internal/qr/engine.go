// Package qr implements the QR attendance engine: the student registry,
// the session registry, the scan resolver and the attendance ledger.
package qr

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"attendtrack/internal/logger"
	"attendtrack/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyMarked   = errors.New("already marked present for today")
)

// Student is a registered identity with its generated QR payload.
type Student struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Email       string    `json:"email,omitempty"`
	Department  string    `json:"department,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	QRCode      string    `json:"qr_code"`
}

// Summary is the listing view of a student, without the QR payload.
type Summary struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Email       string    `json:"email"`
	Department  string    `json:"department"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is a time-bounded grouping for attendance events.
type Session struct {
	SessionID       string    `json:"session_id"`
	SessionName     string    `json:"session_name"`
	ClassID         string    `json:"class_id"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	AttendanceCount int       `json:"attendance_count"`
}

// SessionView is a session with its activity computed from the expiry.
type SessionView struct {
	Session
	IsActive bool `json:"is_active"`
}

// Record is one attendance ledger entry. The ledger is append-only and
// holds at most one record per (student, date).
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Date        string    `json:"date"` // YYYY-MM-DD, server local time
	Time        string    `json:"time"` // HH:MM:SS
	Method      string    `json:"method"`
	SessionID   string    `json:"session_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ScanResult is the resolution of one decoded QR code.
type ScanResult struct {
	Success     bool   `json:"success"`
	Type        string `json:"type,omitempty"`
	StudentID   string `json:"student_id,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	SessionName string `json:"session_name,omitempty"`
	ClassID     string `json:"class_id,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Message     string `json:"message"`
	QRData      string `json:"qr_data,omitempty"`
}

type studentState struct {
	Students    []Student `json:"students"`
	LastUpdated time.Time `json:"last_updated"`
}

type sessionState struct {
	Sessions    []Session `json:"sessions"`
	LastUpdated time.Time `json:"last_updated"`
}

// Engine owns all QR-service state. A single lock guards students, sessions
// and the ledger so that check-then-append sequences cannot interleave.
type Engine struct {
	mu           sync.RWMutex
	studentsFile *store.File
	sessionsFile *store.File
	ledgerFile   *store.File

	students []Student
	byID     map[string]int
	sessions []Session
	sessByID map[string]int
	records  []Record

	log zerolog.Logger
}

// NewEngine hydrates registry, sessions and ledger from the data directory.
func NewEngine(dataDir string) (*Engine, error) {
	studentsFile, err := store.NewFile(filepath.Join(dataDir, "qr_students.json"))
	if err != nil {
		return nil, err
	}
	sessionsFile, err := store.NewFile(filepath.Join(dataDir, "qr_sessions.json"))
	if err != nil {
		return nil, err
	}
	ledgerFile, err := store.NewFile(filepath.Join(dataDir, "qr_attendance.json"))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		studentsFile: studentsFile,
		sessionsFile: sessionsFile,
		ledgerFile:   ledgerFile,
		byID:         make(map[string]int),
		sessByID:     make(map[string]int),
		log:          logger.Get().With().Str("component", "qr-engine").Logger(),
	}

	var st studentState
	if _, err := studentsFile.Load(&st); err != nil {
		return nil, err
	}
	e.students = st.Students

	var ss sessionState
	if _, err := sessionsFile.Load(&ss); err != nil {
		return nil, err
	}
	e.sessions = ss.Sessions

	if _, err := ledgerFile.Load(&e.records); err != nil {
		return nil, err
	}

	e.reindex()
	e.log.Info().
		Int("students", len(e.students)).
		Int("sessions", len(e.sessions)).
		Int("records", len(e.records)).
		Msg("engine hydrated")
	return e, nil
}

func (e *Engine) reindex() {
	e.byID = make(map[string]int, len(e.students))
	for i := range e.students {
		e.byID[e.students[i].StudentID] = i
	}
	e.sessByID = make(map[string]int, len(e.sessions))
	for i := range e.sessions {
		e.sessByID[e.sessions[i].SessionID] = i
	}
}

// AddStudent registers a student and generates their QR payload. An existing
// id is overwritten in place (last-write-wins).
func (e *Engine) AddStudent(id, name, email, department string) (Student, error) {
	if id == "" || name == "" {
		return Student{}, fmt.Errorf("student id and name required")
	}

	student := Student{
		StudentID:   id,
		StudentName: name,
		Email:       email,
		Department:  department,
		CreatedAt:   time.Now(),
		QRCode:      StudentPayload(id, name, time.Now()),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if i, ok := e.byID[id]; ok {
		e.students[i] = student
	} else {
		e.students = append(e.students, student)
		e.byID[id] = len(e.students) - 1
	}

	if err := e.saveStudents(); err != nil {
		return Student{}, err
	}
	e.log.Info().Str("student_id", id).Msg("student registered")
	return student, nil
}

// RemoveStudent deletes exactly the student with the given id.
func (e *Engine) RemoveStudent(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.byID[id]
	if !ok {
		return ErrStudentNotFound
	}
	e.students = append(e.students[:i], e.students[i+1:]...)
	e.reindex()
	if err := e.saveStudents(); err != nil {
		return err
	}
	e.log.Info().Str("student_id", id).Msg("student removed")
	return nil
}

// GetStudent returns the student with the given id.
func (e *Engine) GetStudent(id string) (Student, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if i, ok := e.byID[id]; ok {
		return e.students[i], nil
	}
	return Student{}, ErrStudentNotFound
}

// ListStudents returns students in registration order.
func (e *Engine) ListStudents() []Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Summary, 0, len(e.students))
	for _, s := range e.students {
		out = append(out, Summary{
			StudentID:   s.StudentID,
			StudentName: s.StudentName,
			Email:       s.Email,
			Department:  s.Department,
			CreatedAt:   s.CreatedAt,
		})
	}
	return out
}

// CreateSession opens an attendance session expiring after the duration and
// returns it along with its QR payload.
func (e *Engine) CreateSession(name, classID string, duration time.Duration) (SessionView, string, error) {
	if name == "" || classID == "" {
		return SessionView{}, "", fmt.Errorf("session name and class id required")
	}
	if duration <= 0 {
		duration = 24 * time.Hour
	}

	now := time.Now()
	session := Session{
		SessionID:   fmt.Sprintf("session_%d_%s", now.Unix(), uuid.NewString()[:8]),
		SessionName: name,
		ClassID:     classID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(duration),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions = append(e.sessions, session)
	e.sessByID[session.SessionID] = len(e.sessions) - 1
	if err := e.saveSessions(); err != nil {
		return SessionView{}, "", err
	}

	e.log.Info().Str("session_id", session.SessionID).Time("expires_at", session.ExpiresAt).Msg("session created")
	return e.viewLocked(session), SessionPayload(session), nil
}

// ListSessions returns sessions in creation order, activity computed live.
func (e *Engine) ListSessions() []SessionView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]SessionView, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, e.viewLocked(s))
	}
	return out
}

func (e *Engine) viewLocked(s Session) SessionView {
	return SessionView{Session: s, IsActive: time.Now().Before(s.ExpiresAt)}
}

// Scan resolves every decoded QR text. All codes are processed; a failed
// resolution is an outcome, not an error.
func (e *Engine) Scan(texts []string) []ScanResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]ScanResult, 0, len(texts))
	for _, text := range texts {
		results = append(results, e.resolveLocked(text))
	}
	return results
}

func (e *Engine) resolveLocked(text string) ScanResult {
	payload, ok := ParsePayload(text)
	if !ok {
		return e.resolveLegacyLocked(text)
	}

	switch payload.Type {
	case TypeStudent:
		return e.resolveStudentLocked(payload)
	case TypeSession:
		return resolveSession(payload)
	default:
		return ScanResult{
			Success: false,
			Message: "Unknown QR code type",
			QRData:  text,
		}
	}
}

func (e *Engine) resolveStudentLocked(p Payload) ScanResult {
	if p.StudentID == "" || p.StudentName == "" {
		return ScanResult{Success: false, Message: "Invalid student QR code format"}
	}
	if _, ok := e.byID[p.StudentID]; !ok {
		return ScanResult{Success: false, Message: fmt.Sprintf("Student %s not found in database", p.StudentName)}
	}
	return ScanResult{
		Success:     true,
		Type:        TypeStudent,
		StudentID:   p.StudentID,
		StudentName: p.StudentName,
		Message:     fmt.Sprintf("Student %s identified successfully", p.StudentName),
	}
}

func resolveSession(p Payload) ScanResult {
	if p.SessionID == "" {
		return ScanResult{Success: false, Message: "Invalid session QR code format"}
	}
	// An unparseable expires_at skips the validity check; a malformed
	// session code still scans rather than being rejected outright.
	if expires, err := time.Parse(time.RFC3339, p.ExpiresAt); err == nil {
		if time.Now().After(expires) {
			return ScanResult{Success: false, Message: "This QR code has expired"}
		}
	}
	return ScanResult{
		Success:     true,
		Type:        TypeSession,
		SessionID:   p.SessionID,
		SessionName: p.SessionName,
		ClassID:     p.ClassID,
		ExpiresAt:   p.ExpiresAt,
		Message:     fmt.Sprintf("Session %s identified successfully", p.SessionName),
	}
}

// resolveLegacyLocked handles pre-payload codes carrying a bare student id.
func (e *Engine) resolveLegacyLocked(text string) ScanResult {
	id := strings.TrimSpace(text)
	i, ok := e.byID[id]
	if !ok {
		return ScanResult{Success: false, Message: fmt.Sprintf("Student ID %s not found", id)}
	}
	s := e.students[i]
	return ScanResult{
		Success:     true,
		Type:        TypeStudent,
		StudentID:   s.StudentID,
		StudentName: s.StudentName,
		Message:     fmt.Sprintf("Student %s identified successfully", s.StudentName),
	}
}

// MarkAttendance appends a ledger record for the student, at most once per
// local calendar day. The duplicate check and the append run under one lock
// acquisition so concurrent marks cannot both pass the check.
func (e *Engine) MarkAttendance(studentID, sessionID, method string) (Record, error) {
	if method == "" {
		method = "qr"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.byID[studentID]
	if !ok {
		return Record{}, ErrStudentNotFound
	}
	student := e.students[i]

	now := time.Now()
	today := now.Format("2006-01-02")
	for _, r := range e.records {
		if r.StudentID == studentID && r.Date == today {
			return Record{}, ErrAlreadyMarked
		}
	}

	record := Record{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		StudentName: student.StudentName,
		Date:        today,
		Time:        now.Format("15:04:05"),
		Method:      method,
		SessionID:   sessionID,
		Timestamp:   now,
	}
	e.records = append(e.records, record)

	if err := e.ledgerFile.Save(e.records); err != nil {
		e.records = e.records[:len(e.records)-1]
		return Record{}, err
	}

	if sessionID != "" {
		if si, ok := e.sessByID[sessionID]; ok {
			e.sessions[si].AttendanceCount++
			if err := e.saveSessions(); err != nil {
				e.log.Error().Err(err).Str("session_id", sessionID).Msg("session counter persist failed")
			}
		}
	}

	e.log.Info().Str("student_id", studentID).Str("method", method).Msg("attendance marked")
	return record, nil
}

// Report returns ledger records matching all supplied filters, in insertion
// order. Empty filters are no-ops.
func (e *Engine) Report(date, studentID, sessionID string) []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Record, 0)
	for _, r := range e.records {
		if date != "" && r.Date != date {
			continue
		}
		if studentID != "" && r.StudentID != studentID {
			continue
		}
		if sessionID != "" && r.SessionID != sessionID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Counts returns the registry, session and ledger sizes.
func (e *Engine) Counts() (students, sessions, records int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.students), len(e.sessions), len(e.records)
}

func (e *Engine) saveStudents() error {
	return e.studentsFile.Save(studentState{Students: e.students, LastUpdated: time.Now()})
}

func (e *Engine) saveSessions() error {
	return e.sessionsFile.Save(sessionState{Sessions: e.sessions, LastUpdated: time.Now()})
}
