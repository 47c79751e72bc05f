// Package face implements the vision attendance engine: the enrolled-student
// registry and the embedding-distance capture resolver.
package face

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"attendtrack/internal/faceclient"
	"attendtrack/internal/logger"
	"attendtrack/internal/store"

	"github.com/rs/zerolog"
)

var (
	ErrNoFace        = errors.New("no face detected in the image")
	ErrMultipleFaces = errors.New("multiple faces detected, provide an image with only one face")
	ErrNotFound      = errors.New("student not found")
)

// DefaultThreshold is the maximum embedding distance for an accepted match.
const DefaultThreshold = 0.6

// Detector finds faces in a base64 image and returns their embeddings.
type Detector interface {
	Detect(ctx context.Context, imageData string) ([]faceclient.Face, error)
}

// Student is an enrolled identity with its face embedding.
type Student struct {
	ID         string    `json:"student_id"`
	Name       string    `json:"student_name"`
	Embedding  []float64 `json:"embedding"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Summary is the embedding-free view returned by listings.
type Summary struct {
	ID         string    `json:"student_id"`
	Name       string    `json:"student_name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Detection is the resolution of one detected face.
type Detection struct {
	StudentID  string
	Name       string
	Confidence float64
	Box        faceclient.Box
	Recognized bool
}

type state struct {
	Students    []Student `json:"students"`
	LastUpdated time.Time `json:"last_updated"`
}

// Engine owns the registry state. All access goes through its lock; the
// check-then-write sequences in Enroll and Remove rely on that.
type Engine struct {
	mu        sync.RWMutex
	detector  Detector
	threshold float64
	file      *store.File
	students  []Student
	log       zerolog.Logger
}

// NewEngine hydrates the registry from the backing file.
func NewEngine(detector Detector, file *store.File, threshold float64) (*Engine, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	e := &Engine{
		detector:  detector,
		threshold: threshold,
		file:      file,
		log:       logger.Get().With().Str("component", "face-engine").Logger(),
	}

	var st state
	loaded, err := file.Load(&st)
	if err != nil {
		return nil, err
	}
	e.students = st.Students
	if loaded {
		e.log.Info().Int("students", len(e.students)).Msg("registry hydrated")
	} else {
		e.log.Info().Msg("no existing registry data, starting empty")
	}
	return e, nil
}

// Enroll registers a student from a single-face sample image. A sample with
// zero or multiple faces is rejected. Enrolling an existing id overwrites
// its embedding (last-write-wins) and keeps its position in the list.
func (e *Engine) Enroll(ctx context.Context, id, name, imageData string) (Summary, error) {
	if id == "" || name == "" {
		return Summary{}, fmt.Errorf("student id and name required")
	}

	faces, err := e.detector.Detect(ctx, imageData)
	if err != nil {
		return Summary{}, fmt.Errorf("face detection failed: %w", err)
	}
	if len(faces) == 0 {
		return Summary{}, ErrNoFace
	}
	if len(faces) > 1 {
		return Summary{}, ErrMultipleFaces
	}
	if len(faces[0].Embedding) == 0 {
		return Summary{}, fmt.Errorf("could not extract face embedding")
	}

	student := Student{
		ID:         id,
		Name:       name,
		Embedding:  faces[0].Embedding,
		EnrolledAt: time.Now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	replaced := false
	for i := range e.students {
		if e.students[i].ID == id {
			e.students[i] = student
			replaced = true
			break
		}
	}
	if !replaced {
		e.students = append(e.students, student)
	}

	if err := e.save(); err != nil {
		return Summary{}, err
	}
	e.log.Info().Str("student_id", id).Bool("replaced", replaced).Msg("student enrolled")
	return Summary{ID: student.ID, Name: student.Name, EnrolledAt: student.EnrolledAt}, nil
}

// Remove deletes exactly the student with the given id.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.students {
		if e.students[i].ID == id {
			e.students = append(e.students[:i], e.students[i+1:]...)
			if err := e.save(); err != nil {
				return err
			}
			e.log.Info().Str("student_id", id).Msg("student removed")
			return nil
		}
	}
	return ErrNotFound
}

// List returns enrolled students in enrollment order.
func (e *Engine) List() []Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Summary, 0, len(e.students))
	for _, s := range e.students {
		out = append(out, Summary{ID: s.ID, Name: s.Name, EnrolledAt: s.EnrolledAt})
	}
	return out
}

// Count returns the number of enrolled students.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.students)
}

// Recognize resolves every face in the image against the enrolled registry.
// With zero enrolled students every detection resolves to unknown; partial
// recognition is not an error.
func (e *Engine) Recognize(ctx context.Context, imageData string) ([]Detection, error) {
	faces, err := e.detector.Detect(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]Detection, 0, len(faces))
	for _, f := range faces {
		results = append(results, e.resolveLocked(f))
	}
	return results, nil
}

func (e *Engine) resolveLocked(f faceclient.Face) Detection {
	det := Detection{Name: "Unknown", Box: f.Box}
	if len(e.students) == 0 {
		return det
	}

	best := -1
	bestDist := math.MaxFloat64
	for i := range e.students {
		d, ok := euclidean(e.students[i].Embedding, f.Embedding)
		if ok && d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return det
	}

	det.Confidence = clamp01(1 - bestDist)
	if bestDist < e.threshold {
		det.StudentID = e.students[best].ID
		det.Name = e.students[best].Name
		det.Recognized = true
	}
	return det
}

func (e *Engine) save() error {
	return e.file.Save(state{Students: e.students, LastUpdated: time.Now()})
}

// euclidean reports the L2 distance between two embeddings. Vectors of
// different dimensionality cannot be compared.
func euclidean(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
