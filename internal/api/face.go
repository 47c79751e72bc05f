package api

import (
	"errors"
	"fmt"
	"net/http"

	"attendtrack/internal/auth"
	"attendtrack/internal/config"
	"attendtrack/internal/face"
	"attendtrack/internal/imaging"
	"attendtrack/internal/logger"
	"attendtrack/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// FaceHandler serves the face-recognition attendance API.
type FaceHandler struct {
	engine *face.Engine
	cfg    config.App
	log    zerolog.Logger
}

// NewFaceHandler creates the handler.
func NewFaceHandler(engine *face.Engine, cfg config.App) *FaceHandler {
	return &FaceHandler{
		engine: engine,
		cfg:    cfg,
		log:    logger.Get().With().Str("component", "face-api").Logger(),
	}
}

// Register mounts the routes under /api/face-recognition.
func (h *FaceHandler) Register(r *gin.Engine) {
	g := r.Group("/api/face-recognition")
	g.GET("/health", h.health)
	g.POST("/recognize", h.recognize)
	g.GET("/students", h.students)
	g.GET("/status", h.status)

	mutating := g.Group("")
	if h.cfg.AuthEnabled {
		g.POST("/auth/token", tokenHandler(h.cfg, "face-admin"))
		mutating.Use(auth.Bearer(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	}
	mutating.POST("/add-student", h.addStudent)
	mutating.POST("/train-model", h.trainModel)
	mutating.DELETE("/remove-student", h.removeStudent)
}

func (h *FaceHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"message":        "Face Recognition API is running",
		"students_count": h.engine.Count(),
	})
}

func (h *FaceHandler) addStudent(c *gin.Context) {
	var req struct {
		StudentID   string `json:"student_id" binding:"required"`
		StudentName string `json:"student_name" binding:"required"`
		ImageData   string `json:"image_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required fields: student_id, student_name, image_data")
		return
	}
	if _, err := imaging.DecodeBase64(req.ImageData); err != nil {
		fail(c, http.StatusBadRequest, "invalid image data")
		return
	}

	student, err := h.engine.Enroll(c.Request.Context(), req.StudentID, req.StudentName, req.ImageData)
	if err != nil {
		switch {
		case errors.Is(err, face.ErrNoFace):
			metrics.Enrollments.WithLabelValues("face", "no_face").Inc()
			fail(c, http.StatusBadRequest, "No face detected in the image")
		case errors.Is(err, face.ErrMultipleFaces):
			metrics.Enrollments.WithLabelValues("face", "multiple_faces").Inc()
			fail(c, http.StatusBadRequest, "Multiple faces detected. Please provide an image with only one face")
		default:
			metrics.Enrollments.WithLabelValues("face", "error").Inc()
			h.log.Error().Err(err).Str("student_id", req.StudentID).Msg("enroll failed")
			failInternal(c)
		}
		return
	}

	metrics.Enrollments.WithLabelValues("face", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      fmt.Sprintf("Student %s added successfully", student.Name),
		"student_id":   student.ID,
		"student_name": student.Name,
	})
}

// trainModel is kept for API compatibility. The matcher works purely by
// embedding distance, so there is no training step.
func (h *FaceHandler) trainModel(c *gin.Context) {
	count := h.engine.Count()
	if count == 0 {
		fail(c, http.StatusBadRequest, "No students to train")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Embedding matcher requires no training",
		"students_count": count,
	})
}

func (h *FaceHandler) recognize(c *gin.Context) {
	var req struct {
		ImageData string `json:"image_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required field: image_data")
		return
	}
	if _, err := imaging.DecodeBase64(req.ImageData); err != nil {
		fail(c, http.StatusBadRequest, "invalid image data")
		return
	}

	detections, err := h.engine.Recognize(c.Request.Context(), req.ImageData)
	if err != nil {
		h.log.Error().Err(err).Msg("recognize failed")
		failInternal(c)
		return
	}

	results := make([]gin.H, 0, len(detections))
	for _, d := range detections {
		metrics.FacesDetected.Inc()
		if d.Recognized {
			metrics.FacesRecognized.Inc()
		}
		var studentID any
		if d.Recognized {
			studentID = d.StudentID
		}
		results = append(results, gin.H{
			"student_id":   studentID,
			"student_name": d.Name,
			"confidence":   d.Confidence,
			"face_location": gin.H{
				"top":    d.Box.Top,
				"right":  d.Box.Right,
				"bottom": d.Box.Bottom,
				"left":   d.Box.Left,
			},
			"recognized": d.Recognized,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"faces_detected": len(results),
		"results":        results,
	})
}

func (h *FaceHandler) students(c *gin.Context) {
	list := h.engine.List()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"students": list,
		"count":    len(list),
	})
}

func (h *FaceHandler) removeStudent(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required field: student_id")
		return
	}

	if err := h.engine.Remove(req.StudentID); err != nil {
		if errors.Is(err, face.ErrNotFound) {
			fail(c, http.StatusNotFound, fmt.Sprintf("Student %s not found", req.StudentID))
			return
		}
		h.log.Error().Err(err).Str("student_id", req.StudentID).Msg("remove failed")
		failInternal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Student %s removed successfully", req.StudentID),
	})
}

func (h *FaceHandler) status(c *gin.Context) {
	list := h.engine.List()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"system_status":  "operational",
		"students_count": len(list),
		"students":       list,
	})
}
