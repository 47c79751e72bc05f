package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"attendtrack/internal/auth"
	"attendtrack/internal/config"
	"attendtrack/internal/imaging"
	"attendtrack/internal/logger"
	"attendtrack/internal/metrics"
	"attendtrack/internal/qr"
	"attendtrack/internal/qrdecode"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// QRHandler serves the QR attendance API.
type QRHandler struct {
	engine *qr.Engine
	cfg    config.App
	log    zerolog.Logger
}

// NewQRHandler creates the handler.
func NewQRHandler(engine *qr.Engine, cfg config.App) *QRHandler {
	return &QRHandler{
		engine: engine,
		cfg:    cfg,
		log:    logger.Get().With().Str("component", "qr-api").Logger(),
	}
}

// Register mounts the routes under /api/qr-scanner.
func (h *QRHandler) Register(r *gin.Engine) {
	g := r.Group("/api/qr-scanner")
	g.GET("/health", h.health)
	g.POST("/scan", h.scan)
	g.GET("/students", h.students)
	g.GET("/sessions", h.sessions)
	g.GET("/attendance-report", h.attendanceReport)
	g.GET("/student-qr/:student_id", h.studentQR)
	g.GET("/status", h.status)

	mutating := g.Group("")
	if h.cfg.AuthEnabled {
		g.POST("/auth/token", tokenHandler(h.cfg, "qr-admin"))
		mutating.Use(auth.Bearer(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	}
	mutating.POST("/add-student", h.addStudent)
	mutating.POST("/create-session", h.createSession)
	mutating.POST("/mark-attendance", h.markAttendance)
	mutating.DELETE("/remove-student", h.removeStudent)
}

func (h *QRHandler) health(c *gin.Context) {
	students, _, records := h.engine.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"message":            "QR Scanner API is running",
		"students_count":     students,
		"attendance_records": records,
	})
}

func (h *QRHandler) addStudent(c *gin.Context) {
	var req struct {
		StudentID   string `json:"student_id" binding:"required"`
		StudentName string `json:"student_name" binding:"required"`
		Email       string `json:"email"`
		Department  string `json:"department"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required fields: student_id, student_name")
		return
	}

	student, err := h.engine.AddStudent(req.StudentID, req.StudentName, req.Email, req.Department)
	if err != nil {
		metrics.Enrollments.WithLabelValues("qr", "error").Inc()
		h.log.Error().Err(err).Str("student_id", req.StudentID).Msg("add student failed")
		failInternal(c)
		return
	}

	metrics.Enrollments.WithLabelValues("qr", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      fmt.Sprintf("Student %s added successfully", student.StudentName),
		"student_data": student,
	})
}

func (h *QRHandler) removeStudent(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required field: student_id")
		return
	}

	if err := h.engine.RemoveStudent(req.StudentID); err != nil {
		if errors.Is(err, qr.ErrStudentNotFound) {
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

func (h *QRHandler) createSession(c *gin.Context) {
	var req struct {
		SessionName   string  `json:"session_name" binding:"required"`
		ClassID       string  `json:"class_id" binding:"required"`
		DurationHours float64 `json:"duration_hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required fields: session_name, class_id")
		return
	}

	duration := time.Duration(req.DurationHours * float64(time.Hour))
	session, payload, err := h.engine.CreateSession(req.SessionName, req.ClassID, duration)
	if err != nil {
		h.log.Error().Err(err).Msg("create session failed")
		failInternal(c)
		return
	}

	resp := gin.H{
		"success": true,
		"session": session,
		"qr_data": payload,
	}
	if img, err := qr.RenderPNG(payload); err == nil {
		resp["qr_image"] = img
	} else {
		h.log.Warn().Err(err).Msg("session QR render failed")
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QRHandler) scan(c *gin.Context) {
	var req struct {
		ImageData string `json:"image_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required field: image_data")
		return
	}

	img, err := imaging.DecodeImage(req.ImageData)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid image data")
		return
	}

	texts, err := qrdecode.Decode(img)
	if err != nil {
		h.log.Error().Err(err).Msg("qr decode failed")
		failInternal(c)
		return
	}

	if len(texts) == 0 {
		metrics.QRScans.WithLabelValues("none_detected").Inc()
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "No QR codes detected in the image",
		})
		return
	}

	results := h.engine.Scan(texts)
	for _, r := range results {
		if r.Success {
			metrics.QRScans.WithLabelValues("resolved").Inc()
		} else {
			metrics.QRScans.WithLabelValues("unresolved").Inc()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"qr_codes_found": len(results),
		"results":        results,
	})
}

func (h *QRHandler) markAttendance(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		SessionID string `json:"session_id"`
		Method    string `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "missing required field: student_id")
		return
	}

	method := req.Method
	if method == "" {
		method = "qr"
	}

	record, err := h.engine.MarkAttendance(req.StudentID, req.SessionID, method)
	if err != nil {
		switch {
		case errors.Is(err, qr.ErrStudentNotFound):
			metrics.AttendanceMarked.WithLabelValues(method, "not_found").Inc()
			fail(c, http.StatusNotFound, fmt.Sprintf("Student %s not found", req.StudentID))
		case errors.Is(err, qr.ErrAlreadyMarked):
			metrics.AttendanceMarked.WithLabelValues(method, "already_marked").Inc()
			fail(c, http.StatusBadRequest, "Student is already marked present for today")
		default:
			metrics.AttendanceMarked.WithLabelValues(method, "error").Inc()
			h.log.Error().Err(err).Str("student_id", req.StudentID).Msg("mark attendance failed")
			failInternal(c)
		}
		return
	}

	metrics.AttendanceMarked.WithLabelValues(record.Method, "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           fmt.Sprintf("Attendance marked successfully for %s", record.StudentName),
		"attendance_record": record,
	})
}

func (h *QRHandler) attendanceReport(c *gin.Context) {
	records := h.engine.Report(c.Query("date"), c.Query("student_id"), c.Query("session_id"))
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"records":       records,
		"total_records": len(records),
	})
}

func (h *QRHandler) students(c *gin.Context) {
	list := h.engine.ListStudents()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"students": list,
		"count":    len(list),
	})
}

func (h *QRHandler) sessions(c *gin.Context) {
	list := h.engine.ListSessions()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": list,
		"count":    len(list),
	})
}

func (h *QRHandler) studentQR(c *gin.Context) {
	id := c.Param("student_id")
	student, err := h.engine.GetStudent(id)
	if err != nil {
		fail(c, http.StatusNotFound, fmt.Sprintf("Student %s not found", id))
		return
	}

	resp := gin.H{
		"success":      true,
		"student_id":   student.StudentID,
		"student_name": student.StudentName,
		"qr_data":      student.QRCode,
	}
	if img, err := qr.RenderPNG(student.QRCode); err == nil {
		resp["qr_image"] = img
	} else {
		h.log.Warn().Err(err).Str("student_id", id).Msg("student QR render failed")
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QRHandler) status(c *gin.Context) {
	students := h.engine.ListStudents()
	sessions := h.engine.ListSessions()
	_, _, records := h.engine.Counts()
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"system_status":      "operational",
		"students_count":     len(students),
		"sessions_count":     len(sessions),
		"attendance_records": records,
		"students":           students,
		"sessions":           sessions,
	})
}
