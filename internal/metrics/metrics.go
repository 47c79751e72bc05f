package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enrollments counts enrollment attempts by service and outcome.
	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendtrack_enrollments_total",
		Help: "Student enrollment attempts.",
	}, []string{"service", "outcome"})

	// FacesDetected counts faces found in recognize requests.
	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendtrack_faces_detected_total",
		Help: "Faces detected across recognize requests.",
	})

	// FacesRecognized counts faces resolved to an enrolled student.
	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendtrack_faces_recognized_total",
		Help: "Detected faces matched to an enrolled student.",
	})

	// QRScans counts decoded QR codes by resolution outcome.
	QRScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendtrack_qr_scans_total",
		Help: "Decoded QR codes by resolution outcome.",
	}, []string{"outcome"})

	// AttendanceMarked counts attendance-mark attempts by outcome.
	AttendanceMarked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendtrack_attendance_marked_total",
		Help: "Attendance marking attempts.",
	}, []string{"method", "outcome"})
)
