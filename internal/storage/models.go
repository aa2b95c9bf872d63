package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotBooked is returned when booking an availability that already
	// carries a booking.
	ErrSlotBooked = errors.New("this time slot is already booked")
)

const (
	DocumentFile    = "file"
	DocumentYouTube = "youtube"
)

type Document struct {
	ID             string    `json:"document_id"`
	Filename       string    `json:"filename"`
	FilePath       string    `json:"file_path"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ContentPreview string    `json:"content_preview"`
	Type           string    `json:"type"`
	UploadedAt     time.Time `json:"upload_time"`
}

type Availability struct {
	ID            string `json:"id"`
	ProfessorName string `json:"professor_name"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	MeetingLink   string `json:"meeting_link"`
	IsBooked      bool   `json:"is_booked"`
}

// Booking copies the slot's professor, time and link at booking time.
type Booking struct {
	ID             string `json:"id"`
	AvailabilityID string `json:"availability_id"`
	StudentName    string `json:"student_name"`
	StudentEmail   string `json:"student_email"`
	Topic          string `json:"topic"`
	Questions      string `json:"questions,omitempty"`
	ProfessorName  string `json:"professor_name"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	MeetingLink    string `json:"meeting_link"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// timeLayout has fixed-width fractional seconds so stored timestamps sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
