// Package scheduling manages professor office-hour slots and the student
// bookings made against them.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/lectern/internal/storage"
)

var (
	ErrNotFound   = storage.ErrNotFound
	ErrSlotBooked = storage.ErrSlotBooked
)

// Repository is the persistence the service needs. *storage.Store
// satisfies it; InsertBooking must claim the slot atomically.
type Repository interface {
	InsertAvailability(ctx context.Context, a storage.Availability) error
	GetAvailability(ctx context.Context, id string) (storage.Availability, error)
	ListAvailability(ctx context.Context, professor string) ([]storage.Availability, error)
	UpdateAvailabilityBooked(ctx context.Context, id string, booked bool) error
	DeleteAvailability(ctx context.Context, id string) error

	InsertBooking(ctx context.Context, b storage.Booking) (storage.Booking, error)
	GetBooking(ctx context.Context, id string) (storage.Booking, error)
	ListBookingsByStudent(ctx context.Context, email string) ([]storage.Booking, error)
	ListBookingsByProfessor(ctx context.Context, professor string) ([]storage.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
)

type SlotInput struct {
	ProfessorName string `json:"professor_name" validate:"required"`
	Date          string `json:"date" validate:"required"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
	MeetingLink   string `json:"meeting_link"`
}

type BookingInput struct {
	AvailabilityID string `json:"availability_id" validate:"required"`
	StudentName    string `json:"student_name" validate:"required"`
	StudentEmail   string `json:"student_email" validate:"required,email"`
	Topic          string `json:"topic" validate:"required"`
	Questions      string `json:"questions"`
}

// CancelResult reports whether the freed slot could be marked open again.
type CancelResult struct {
	Status  string
	Message string
}

type Service struct {
	repo    Repository
	newID   func() string
	newLink func() string
	logger  *zap.Logger
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:    repo,
		newID:   uuid.NewString,
		newLink: MeetLink,
		logger:  zap.L().Named("scheduling"),
	}
}

// AddAvailability stores a new open slot, generating a meeting link when
// the input carries none.
func (s *Service) AddAvailability(ctx context.Context, in SlotInput) (storage.Availability, error) {
	a := storage.Availability{
		ID:            s.newID(),
		ProfessorName: in.ProfessorName,
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		MeetingLink:   strings.TrimSpace(in.MeetingLink),
	}
	if a.MeetingLink == "" {
		a.MeetingLink = s.newLink()
	}
	if err := s.repo.InsertAvailability(ctx, a); err != nil {
		return storage.Availability{}, fmt.Errorf("adding availability: %w", err)
	}
	s.logger.Info("availability added",
		zap.String("id", a.ID),
		zap.String("professor", a.ProfessorName),
		zap.String("date", a.Date),
	)
	return a, nil
}

func (s *Service) ListAvailability(ctx context.Context, professor string) ([]storage.Availability, error) {
	return s.repo.ListAvailability(ctx, professor)
}

// RemoveAvailability deletes a slot. Bookings made against it are kept.
func (s *Service) RemoveAvailability(ctx context.Context, id string) error {
	return s.repo.DeleteAvailability(ctx, id)
}

// Book claims the slot for a student. It fails with ErrNotFound for an
// unknown slot and ErrSlotBooked when someone got there first.
func (s *Service) Book(ctx context.Context, in BookingInput) (storage.Booking, error) {
	b, err := s.repo.InsertBooking(ctx, storage.Booking{
		ID:             s.newID(),
		AvailabilityID: in.AvailabilityID,
		StudentName:    in.StudentName,
		StudentEmail:   in.StudentEmail,
		Topic:          in.Topic,
		Questions:      in.Questions,
	})
	if err != nil {
		return storage.Booking{}, err
	}
	s.logger.Info("meeting booked",
		zap.String("booking_id", b.ID),
		zap.String("availability_id", b.AvailabilityID),
		zap.String("professor", b.ProfessorName),
	)
	return b, nil
}

// Cancel removes a booking and reopens its slot. When the slot no longer
// exists the booking is still removed and the result is partial.
func (s *Service) Cancel(ctx context.Context, bookingID string) (CancelResult, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return CancelResult{}, err
	}
	if err := s.repo.DeleteBooking(ctx, bookingID); err != nil {
		return CancelResult{}, fmt.Errorf("deleting booking: %w", err)
	}

	if err := s.repo.UpdateAvailabilityBooked(ctx, b.AvailabilityID, false); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("reopening slot failed", zap.String("availability_id", b.AvailabilityID), zap.Error(err))
		}
		return CancelResult{
			Status:  StatusPartialSuccess,
			Message: "Booking was cancelled, but the availability status could not be updated",
		}, nil
	}
	return CancelResult{Status: StatusSuccess, Message: "Booking cancelled successfully"}, nil
}

func (s *Service) StudentBookings(ctx context.Context, email string) ([]storage.Booking, error) {
	return s.repo.ListBookingsByStudent(ctx, email)
}

func (s *Service) ProfessorBookings(ctx context.Context, professor string) ([]storage.Booking, error) {
	return s.repo.ListBookingsByProfessor(ctx, professor)
}

const linkAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MeetLink returns a random link of the form
// https://meet.google.com/xxxxxxxxxx-NNN-NNN.
func MeetLink() string {
	var sb strings.Builder
	sb.WriteString("https://meet.google.com/")
	for range 10 {
		sb.WriteByte(linkAlphabet[rand.IntN(len(linkAlphabet))])
	}
	fmt.Fprintf(&sb, "-%d-%d", 100+rand.IntN(900), 100+rand.IntN(900))
	return sb.String()
}
