package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/lectern/internal/scheduling"
	"github.com/kalambet/lectern/internal/storage"
)

func handleAddAvailability(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in scheduling.SlotInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, err)
			return
		}

		a, err := deps.Scheduling.AddAvailability(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":           a.ID,
			"meeting_link": a.MeetingLink,
			"status":       "Availability added successfully",
		})
	}
}

func handleListAvailability(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := deps.Scheduling.ListAvailability(r.Context(), r.URL.Query().Get("professor_name"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"availabilities": slots})
	}
}

func handleDeleteAvailability(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Scheduling.RemoveAvailability(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "Availability not found")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  scheduling.StatusSuccess,
			"message": "Availability deleted successfully",
		})
	}
}

func handleBookMeeting(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in scheduling.BookingInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, err)
			return
		}

		b, err := deps.Scheduling.Book(r.Context(), in)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "Availability not found")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":      b.ID,
			"status":  scheduling.StatusSuccess,
			"message": "Meeting booked successfully",
		})
	}
}

func handleStudentBookings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("student_email")
		if email == "" {
			writeError(w, invalid("student_email is required"))
			return
		}
		bookings, err := deps.Scheduling.StudentBookings(r.Context(), email)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
	}
}

func handleProfessorBookings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professor := r.URL.Query().Get("professor_name")
		if professor == "" {
			writeError(w, invalid("professor_name is required"))
			return
		}
		bookings, err := deps.Scheduling.ProfessorBookings(r.Context(), professor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
	}
}

func handleCancelBooking(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Scheduling.Cancel(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "Booking not found")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  res.Status,
			"message": res.Message,
		})
	}
}
