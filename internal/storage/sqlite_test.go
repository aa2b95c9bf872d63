package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same directory and checks
// no migration is applied twice.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) != 4 {
		t.Fatalf("applied migrations = %v, want 4", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{
		"idx_documents_uploaded",
		"idx_availabilities_professor",
		"idx_bookings_student",
		"idx_bookings_professor",
		"idx_bookings_availability",
		"idx_jobs_status_run_after",
		"idx_document_chunks_document",
	}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

// --- Documents ---

func TestSaveAndGetDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	uploaded := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)
	doc := Document{
		ID:             "doc-1",
		Filename:       "notes.pdf",
		FilePath:       "/tmp/uploads/doc-1_notes.pdf",
		Title:          "Notes",
		Description:    "No description provided",
		ContentPreview: "Page 1:\nhello...\n\n",
		Type:           DocumentFile,
		UploadedAt:     uploaded,
	}
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got != doc {
		t.Errorf("GetDocument = %+v, want %+v", got, doc)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetDocument(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveDocument_RejectsUnknownType(t *testing.T) {
	s := openTestStore(t)

	err := s.SaveDocument(context.Background(), Document{ID: "d", Filename: "f", FilePath: "p", Title: "t", Type: "audio"})
	if err == nil {
		t.Error("expected constraint error for unknown document type")
	}
}

func TestListDocuments_UploadOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if docs, err := s.ListDocuments(ctx); err != nil || len(docs) != 0 {
		t.Fatalf("empty ListDocuments = %v, %v", docs, err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Insert out of order; a 9 and 10 ns pair would sort wrong without
	// fixed-width timestamps.
	for _, n := range []int{10, 9, 1} {
		d := Document{
			ID:         fmt.Sprintf("d%d", n),
			Filename:   "f",
			FilePath:   "p",
			Title:      "t",
			Type:       DocumentYouTube,
			UploadedAt: base.Add(time.Duration(n) * time.Nanosecond),
		}
		if err := s.SaveDocument(ctx, d); err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	want := []string{"d1", "d9", "d10"}
	if len(docs) != len(want) {
		t.Fatalf("got %d docs, want %d", len(docs), len(want))
	}
	for i, id := range want {
		if docs[i].ID != id {
			t.Errorf("docs[%d] = %q, want %q", i, docs[i].ID, id)
		}
	}
}

// --- Scheduling ---

func seedSlot(t *testing.T, s *Store, id, professor string) Availability {
	t.Helper()
	a := Availability{
		ID:            id,
		ProfessorName: professor,
		Date:          "2026-04-01",
		StartTime:     "10:00",
		EndTime:       "10:30",
		MeetingLink:   "https://meet.google.com/abcdefghij-123-456",
	}
	if err := s.InsertAvailability(context.Background(), a); err != nil {
		t.Fatalf("InsertAvailability: %v", err)
	}
	return a
}

func TestAvailabilityRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := seedSlot(t, s, "a1", "Turing")
	got, err := s.GetAvailability(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if got != a {
		t.Errorf("GetAvailability = %+v, want %+v", got, a)
	}

	if err := s.UpdateAvailabilityBooked(ctx, "a1", true); err != nil {
		t.Fatalf("UpdateAvailabilityBooked: %v", err)
	}
	got, _ = s.GetAvailability(ctx, "a1")
	if !got.IsBooked {
		t.Error("slot should be booked")
	}

	if err := s.UpdateAvailabilityBooked(ctx, "missing", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteAvailability(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAvailability: %v", err)
	}
	if _, err := s.GetAvailability(ctx, "a1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted err = %v, want ErrNotFound", err)
	}
}

func TestListAvailability_FilterByProfessor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedSlot(t, s, "a1", "Turing")
	seedSlot(t, s, "a2", "Hopper")
	seedSlot(t, s, "a3", "Turing")

	all, err := s.ListAvailability(ctx, "")
	if err != nil {
		t.Fatalf("ListAvailability: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all slots = %d, want 3", len(all))
	}

	turing, err := s.ListAvailability(ctx, "Turing")
	if err != nil {
		t.Fatalf("ListAvailability: %v", err)
	}
	if len(turing) != 2 || turing[0].ID != "a1" || turing[1].ID != "a3" {
		t.Errorf("Turing slots = %+v", turing)
	}

	none, err := s.ListAvailability(ctx, "Nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("unknown professor = %v, %v; want empty non-nil", none, err)
	}
}

func TestInsertBooking_CopiesSlotAndClaims(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	slot := seedSlot(t, s, "a1", "Turing")
	b, err := s.InsertBooking(ctx, Booking{
		ID:             "b1",
		AvailabilityID: "a1",
		StudentName:    "Ada",
		StudentEmail:   "ada@example.com",
		Topic:          "Computability",
	})
	if err != nil {
		t.Fatalf("InsertBooking: %v", err)
	}
	if b.ProfessorName != slot.ProfessorName || b.Date != slot.Date || b.StartTime != slot.StartTime ||
		b.EndTime != slot.EndTime || b.MeetingLink != slot.MeetingLink {
		t.Errorf("booking did not copy slot fields: %+v", b)
	}

	got, err := s.GetBooking(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if got != b {
		t.Errorf("GetBooking = %+v, want %+v", got, b)
	}

	a, _ := s.GetAvailability(ctx, "a1")
	if !a.IsBooked {
		t.Error("slot should be booked after InsertBooking")
	}
}

func TestInsertBooking_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertBooking(ctx, Booking{ID: "b0", AvailabilityID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing slot err = %v, want ErrNotFound", err)
	}

	seedSlot(t, s, "a1", "Turing")
	if _, err := s.InsertBooking(ctx, Booking{ID: "b1", AvailabilityID: "a1", StudentName: "A", StudentEmail: "a@x", Topic: "t"}); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := s.InsertBooking(ctx, Booking{ID: "b2", AvailabilityID: "a1", StudentName: "B", StudentEmail: "b@x", Topic: "t"}); !errors.Is(err, ErrSlotBooked) {
		t.Errorf("second booking err = %v, want ErrSlotBooked", err)
	}

	if _, err := s.GetBooking(ctx, "b2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rejected booking was stored: %v", err)
	}
}

func TestListBookings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedSlot(t, s, "a1", "Turing")
	seedSlot(t, s, "a2", "Hopper")
	for i, slot := range []string{"a1", "a2"} {
		_, err := s.InsertBooking(ctx, Booking{
			ID:             fmt.Sprintf("b%d", i),
			AvailabilityID: slot,
			StudentName:    "Ada",
			StudentEmail:   "ada@example.com",
			Topic:          "t",
		})
		if err != nil {
			t.Fatalf("InsertBooking %s: %v", slot, err)
		}
	}

	byStudent, err := s.ListBookingsByStudent(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("ListBookingsByStudent: %v", err)
	}
	if len(byStudent) != 2 {
		t.Errorf("student bookings = %d, want 2", len(byStudent))
	}

	byProf, err := s.ListBookingsByProfessor(ctx, "Hopper")
	if err != nil {
		t.Fatalf("ListBookingsByProfessor: %v", err)
	}
	if len(byProf) != 1 || byProf[0].AvailabilityID != "a2" {
		t.Errorf("Hopper bookings = %+v", byProf)
	}

	if none, _ := s.ListBookingsByStudent(ctx, "nobody@example.com"); none == nil || len(none) != 0 {
		t.Errorf("unknown student = %v, want empty non-nil", none)
	}
}

func TestDeleteBooking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedSlot(t, s, "a1", "Turing")
	if _, err := s.InsertBooking(ctx, Booking{ID: "b1", AvailabilityID: "a1", StudentName: "A", StudentEmail: "a@x", Topic: "t"}); err != nil {
		t.Fatalf("InsertBooking: %v", err)
	}
	if err := s.DeleteBooking(ctx, "b1"); err != nil {
		t.Fatalf("DeleteBooking: %v", err)
	}
	if err := s.DeleteBooking(ctx, "b1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestBookingSurvivesSlotDeletion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedSlot(t, s, "a1", "Turing")
	if _, err := s.InsertBooking(ctx, Booking{ID: "b1", AvailabilityID: "a1", StudentName: "A", StudentEmail: "a@x", Topic: "t"}); err != nil {
		t.Fatalf("InsertBooking: %v", err)
	}
	if err := s.DeleteAvailability(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAvailability: %v", err)
	}
	if _, err := s.GetBooking(ctx, "b1"); err != nil {
		t.Errorf("booking should survive slot deletion: %v", err)
	}
}

// --- Jobs ---

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := Job{ID: "j-claim-1", Type: "document_index", PayloadJSON: `{"document_id":"d1"}`}
	if err := s.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"document_index"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" {
		t.Errorf("ID = %q, want %q", got.ID, "j-claim-1")
	}
	if got.PayloadJSON != `{"document_id":"d1"}` {
		t.Errorf("PayloadJSON = %q", got.PayloadJSON)
	}
	if got.Status != JobRunning {
		t.Errorf("Status = %q, want %q", got.Status, JobRunning)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob(context.Background(), []string{"document_index"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := Job{ID: "j-future", Type: "x", PayloadJSON: `{}`, RunAfter: time.Now().Add(time.Hour)}
	if err := s.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestClaimNextJob_TypeFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-a", Type: "a", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob a: %v", err)
	}
	if err := s.EnqueueJob(ctx, Job{ID: "j-b", Type: "b", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob b: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"b"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil || got.Type != "b" {
		t.Errorf("claimed %+v, want type b", got)
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-first", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob first: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob first: %v", err)
	}
	if err := s.EnqueueJob(ctx, Job{ID: "j-second", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob second: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob second: %v", err)
	}
	if got == nil || got.ID != "j-second" {
		t.Errorf("claimed %+v, want j-second", got)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-complete", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob(ctx, "j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	j, err := s.GetJob(ctx, "j-complete")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != JobCompleted {
		t.Errorf("status = %q, want %q", j.Status, JobCompleted)
	}
	if err := s.CompleteJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("complete missing err = %v, want ErrNotFound", err)
	}
}

func TestFailJob_RetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-fail", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	before := time.Now().UTC()
	if err := s.FailJob(ctx, "j-fail", "something broke"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.GetJob(ctx, "j-fail")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", j.Attempts)
	}
	if j.Status != JobPending {
		t.Errorf("status = %q, want %q", j.Status, JobPending)
	}
	if j.LastError != "something broke" {
		t.Errorf("last_error = %q", j.LastError)
	}
	if !j.RunAfter.After(before) {
		t.Errorf("run_after %v should be after %v", j.RunAfter, before)
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j-fail-max", Type: "x", PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.FailJob(ctx, "j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	counts, err := s.CountJobs(ctx)
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if counts[JobFailed] != 1 {
		t.Errorf("counts = %v, want one failed job", counts)
	}
	if err := s.FailJob(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("fail missing err = %v, want ErrNotFound", err)
	}
}
