package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/lectern/internal/ingest"
	"github.com/kalambet/lectern/internal/storage"
)

type uploadFile struct {
	name    string
	content []byte
}

func uploadRequest(t *testing.T, fields map[string]string, file *uploadFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUpload_TextFile(t *testing.T) {
	deps, store := newTestDeps(t)
	h := NewHandler(deps)

	rr := serve(h, uploadRequest(t, nil, &uploadFile{name: "week1-notes.txt", content: []byte("Graphs are sets of vertices.")}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp uploadResponse
	decodeBody(t, rr, &resp)
	if resp.Title != "week1-notes" {
		t.Errorf("title = %q, want filename stem", resp.Title)
	}
	if resp.Description != "No description provided" {
		t.Errorf("description = %q", resp.Description)
	}
	if resp.Message != "File uploaded successfully" || resp.Filename != "week1-notes.txt" {
		t.Errorf("resp = %+v", resp)
	}
	if want := filepath.Join(deps.UploadDir, resp.DocumentID+".txt"); resp.FilePath != want {
		t.Errorf("file_path = %q, want %q", resp.FilePath, want)
	}

	saved, err := os.ReadFile(resp.FilePath)
	if err != nil || string(saved) != "Graphs are sets of vertices." {
		t.Fatalf("saved file = %q, %v", saved, err)
	}

	doc, err := store.GetDocument(t.Context(), resp.DocumentID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Type != storage.DocumentFile || doc.ContentPreview != "Graphs are sets of vertices...." {
		t.Errorf("doc = %+v", doc)
	}
}

func TestUpload_TitleAndDescriptionFromForm(t *testing.T) {
	deps, _ := newTestDeps(t)
	fields := map[string]string{"title": "Syllabus", "description": "Fall term"}
	rr := serve(NewHandler(deps), uploadRequest(t, fields, &uploadFile{name: "s.docx", content: []byte("PK")}))

	var resp uploadResponse
	decodeBody(t, rr, &resp)
	if resp.Title != "Syllabus" || resp.Description != "Fall term" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUpload_PDFQueuesIndexJob(t *testing.T) {
	deps, store := newTestDeps(t)
	q := &fakeQueue{}
	deps.Jobs = q

	rr := serve(NewHandler(deps), uploadRequest(t, nil, &uploadFile{name: "Paper.PDF", content: []byte("not really a pdf")}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp uploadResponse
	decodeBody(t, rr, &resp)

	if !strings.HasSuffix(resp.FilePath, ".pdf") {
		t.Errorf("file_path = %q, want lowercased extension", resp.FilePath)
	}
	if len(q.jobs) != 1 || q.jobs[0].Type != ingest.JobDocumentIndex {
		t.Fatalf("jobs = %+v", q.jobs)
	}
	var payload map[string]string
	json.Unmarshal([]byte(q.jobs[0].PayloadJSON), &payload)
	if payload["document_id"] != resp.DocumentID {
		t.Errorf("payload = %v", payload)
	}

	doc, _ := store.GetDocument(t.Context(), resp.DocumentID)
	if !strings.HasPrefix(doc.ContentPreview, "Could not extract PDF preview") {
		t.Errorf("preview = %q", doc.ContentPreview)
	}
}

func TestUpload_QueueFailureStillSaves(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Jobs = &fakeQueue{err: errors.New("queue full")}

	rr := serve(NewHandler(deps), uploadRequest(t, nil, &uploadFile{name: "a.pdf", content: []byte("x")}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestUpload_NonPDFNotQueued(t *testing.T) {
	deps, _ := newTestDeps(t)
	q := &fakeQueue{}
	deps.Jobs = q

	serve(NewHandler(deps), uploadRequest(t, nil, &uploadFile{name: "slides.pptx", content: []byte("x")}))
	if len(q.jobs) != 0 {
		t.Errorf("jobs = %+v, want none", q.jobs)
	}
}

func TestUpload_UnsupportedType(t *testing.T) {
	deps, _ := newTestDeps(t)
	rr := serve(NewHandler(deps), uploadRequest(t, nil, &uploadFile{name: "run.exe", content: []byte("MZ")}))
	expectError(t, rr, http.StatusBadRequest, "invalid_request_error",
		"Unsupported file type. Allowed types: .pdf, .docx, .doc, .txt, .ppt, .pptx, .xls, .xlsx")

	entries, _ := os.ReadDir(deps.UploadDir)
	if len(entries) != 0 {
		t.Errorf("upload dir has %d entries, want 0", len(entries))
	}
}

func TestUpload_YouTube(t *testing.T) {
	deps, store := newTestDeps(t)
	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	rr := serve(NewHandler(deps), uploadRequest(t, map[string]string{"youtube_url": url}, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp uploadResponse
	decodeBody(t, rr, &resp)
	want := uploadResponse{
		DocumentID:  resp.DocumentID,
		Filename:    "youtube_video",
		FilePath:    url,
		Title:       "YouTube Resource: dQw4w9WgXcQ",
		Description: "YouTube video resource",
		Message:     "YouTube URL processed successfully",
	}
	if resp != want {
		t.Errorf("resp = %+v\nwant %+v", resp, want)
	}

	doc, err := store.GetDocument(t.Context(), resp.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Type != storage.DocumentYouTube || doc.ContentPreview != "YouTube video: "+url {
		t.Errorf("doc = %+v", doc)
	}
}

func TestUpload_NothingProvided(t *testing.T) {
	deps, _ := newTestDeps(t)
	rr := serve(NewHandler(deps), uploadRequest(t, map[string]string{"title": "x"}, nil))
	expectError(t, rr, http.StatusBadRequest, "invalid_request_error", "No file or YouTube URL provided")
}

func TestDocuments_ListAndGet(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rr := do(t, h, http.MethodGet, "/api/documents", "")
	if got := strings.TrimSpace(rr.Body.String()); got != `{"documents":[]}` {
		t.Errorf("empty list = %s", got)
	}

	rr = serve(h, uploadRequest(t, map[string]string{"youtube_url": "https://youtu.be/abc"}, nil))
	var up uploadResponse
	decodeBody(t, rr, &up)

	rr = do(t, h, http.MethodGet, "/api/documents", "")
	var list struct {
		Documents []storage.Document `json:"documents"`
	}
	decodeBody(t, rr, &list)
	if len(list.Documents) != 1 || list.Documents[0].ID != up.DocumentID {
		t.Fatalf("documents = %+v", list.Documents)
	}

	rr = do(t, h, http.MethodGet, "/api/documents/"+up.DocumentID, "")
	var doc storage.Document
	decodeBody(t, rr, &doc)
	if doc.Title != "YouTube Resource: https://youtu.be/abc" {
		t.Errorf("title = %q", doc.Title)
	}

	expectError(t, do(t, h, http.MethodGet, "/api/documents/missing", ""), http.StatusNotFound, "not_found_error", "Document not found")
}
