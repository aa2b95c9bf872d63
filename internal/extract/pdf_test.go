package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal PDF with one text line per page.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 pages, 3 font, then a page and content object per page.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestPagesFromReader(t *testing.T) {
	data := buildPDF("Graph Theory Basics", "Second page")
	pages, err := PagesFromReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Graph Theory Basics")
	assert.Contains(t, pages[1], "Second page")
}

func TestPagesFromReader_Garbage(t *testing.T) {
	data := []byte("this is not a pdf")
	_, err := PagesFromReader(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestTextFromURL(t *testing.T) {
	data := buildPDF("Hello class")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(data)
	}))
	defer srv.Close()

	e := NewPDFExtractorWithClient(srv.Client())

	text, err := e.TextFromURL(context.Background(), srv.URL+"/notes.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Hello class")
	assert.True(t, strings.HasSuffix(text, "\n\n"))

	_, err = e.TextFromURL(context.Background(), srv.URL+"/missing.pdf")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestTextFromURL_EmptyText(t *testing.T) {
	data := buildPDF("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	_, err := NewPDFExtractorWithClient(srv.Client()).TextFromURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "a\n\nb\n\n", JoinPages([]string{"a", "b"}))
	assert.Equal(t, "", JoinPages(nil))
}

func TestPDFPagesPreview(t *testing.T) {
	long := strings.Repeat("x", 400)
	p := PDFPagesPreview([]string{"Title Line\nbody", long, "three", "four"})

	assert.Equal(t, "Title Line", p.Title)
	assert.True(t, strings.HasPrefix(p.Text, "Page 1:\nTitle Line\nbody...\n\n"))
	assert.Contains(t, p.Text, "Page 2:\n"+strings.Repeat("x", 300)+"...\n\n")
	assert.Contains(t, p.Text, "Page 3:\nthree...")
	assert.NotContains(t, p.Text, "Page 4")

	assert.Equal(t, "Untitled PDF", PDFPagesPreview([]string{"\nsecond line"}).Title)
	assert.Empty(t, PDFPagesPreview([]string{""}).Title)
}

func TestPreview(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte(strings.Repeat("é", 600)), 0o644))
	got := Preview(txt, ".txt")
	assert.Equal(t, strings.Repeat("é", 500)+"...", got.Text)

	pdfPath := filepath.Join(dir, "deck.pdf")
	require.NoError(t, os.WriteFile(pdfPath, buildPDF("Lecture One"), 0o644))
	got = Preview(pdfPath, ".PDF")
	assert.Contains(t, got.Title, "Lecture One")
	assert.True(t, strings.HasPrefix(got.Text, "Page 1:\n"))

	assert.Equal(t, "Word document uploaded (preview not available)", Preview("x", ".docx").Text)
	assert.Equal(t, "PPTX file uploaded", Preview("x", ".pptx").Text)

	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	assert.True(t, strings.HasPrefix(Preview(bad, ".pdf").Text, "Could not extract PDF preview"))
}

func TestAllowed(t *testing.T) {
	for _, ext := range []string{".pdf", ".DOCX", ".txt", ".xlsx"} {
		assert.True(t, Allowed(ext), ext)
	}
	for _, ext := range []string{".exe", "", "pdf", ".md"} {
		assert.False(t, Allowed(ext), ext)
	}
}
