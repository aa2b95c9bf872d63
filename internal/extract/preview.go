package extract

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// AllowedExtensions lists the upload types accepted, in display order.
var AllowedExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".ppt", ".pptx", ".xls", ".xlsx"}

func Allowed(ext string) bool {
	return slices.Contains(AllowedExtensions, strings.ToLower(ext))
}

const (
	previewPages     = 3
	pagePreviewChars = 300
	textPreviewChars = 500
	titleChars       = 100
)

// FilePreview describes an uploaded file. Title is a suggestion taken from
// the first line of a PDF and is empty for other types.
type FilePreview struct {
	Text  string
	Title string
}

// Preview builds the content preview stored with an uploaded file.
func Preview(path, ext string) FilePreview {
	switch strings.ToLower(ext) {
	case ".pdf":
		return pdfPreview(path)
	case ".docx", ".doc":
		return FilePreview{Text: "Word document uploaded (preview not available)"}
	case ".txt":
		return textPreview(path)
	default:
		return FilePreview{Text: strings.ToUpper(strings.TrimPrefix(ext, ".")) + " file uploaded"}
	}
}

func pdfPreview(path string) FilePreview {
	pages, err := PagesFromFile(path)
	if err != nil {
		return FilePreview{Text: fmt.Sprintf("Could not extract PDF preview: %v", err)}
	}
	return PDFPagesPreview(pages)
}

// PDFPagesPreview renders the first pages as "Page N:\n<text>...\n\n" and
// suggests the first line of page one as a title.
func PDFPagesPreview(pages []string) FilePreview {
	var out FilePreview
	var sb strings.Builder
	for i, page := range pages {
		if i == previewPages {
			break
		}
		if i == 0 && page != "" {
			first, _, _ := strings.Cut(page, "\n")
			out.Title = truncateRunes(first, titleChars)
			if out.Title == "" {
				out.Title = "Untitled PDF"
			}
		}
		fmt.Fprintf(&sb, "Page %d:\n%s...\n\n", i+1, truncateRunes(page, pagePreviewChars))
	}
	out.Text = sb.String()
	return out
}

func textPreview(path string) FilePreview {
	f, err := os.Open(path)
	if err != nil {
		return FilePreview{Text: fmt.Sprintf("Could not read text preview: %v", err)}
	}
	defer f.Close()

	// 4 bytes per rune covers the preview length in any encoding.
	buf, err := io.ReadAll(io.LimitReader(f, textPreviewChars*4))
	if err != nil {
		return FilePreview{Text: fmt.Sprintf("Could not read text preview: %v", err)}
	}
	text := strings.ToValidUTF8(string(buf), "")
	return FilePreview{Text: truncateRunes(text, textPreviewChars) + "..."}
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
