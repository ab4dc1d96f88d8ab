/*
convert.go - Input sniffing and page-by-page conversion

PURPOSE:
  Turns an uploaded tracker report into an ordered sequence of page images
  for the extraction service. Accepted inputs are paginated documents (PDF)
  and still images (PNG/JPEG); anything else fails with UnsupportedFormat
  before any work starts.

FAILURE MODE:
  Conversion failing mid-document aborts the whole batch: the extraction
  request is never issued and no partial day set can be committed.

TOOLING:
  PDF rasterization is delegated to pdftoppm (poppler) behind the
  PageConverter interface; still images pass through as a single page.
*/
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/frotaops/settlement-engine/payroll"
)

// =============================================================================
// FORMAT SNIFFING
// =============================================================================

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// SniffFormat detects the input type from content, not from the filename.
func SniffFormat(data []byte) (Format, error) {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatPDF, nil
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return FormatPNG, nil
	case "image/jpeg":
		return FormatJPEG, nil
	}
	return "", payroll.ErrUnsupportedFormat
}

// =============================================================================
// PAGE CONVERSION
// =============================================================================

// PageImage is one portable page payload sent to the extraction service.
// Image bytes marshal as base64 in the batched request.
type PageImage struct {
	Page  int    `json:"page"`
	Image []byte `json:"image"`
}

// PageConverter turns raw input into ordered page images, reporting
// (currentPage, totalPages) as each page completes.
type PageConverter interface {
	Convert(ctx context.Context, data []byte, progress func(current, total int)) ([]PageImage, error)
}

// ConverterFor picks the converter for a sniffed format.
func ConverterFor(format Format) (PageConverter, error) {
	switch format {
	case FormatPNG, FormatJPEG:
		return imagePassthrough{}, nil
	case FormatPDF:
		return &PDFConverter{Tool: "pdftoppm"}, nil
	}
	return nil, payroll.ErrUnsupportedFormat
}

// imagePassthrough treats a still image as a one-page document.
type imagePassthrough struct{}

func (imagePassthrough) Convert(ctx context.Context, data []byte, progress func(current, total int)) ([]PageImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(1, 1)
	}
	return []PageImage{{Page: 1, Image: data}}, nil
}

// PDFConverter rasterizes each PDF page to PNG via an external tool
// (pdftoppm by default).
type PDFConverter struct {
	Tool string
}

func (c *PDFConverter) Convert(ctx context.Context, data []byte, progress func(current, total int)) ([]PageImage, error) {
	dir, err := os.MkdirTemp("", "tracker-report-*")
	if err != nil {
		return nil, &payroll.ExtractionError{Stage: "conversion", Reason: err.Error()}
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, &payroll.ExtractionError{Stage: "conversion", Reason: err.Error()}
	}

	cmd := exec.CommandContext(ctx, c.Tool, "-png", "-r", "200", src, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, &payroll.ExtractionError{
			Stage:  "conversion",
			Reason: fmt.Sprintf("%s failed: %v: %s", c.Tool, err, bytes.TrimSpace(out)),
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil || len(matches) == 0 {
		return nil, &payroll.ExtractionError{Stage: "conversion", Reason: "no pages produced"}
	}
	sort.Strings(matches)

	pages := make([]PageImage, 0, len(matches))
	for i, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := os.ReadFile(path)
		if err != nil {
			// Mid-document failure aborts the whole batch.
			return nil, &payroll.ExtractionError{
				Stage:  "conversion",
				Reason: fmt.Sprintf("page %d unreadable: %v", i+1, err),
			}
		}
		pages = append(pages, PageImage{Page: i + 1, Image: img})
		if progress != nil {
			progress(i+1, len(matches))
		}
	}
	return pages, nil
}
