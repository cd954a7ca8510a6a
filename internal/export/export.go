// Package export renders the filtered comparison as XLSX and PDF documents.
package export

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"comparativo/internal/core"
)

// Formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ContentTypes of the supported formats.
var ContentTypes = map[string]string{
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
}

// ErrNothingToExport is returned for views without an executed comparison.
var ErrNothingToExport = errors.New("nothing to export: run a comparison first")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename returns "comparativo_<base>_vs_<actual>.<ext>" with unsafe
// characters replaced.
func Filename(run *core.Run, ext string) string {
	if run == nil {
		return "comparativo." + ext
	}
	clean := func(s string) string {
		return strings.Trim(unsafeChars.ReplaceAllString(s, "-"), "-")
	}
	return fmt.Sprintf("comparativo_%s_vs_%s.%s", clean(run.Base), clean(run.Actual), ext)
}
