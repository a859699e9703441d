// Package extract implements C3: per-file-type text extraction producing
// plain text plus extraction metadata (spec.md §4.2).
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Result is the extracted text plus the metadata spec.md §4.2 calls for.
type Result struct {
	Text             string
	ExtractionMethod string
	Metadata         map[string]string
}

var (
	textExts = map[string]bool{
		".txt": true, ".md": true, ".markdown": true,
	}
	codeExts = map[string]bool{
		".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
		".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true,
	}
	structuredExts = map[string]bool{
		".json": true, ".yaml": true, ".yml": true, ".csv": true, ".tsv": true,
	}
)

// Extract dispatches by extension per spec.md §4.2's table. Extraction
// errors are never fatal: they produce a short placeholder text so the file
// still proceeds to chunking.
func Extract(path string) Result {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == ".pdf":
		return extractPDF(path)
	case textExts[ext]:
		return extractText(path)
	case codeExts[ext]:
		return extractCode(path)
	case structuredExts[ext]:
		return extractPlain(path, "")
	default:
		return extractFallback(path)
	}
}

func extractText(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(err.Error(), "text_failed")
	}

	encoding, text := detectAndDecode(data)
	return Result{
		Text:             text,
		ExtractionMethod: "text",
		Metadata:         map[string]string{"encoding": encoding},
	}
}

func extractCode(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(err.Error(), "code_failed")
	}

	_, text := detectAndDecode(data)
	prefixed := fmt.Sprintf("# File: %s\n\n%s", path, text)

	return Result{
		Text:             prefixed,
		ExtractionMethod: "code",
	}
}

func extractPlain(path, method string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(err.Error(), "plain_failed")
	}
	if method == "" {
		method = "plain"
	}
	_, text := detectAndDecode(data)
	return Result{Text: text, ExtractionMethod: method}
}

func extractFallback(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{
			Text:             fmt.Sprintf("Failed to extract: %v", err),
			ExtractionMethod: "fallback_failed",
		}
	}
	_, text := detectAndDecode(data)
	return Result{
		Text:             text,
		ExtractionMethod: "fallback",
		Metadata:         map[string]string{"extraction_method": "fallback"},
	}
}

func extractPDF(path string) Result {
	f, r, err := pdf.Open(path)
	if err != nil {
		return failed(err.Error(), "pdf_failed")
	}
	defer f.Close()

	pageCount := r.NumPage()
	var b strings.Builder

	for i := 1; i <= pageCount; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i, text)
	}

	return Result{
		Text:             b.String(),
		ExtractionMethod: "pdf",
		Metadata:         map[string]string{"page_count": fmt.Sprintf("%d", pageCount)},
	}
}

func failed(reason, method string) Result {
	return Result{
		Text:             fmt.Sprintf("Failed to extract: %s", reason),
		ExtractionMethod: method,
	}
}

// detectAndDecode sniffs a UTF-8/UTF-16 BOM, falling back to a validity
// heuristic, and returns the detected encoding name plus UTF-8 text. The
// corpus carries no text-encoding-detection library, so this is a narrowly
// scoped stdlib helper (documented in DESIGN.md).
func detectAndDecode(data []byte) (encoding string, text string) {
	switch {
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return "utf-8-bom", string(data[3:])
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return "utf-16-le", decodeUTF16(data[2:], false)
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return "utf-16-be", decodeUTF16(data[2:], true)
	case utf8.Valid(data):
		return "utf-8", string(data)
	default:
		return "binary-fallback", string(data)
	}
}

func decodeUTF16(data []byte, bigEndian bool) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}

	units := make([]uint16, len(data)/2)
	for i := range units {
		if bigEndian {
			units[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
		} else {
			units[i] = uint16(data[2*i+1])<<8 | uint16(data[2*i])
		}
	}

	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF:
			r := (rune(u-0xD800) << 10) + rune(units[i+1]-0xDC00) + 0x10000
			runes = append(runes, r)
			i++
		default:
			runes = append(runes, rune(u))
		}
	}

	return string(runes)
}
