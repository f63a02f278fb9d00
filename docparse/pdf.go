package docparse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfString matches a literal string operand: (text).
var pdfString = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// parsePDF returns the text of every page, pages separated by blank lines.
func parsePDF(ctx context.Context, data []byte) (text string, pageCount int, err error) {
	// pdfcpu can panic on malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, pageCount, err = "", 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return "", 0, fmt.Errorf("reading pdf: %w", err)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil || r == nil {
			continue
		}
		stream, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if text := textFromContentStream(stream); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", pdfCtx.PageCount, errors.New("no text content found in pdf")
	}
	return strings.Join(pages, "\n\n"), pdfCtx.PageCount, nil
}

// textFromContentStream collects the operands of the text-showing operators
// (Tj, TJ, ' and ") of a page content stream. Line moves (T*, Td, TD)
// become line breaks.
func textFromContentStream(stream []byte) string {
	var b strings.Builder
	for line := range bytes.SplitSeq(stream, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfString.FindAllSubmatch(line, -1) {
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			for _, m := range pdfString.FindAllSubmatch(line, -1) {
				b.WriteByte('\n')
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.Equal(line, []byte("T*")), bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			b.WriteByte('\n')
		case bytes.Equal(line, []byte("ET")):
			b.WriteString("\n\n")
		}
	}
	return tidyLines(b.String())
}

// tidyLines collapses spaces within lines and drops empty lines beyond one.
func tidyLines(text string) string {
	var out []string
	blank := false
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// decodePDFString resolves the escape sequences of a literal string.
func decodePDFString(raw []byte) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			val := 0
			for n := 0; n < 3 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7'; n++ {
				val = val*8 + int(raw[i]-'0')
				i++
			}
			i--
			b.WriteByte(byte(val))
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}
