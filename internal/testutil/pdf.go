// Package testutil builds small, well-formed PDF files in memory so the
// extractor and pipeline tests run against real parser input.
package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

// BuildPDF returns a PDF with one page per element of pages. Each page is a
// list of text runs, drawn top to bottom.
func BuildPDF(pages ...[]string) []byte {
	return buildPDF(pages, false)
}

// BuildEncryptedPDF returns a PDF whose standard security handler requires a
// user password that is not empty.
func BuildEncryptedPDF(pages ...[]string) []byte {
	return buildPDF(pages, true)
}

// Paragraph splits text into runs of at most width characters on word
// boundaries, for use as one page of BuildPDF.
func Paragraph(text string, width int) []string {
	var (
		runs []string
		line strings.Builder
	)
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > width {
			runs = append(runs, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		runs = append(runs, line.String())
	}
	return runs
}

func buildPDF(pages [][]string, encrypted bool) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	writeObj := func(body string) int {
		offsets = append(offsets, buf.Len())
		num := len(offsets)
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
		return num
	}

	buf.WriteString("%PDF-1.4\n")

	// Object numbers are fixed up front: 1 catalog, 2 page tree, 3 font,
	// then a (page, contents) pair per page.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, runs := range pages {
		writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i,
		))
		stream := contentStream(runs)
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	trailerExtra := ""
	if encrypted {
		encNum := writeObj(fmt.Sprintf(
			"<< /Filter /Standard /V 1 /R 2 /Length 40 /P -4 /O <%s> /U <%s> >>",
			strings.Repeat("4F", 32), strings.Repeat("55", 32),
		))
		id := strings.Repeat("A1", 16)
		trailerExtra = fmt.Sprintf(" /Encrypt %d 0 R /ID [<%s> <%s>]", encNum, id, id)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, trailerExtra, xrefOffset)

	return buf.Bytes()
}

func contentStream(runs []string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 11 Tf\n")
	for i, run := range runs {
		fmt.Fprintf(&sb, "1 0 0 1 72 %d Tm\n(%s) Tj\n", 740-i*14, escapePDFString(run))
	}
	sb.WriteString("ET")
	return sb.String()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
