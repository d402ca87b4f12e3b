package extractor

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFilename(t *testing.T) {
	e, err := ForFilename("Report.PDF")
	require.NoError(t, err)
	assert.IsType(t, PDF{}, e)

	e, err = ForFilename("notes.txt")
	require.NoError(t, err)
	assert.IsType(t, Text{}, e)

	_, err = ForFilename("slides.docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = ForFilename("noext")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "alpha beta", Sanitize("\x00alpha\x01 beta\x7f  "))
	assert.Equal(t, "line one\nline\ttwo", Sanitize("line one\nline\ttwo"))
	assert.Equal(t, "", Sanitize("\x00\x02 \n"))
}

func TestTextSplitsOnFormFeed(t *testing.T) {
	res, err := Text{}.Extract([]byte("first page\fsecond\x00 page\f   \ffourth\f"))
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalPages)
	assert.Equal(t, "first page", res.Pages[1])
	assert.Equal(t, "second page", res.Pages[2])
	assert.NotContains(t, res.Pages, 3, "blank pages are omitted")
	assert.Equal(t, "fourth", res.Pages[4])
}

func TestTextEmpty(t *testing.T) {
	res, err := Text{}.Extract(nil)
	require.NoError(t, err)
	assert.False(t, res.Pages.HasText())
}

// buildPDF writes a minimal PDF with one text line per page and an Info
// dictionary.
func buildPDF(title string, pages ...string) []byte {
	var objects []string
	n := len(pages)
	// 1 catalog, 2 pages, 3 font, 4 info, then page/content pairs.
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 5+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Title (%s) /Author (Test Author) >>", title),
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFExtractsPagesAndInfo(t *testing.T) {
	data := buildPDF("Orbital Notes", "alpha beta", "gamma delta")
	res, err := PDF{}.Extract(data)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, "Orbital Notes", res.Title)
	assert.Equal(t, "Test Author", res.Author)
	assert.Contains(t, res.Pages[1], "alpha")
	assert.Contains(t, res.Pages[2], "delta")
}

func TestPDFRejectsGarbage(t *testing.T) {
	_, err := PDF{}.Extract([]byte("this is not a pdf"))
	assert.ErrorIs(t, err, ErrUnreadable)
}
