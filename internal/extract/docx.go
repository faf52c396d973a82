package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// wordDocumentXML is the conventional path of the document body in a .docx.
const wordDocumentXML = "word/document.xml"

// wtText matches the inner text of <w:t> runs, with or without attributes
// (e.g. <w:t xml:space="preserve">). Attribute-bearing runs are the common
// case in real documents, so matching bare <w:p> pairs is not enough; this is
// also why lu4p/cat is not used here despite handling the happy path.
var wtText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX extracts the text runs from a .docx (OOXML zip) body, joined by
// single spaces.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	docXML, err := readZipFile(zr, wordDocumentXML)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	runs := wtText.FindAllStringSubmatch(string(docXML), -1)
	if len(runs) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, run := range runs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(run[1]))
	}
	return strings.TrimSpace(b.String()), nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}
