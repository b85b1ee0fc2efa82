package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

const docxDocumentXMLPath = "word/document.xml"

// wtTag matches <w:t>text</w:t> including attributed forms like
// <w:t xml:space="preserve">. Extracting every text node keeps content
// searchable regardless of paragraph/run attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wpClose marks paragraph ends; paragraphs become newlines so clause
// headings stay on their own line for the clause tagger.
var wpClose = regexp.MustCompile(`</w:p>`)

// extractDOCX extracts text from .docx bytes (a ZIP containing OOXML).
// Paragraph boundaries are preserved as newlines.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("not a zip: %w", err)
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentXMLPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("%s not found", docxDocumentXMLPath)
	}

	var b strings.Builder
	for _, para := range wpClose.Split(string(docXML), -1) {
		nodes := wtTag.FindAllStringSubmatch(para, -1)
		if len(nodes) == 0 {
			continue
		}
		for _, n := range nodes {
			b.WriteString(n[1])
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}
