// Package e2e provides end-to-end tests; this file builds minimal file bytes
// for the supported upload types. PDF is not generated here because there is
// no minimal hand-written PDF with a reliable extractable text layer; the PDF
// path is covered by the extract package's own fixtures.
package e2e

import (
	"archive/zip"
	"bytes"
)

// SupportedFixtureExtensions lists the extensions WriteMinimalFile can build.
var SupportedFixtureExtensions = []string{".txt", ".md", ".docx"}

// WriteMinimalFile returns the file bytes for a minimal document of the given
// extension containing the given text.
func WriteMinimalFile(ext, text string) []byte {
	switch ext {
	case ".docx":
		return minimalDocx(text)
	default:
		return []byte(text)
	}
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}
