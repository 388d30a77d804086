// Package documenttest builds document fixtures for tests.
package documenttest

import (
	"archive/zip"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const rels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// WriteDocx writes a minimal Word document with one body paragraph per entry.
func WriteDocx(t *testing.T, path string, paragraphs ...string) {
	t.Helper()

	var body strings.Builder
	for _, paragraph := range paragraphs {
		if paragraph == "" {
			body.WriteString("<w:p/>")
			continue
		}
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(html.EscapeString(paragraph))
		body.WriteString("</w:t></w:r></w:p>")
	}

	WriteDocxXML(t, path, body.String())
}

// WriteDocxXML writes a Word document whose body is the given raw WordprocessingML.
func WriteDocxXML(t *testing.T, path, bodyXML string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	archive := zip.NewWriter(file)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rels},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			bodyXML + `</w:body></w:document>`},
	}
	for _, part := range parts {
		writer, err := archive.Create(part.name)
		require.NoError(t, err)
		_, err = writer.Write([]byte(part.content))
		require.NoError(t, err)
	}
	require.NoError(t, archive.Close())
}
