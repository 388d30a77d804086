package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	documentPart  = "word/document.xml"
	maxPartBytes  = 64 << 20
)

func readDocx(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	mime := mimetype.Detect(data)
	if !mime.Is("application/zip") && !mime.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document") {
		return "", fmt.Errorf("%s: detected %s: %w", path, mime.String(), ErrFormat)
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", path, err, ErrFormat)
	}

	var part *zip.File
	for _, file := range archive.File {
		if file.Name == documentPart {
			part = file
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("%s: missing %s: %w", path, documentPart, ErrFormat)
	}

	reader, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", path, err, ErrFormat)
	}
	defer reader.Close()

	paragraphs, err := bodyParagraphs(io.LimitReader(reader, maxPartBytes))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", path, err, ErrFormat)
	}

	return strings.Join(paragraphs, "\n"), nil
}

// bodyParagraphs walks document.xml and returns the text of every paragraph
// that is a direct child of w:body. Table and text-box paragraphs are skipped.
// Only run content counts: a w:tab under w:pPr/w:tabs is a tab stop, not text.
func bodyParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		inBodyPara bool
		paraDepth  int
		inText     bool
		sawBody    bool
		// suspendedAt is the stack depth of a text box or markup-compatibility
		// subtree being skipped, -1 when none.
		suspendedAt = -1
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := token.(type) {
		case xml.StartElement:
			name := wordName(el.Name)
			if name == "body" {
				sawBody = true
			}
			if name == "p" && !inBodyPara && len(stack) > 0 && stack[len(stack)-1] == "body" {
				inBodyPara = true
				paraDepth = len(stack)
				current.Reset()
			}
			if inBodyPara && suspendedAt < 0 && skipsContent(name) {
				suspendedAt = len(stack)
			}
			if inBodyPara && suspendedAt < 0 && len(stack) > 0 && stack[len(stack)-1] == "r" {
				switch name {
				case "t":
					inText = true
				case "tab":
					current.WriteByte('\t')
				case "br", "cr":
					current.WriteByte('\n')
				}
			}
			stack = append(stack, name)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced document xml")
			}
			stack = stack[:len(stack)-1]
			name := wordName(el.Name)
			if name == "t" {
				inText = false
			}
			if suspendedAt >= 0 && len(stack) == suspendedAt {
				suspendedAt = -1
			}
			if inBodyPara && name == "p" && len(stack) == paraDepth {
				paragraphs = append(paragraphs, current.String())
				inBodyPara = false
			}
		case xml.CharData:
			if inBodyPara && inText {
				current.Write(el)
			}
		}
	}

	if !sawBody {
		return nil, errors.New("document body not found")
	}

	return paragraphs, nil
}

// skipsContent reports elements whose text is not part of the paragraph:
// text boxes, and AlternateContent, which stores the same drawing twice.
func skipsContent(name string) bool {
	return name == "txbxContent" || name == "~AlternateContent"
}

// wordName returns the local name for WordprocessingML elements and a marker
// for anything else so foreign elements never match paragraph logic.
func wordName(name xml.Name) string {
	if name.Space != "" && name.Space != wordNamespace {
		return "~" + name.Local
	}
	return name.Local
}
