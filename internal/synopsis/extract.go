// Package synopsis decodes the submitted synopsis payload and extracts its
// plain text. Payloads arrive base64-encoded and are either PDF bytes or raw
// text, selected by the request's inputType.
package synopsis

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	// KindFile marks the payload as PDF document bytes.
	KindFile = "file"
	// KindText marks the payload as raw UTF-8 text.
	KindText = "text"

	maxTitleLen = 50
)

var (
	// ErrDecode indicates the payload is not valid base64.
	ErrDecode = errors.New("payload is not valid base64")
	// ErrEmptyText indicates extraction produced no usable text.
	ErrEmptyText = errors.New("no text content found in PDF")
	// ErrUnsupported indicates an encrypted or malformed document.
	ErrUnsupported = errors.New("invalid PDF file format")
)

// Synopsis is the extracted plain-text synopsis with its derived title.
type Synopsis struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	SourceName  string    `json:"sourceName"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// Extract decodes the base64 payload and produces a whitespace-normalized
// synopsis. For KindText the payload decodes straight to text; for KindFile
// it is parsed as a PDF.
func Extract(payload, kind string) (Synopsis, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Synopsis{}, fmt.Errorf("decode synopsis payload: %w", ErrDecode)
	}

	var text string
	var source string
	switch kind {
	case KindText:
		if !utf8.Valid(data) {
			return Synopsis{}, fmt.Errorf("decode synopsis payload: %w", ErrDecode)
		}
		text = string(data)
		source = "input.txt"
	default:
		text, err = extractPDF(data)
		if err != nil {
			return Synopsis{}, err
		}
		source = "input.pdf"
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return Synopsis{}, ErrEmptyText
	}

	return Synopsis{
		Title:       deriveTitle(text),
		Content:     text,
		SourceName:  source,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "", ErrEmptyText
	}
	return buf.String(), nil
}

// normalizeWhitespace collapses runs of whitespace and newlines into single
// spaces, matching how the synthesis prompt expects the synopsis.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// deriveTitle takes the leading text capped at maxTitleLen, cutting at a word
// boundary where possible and never inside a multi-byte rune.
func deriveTitle(text string) string {
	if len(text) <= maxTitleLen {
		return text
	}
	cut := maxTitleLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	title := text[:cut]
	if idx := strings.LastIndexByte(title, ' '); idx > 0 {
		title = title[:idx]
	}
	return title
}
