// Package imaging normalizes an uploaded image part into the task domain's
// internal image representation: validate the MIME allow-list, enforce size
// caps, and structurally decode the bytes so a corrupt or disguised upload
// never reaches a stored task.
package imaging

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/quietloop/ai-intervention-agent/internal/domain"
	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
)

const (
	// MaxUploadBytes is the hard cap on a single image part before normalization.
	MaxUploadBytes = 10 * 1024 * 1024
	// MaxNormalizedBytes is the hard cap on the bytes kept after normalization.
	MaxNormalizedBytes = 2 * 1024 * 1024
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Normalize validates and decodes one uploaded image part and returns the
// internal representation that crosses into the task's Result. filename is
// used only to sanitize a safe name for logging; MIME detection never trusts
// it.
func Normalize(filename string, data []byte) (task.Image, error) {
	if len(data) == 0 {
		return task.Image{}, fmt.Errorf("%w: empty image part", domain.ErrInvalid)
	}
	if len(data) > MaxUploadBytes {
		return task.Image{}, fmt.Errorf("%w: image %q exceeds upload size cap", domain.ErrInvalid, SanitizeFileName(filename))
	}

	mimeType, err := detectMime(data)
	if err != nil {
		return task.Image{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	if mimeType == "image/svg+xml" {
		if err := validateSVG(data); err != nil {
			return task.Image{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
		}
	} else if err := decodeCheck(mimeType, data); err != nil {
		return task.Image{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}

	if len(data) > MaxNormalizedBytes {
		return task.Image{}, fmt.Errorf("%w: image %q exceeds normalized size cap", domain.ErrInvalid, SanitizeFileName(filename))
	}

	return task.Image{Bytes: data, Mime: mimeType}, nil
}

// detectMime identifies the image format from its magic bytes, independent
// of any claimed Content-Type or filename extension, and rejects anything
// outside the allow-list (PNG/JPEG/WebP/GIF/BMP/SVG).
func detectMime(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", nil
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif", nil
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp", nil
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp", nil
	case looksLikeSVG(data):
		return "image/svg+xml", nil
	default:
		return "", fmt.Errorf("unrecognized or disallowed image format")
	}
}

func looksLikeSVG(data []byte) bool {
	head := strings.TrimLeftFunc(string(data[:min(512, len(data))]), unicode.IsSpace)
	head = strings.ToLower(head)
	return strings.HasPrefix(head, "<?xml") || strings.HasPrefix(head, "<svg")
}

func decodeCheck(mimeType string, data []byte) error {
	r := bytes.NewReader(data)
	var err error
	switch mimeType {
	case "image/png":
		_, err = png.Decode(r)
	case "image/jpeg":
		_, err = jpeg.Decode(r)
	case "image/gif":
		_, err = gif.Decode(r)
	case "image/bmp":
		_, err = bmp.Decode(r)
	case "image/webp":
		_, err = webp.Decode(r)
	default:
		return fmt.Errorf("no decoder for %q", mimeType)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", mimeType, err)
	}
	return nil
}

// validateSVG parses the upload as XML and rejects anything that isn't a
// well-formed document rooted at <svg>, or that embeds a <script> element.
func validateSVG(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("malformed svg: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			if !sawRoot {
				if !strings.EqualFold(start.Name.Local, "svg") {
					return fmt.Errorf("svg root element is %q, not svg", start.Name.Local)
				}
				sawRoot = true
				continue
			}
			if strings.EqualFold(start.Name.Local, "script") {
				return fmt.Errorf("svg contains an embedded <script> element")
			}
		}
	}
	if !sawRoot {
		return fmt.Errorf("svg has no root element")
	}
	return nil
}

// SanitizeFileName strips an uploaded filename down to a safe base name,
// rejecting path separators and traversal and falling back to a generic
// name when nothing usable remains. It mirrors how this corpus sanitizes
// attachment names before they ever touch a filesystem path or a log line.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "upload"
	}
	cleaned := unsafeFileChars.ReplaceAllString(base, "_")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
