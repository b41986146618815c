package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/quietloop/ai-intervention-agent/internal/domain"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeAcceptsValidPNG(t *testing.T) {
	got, err := Normalize("shot.png", tinyPNG(t))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Mime != "image/png" {
		t.Fatalf("expected image/png, got %q", got.Mime)
	}
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	_, err := Normalize("shot.png", nil)
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestNormalizeRejectsOversizedUpload(t *testing.T) {
	big := make([]byte, MaxUploadBytes+1)
	copy(big, []byte("\x89PNG\r\n\x1a\n"))
	_, err := Normalize("big.png", big)
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestNormalizeRejectsTruncatedPNG(t *testing.T) {
	_, err := Normalize("shot.png", []byte("\x89PNG\r\n\x1a\nnotreallyapng"))
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for corrupt png, got %v", err)
	}
}

func TestNormalizeRejectsDisallowedFormat(t *testing.T) {
	_, err := Normalize("doc.pdf", []byte("%PDF-1.4 not an image"))
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for pdf, got %v", err)
	}
}

func TestNormalizeAcceptsWellFormedSVG(t *testing.T) {
	svg := []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><circle cx="5" cy="5" r="4"/></svg>`)
	got, err := Normalize("icon.svg", svg)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Mime != "image/svg+xml" {
		t.Fatalf("expected image/svg+xml, got %q", got.Mime)
	}
}

func TestNormalizeRejectsSVGWithScriptTag(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
	_, err := Normalize("icon.svg", svg)
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for svg with script tag, got %v", err)
	}
}

func TestNormalizeRejectsSVGWithWrongRoot(t *testing.T) {
	svg := []byte(`<html><body>not an svg</body></html>`)
	_, err := Normalize("icon.svg", svg)
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for non-svg root, got %v", err)
	}
}

func TestSanitizeFileNameStripsTraversal(t *testing.T) {
	got := SanitizeFileName("../../etc/passwd")
	if got != "passwd" {
		t.Fatalf("expected traversal stripped to base name, got %q", got)
	}
}

func TestSanitizeFileNameFallsBackOnEmpty(t *testing.T) {
	if got := SanitizeFileName(""); got != "upload" {
		t.Fatalf("expected fallback name, got %q", got)
	}
}
