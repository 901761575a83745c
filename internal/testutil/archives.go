package testutil

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zip"
)

// Entry is one file inside a test archive
type Entry struct {
	Name string
	Data []byte
}

// WriteCBZ builds a zip-based comic archive at dir/name with entries in order
func WriteCBZ(t *testing.T, dir, name string, entries ...Entry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish archive: %v", err)
	}
	return path
}

// SolidImage returns a w x h image filled with c
func SolidImage(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

// EncodeImage encodes img in the given format
func EncodeImage(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// PNG returns an encoded solid-colour PNG page
func PNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	return EncodeImage(t, SolidImage(w, h, c), imaging.PNG)
}

// JPEG returns an encoded solid-colour JPEG page
func JPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	return EncodeImage(t, SolidImage(w, h, c), imaging.JPEG)
}
