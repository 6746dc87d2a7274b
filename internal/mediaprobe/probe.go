// Package mediaprobe implements the external media-probe collaborator
// (spec §6): dimensions and capture time for a finalized asset file. New
// to this spec — no pack repo does image probing — built on the standard
// library's image package for dimensions and rwcarlsen/goexif for capture
// time.
package mediaprobe

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is the result of probing an assembled upload.
type Metadata struct {
	Width      int32
	Height     int32
	CapturedAt *time.Time
}

// Prober is the probe(path) -> {width, height, captured_at?} collaborator
// contract from spec §6. Kept as an interface so the finalizer can
// substitute a fake in tests instead of depending on real image decoding.
type Prober interface {
	Probe(path string) (Metadata, error)
}

// Default decodes image dimensions via the standard library and capture
// time via EXIF, when present. Video files and formats the standard
// library doesn't register a decoder for yield zero dimensions and no
// error: dimension probing is best-effort, not a hard requirement.
type Default struct{}

func (Default) Probe(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	var md Metadata
	if cfg, _, err := image.DecodeConfig(f); err == nil {
		md.Width = int32(cfg.Width)
		md.Height = int32(cfg.Height)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return md, err
	}
	if x, err := exif.Decode(f); err == nil {
		if t, err := x.DateTime(); err == nil {
			md.CapturedAt = &t
		}
	}

	return md, nil
}

var _ Prober = Default{}
