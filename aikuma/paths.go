package aikuma

import (
	"path/filepath"
	"strings"
)

// File extensions of the per-recording files.
const (
	ExtWAV        = "wav"
	ExtShape      = "shape"
	ExtMap        = "map"
	ExtTranscript = "txt"
	ExtMeta       = "json"
)

// Layout resolves files of an Aikuma folder.
type Layout struct {
	Base string
}

// RecordingPath returns recordings/<first uuid group>/<uuid>.<ext>.
func (l Layout) RecordingPath(id, ext string) string {
	prefix, _, _ := strings.Cut(id, "-")
	return filepath.Join(l.Base, "recordings", prefix, id+"."+ext)
}

// SpeakerImage returns the speaker's picture, or its thumbnail with small
// set.
func (l Layout) SpeakerImage(id string, small bool) string {
	name := id + "-image.jpg"
	if small {
		name = id + "-image-small.jpg"
	}
	return filepath.Join(l.Base, "speakers", id, name)
}

// IndexPath is where the generated index.json lives.
func (l Layout) IndexPath() string { return filepath.Join(l.Base, "index.json") }
