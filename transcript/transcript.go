// Package transcript reads and writes the transcript interchange formats:
// Aikuma tab-delimited text, ELAN EAF and respeaking map files.
package transcript

import (
	"math"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/langtech/transcriber/datamodel"
)

// Meta keys written by this package.
const (
	MetaUser         = "user"
	MetaOriginalUUID = "original_uuid"
)

var validate = validator.New()

// Segment is one time-aligned piece of transcript.
type Segment struct {
	Offset      float64 `json:"offset" validate:"gte=0"`
	Length      float64 `json:"length" validate:"gte=0"`
	Speaker     string  `json:"speaker"`
	Transcript  string  `json:"transcript"`
	Translation string  `json:"translation"`
}

func (s Segment) End() float64 { return s.Offset + s.Length }

// Document is a parsed transcript.
type Document struct {
	Meta     map[string]string `json:"meta"`
	Segments []Segment         `json:"data" validate:"dive"`
}

// OriginalUUID returns the recording the transcript belongs to.
func (d *Document) OriginalUUID() string {
	if d.Meta == nil {
		return ""
	}
	return d.Meta[MetaOriginalUUID]
}

// Speakers returns the distinct speakers in order of first appearance.
func (d *Document) Speakers() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range d.Segments {
		if !seen[s.Speaker] {
			seen[s.Speaker] = true
			out = append(out, s.Speaker)
		}
	}
	return out
}

// IsTranscript accepts rows of the original recording, leaving out
// respeaking rows.
func IsTranscript(r datamodel.Row) bool {
	return r.Value("swimlane") == nil && r.Value("mapoff") == nil
}

// FromTable collects the transcript rows of a table ordered by time.
func FromTable(t *datamodel.Table, meta map[string]string) *Document {
	doc := &Document{Meta: map[string]string{}}
	for k, v := range meta {
		doc.Meta[k] = v
	}
	t.ForEach(func(r datamodel.Row) {
		off, _ := r.Float("offset")
		length, _ := r.Float("length")
		doc.Segments = append(doc.Segments, Segment{
			Offset:      off,
			Length:      length,
			Speaker:     r.String("speaker"),
			Transcript:  r.String("transcript"),
			Translation: r.String("translation"),
		})
	}, IsTranscript)
	sort.SliceStable(doc.Segments, func(i, j int) bool {
		return doc.Segments[i].Offset < doc.Segments[j].Offset
	})
	return doc
}

// AddTo appends the segments to t as transcript rows bound to waveform
// (nil for none) and returns their ids.
func (d *Document) AddTo(t *datamodel.Table, waveform any) []datamodel.RowID {
	ids := make([]datamodel.RowID, 0, len(d.Segments))
	for _, s := range d.Segments {
		ids = append(ids, t.AddRow([]any{waveform, s.Offset, s.Length, s.Speaker, s.Transcript, s.Translation}))
	}
	return ids
}

// seconds formats t with millisecond precision.
func seconds(t float64) string {
	return strconv.FormatFloat(math.Round(t*1000)/1000, 'f', -1, 64)
}
