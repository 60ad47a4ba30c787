// Package store keeps transcripts in a PostgREST table, one row per
// segment.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/langtech/transcriber/transcript"
)

// Segment is one row of the segments table.
type Segment struct {
	ID          string    `json:"id"`
	Recording   string    `json:"recording"`
	Position    int       `json:"position"`
	Offset      float64   `json:"offset"`
	Length      float64   `json:"length"`
	Speaker     string    `json:"speaker"`
	Transcript  string    `json:"transcript"`
	Translation string    `json:"translation"`
	User        string    `json:"user,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

type Store struct {
	c     *postgrest.Client
	table string
	now   func() time.Time
}

// New connects to the PostgREST endpoint of a Supabase project at url.
func New(url, key, table string) (*Store, error) {
	c := postgrest.NewClient(url+"/rest/v1", "", map[string]string{
		"apikey":        key,
		"Authorization": fmt.Sprintf("Bearer %s", key),
	})
	if c.ClientError != nil {
		return nil, fmt.Errorf("postgrest client: %w", c.ClientError)
	}
	return &Store{c: c, table: table, now: time.Now}, nil
}

// Save replaces the stored segments of a recording with those of doc.
func (s *Store) Save(recording string, doc *transcript.Document) error {
	if _, _, err := s.c.From(s.table).Delete("minimal", "").Eq("recording", recording).Execute(); err != nil {
		return fmt.Errorf("store delete %s: %w", recording, err)
	}
	if len(doc.Segments) == 0 {
		return nil
	}
	now := s.now().UTC()
	rows := make([]Segment, len(doc.Segments))
	for i, seg := range doc.Segments {
		rows[i] = Segment{
			ID:          uuid.NewString(),
			Recording:   recording,
			Position:    i,
			Offset:      seg.Offset,
			Length:      seg.Length,
			Speaker:     seg.Speaker,
			Transcript:  seg.Transcript,
			Translation: seg.Translation,
			User:        doc.Meta[transcript.MetaUser],
			SavedAt:     now,
		}
	}
	if _, _, err := s.c.From(s.table).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("store insert %s: %w", recording, err)
	}
	return nil
}

// Load returns the stored transcript of a recording ordered by time.
func (s *Store) Load(recording string) (*transcript.Document, error) {
	var rows []Segment
	_, err := s.c.From(s.table).
		Select("*", "", false).
		Eq("recording", recording).
		Order("offset", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("store load %s: %w", recording, err)
	}
	doc := &transcript.Document{Meta: map[string]string{transcript.MetaOriginalUUID: recording}}
	for _, r := range rows {
		if r.User != "" {
			doc.Meta[transcript.MetaUser] = r.User
		}
		doc.Segments = append(doc.Segments, transcript.Segment{
			Offset:      r.Offset,
			Length:      r.Length,
			Speaker:     r.Speaker,
			Transcript:  r.Transcript,
			Translation: r.Translation,
		})
	}
	return doc, nil
}
