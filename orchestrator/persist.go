package orchestrator

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/langtech/transcriber/transcript"
)

// Files written into a session directory.
const (
	AikumaFile   = "transcript.txt"
	EAFFile      = "transcript.eaf"
	MarkdownFile = "transcript.md"
	StatsFile    = "stats.json"
	BundleFile   = "session.json"
)

type PersistBundle struct {
	SessionID   string    `json:"session_id"`
	Recording   string    `json:"recording,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Segments    int       `json:"segments"`
	Speakers    []string  `json:"speakers"`
	Files       []string  `json:"files"`
}

func mkSessionDir(outputsRoot string, now time.Time) (string, string, error) {
	ts := now.Format("20060102-150405")
	sid := "session_" + ts
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	return sid, dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeWith(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// persist writes doc in every export format plus its statistics into a
// new session directory under outputsRoot and returns the directory.
func persist(outputsRoot string, doc *transcript.Document, stats Stats, now time.Time) (sessionID, dir string, err error) {
	sid, outDir, err := mkSessionDir(outputsRoot, now)
	if err != nil {
		return "", "", err
	}

	if err = writeWith(filepath.Join(outDir, AikumaFile), func(w io.Writer) error {
		return transcript.WriteAikuma(w, doc)
	}); err != nil {
		return "", "", err
	}
	if err = writeWith(filepath.Join(outDir, EAFFile), func(w io.Writer) error {
		return transcript.WriteEAF(w, doc, now)
	}); err != nil {
		return "", "", err
	}
	if err = writeWith(filepath.Join(outDir, MarkdownFile), func(w io.Writer) error {
		return transcript.WriteMarkdown(w, doc)
	}); err != nil {
		return "", "", err
	}
	if err = writeJSON(filepath.Join(outDir, StatsFile), stats); err != nil {
		return "", "", err
	}

	bundle := PersistBundle{
		SessionID:   sid,
		Recording:   doc.OriginalUUID(),
		GeneratedAt: now,
		Segments:    len(doc.Segments),
		Speakers:    doc.Speakers(),
		Files:       []string{AikumaFile, EAFFile, MarkdownFile, StatsFile},
	}
	if err = writeJSON(filepath.Join(outDir, BundleFile), bundle); err != nil {
		return "", "", err
	}

	return sid, outDir, nil
}
