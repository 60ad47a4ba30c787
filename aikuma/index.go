// Package aikuma indexes an Aikuma data folder: original recordings, the
// respeakings that comment on them and the speakers who made them.
package aikuma

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var ErrNoRecordings = errors.New("no recordings directory")

// Recording is the metadata file kept next to every recording.
type Recording struct {
	UUID         string   `json:"uuid"`
	Name         string   `json:"name"`
	Date         string   `json:"date,omitempty"`
	OriginalUUID string   `json:"original_uuid,omitempty"`
	Speakers     []string `json:"speakers,omitempty"`
}

// IsRespeaking reports whether the recording comments on another one.
func (r Recording) IsRespeaking() bool { return r.OriginalUUID != "" }

type Speaker struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Index is the content of index.json as served to the transcriber.
type Index struct {
	Originals    map[string]Recording `json:"originals"`
	Commentaries map[string]Recording `json:"commentaries"`
	Speakers     map[string]Speaker   `json:"speakers"`
}

// Group is an original recording with its respeakings.
type Group struct {
	Original    string   `json:"original"`
	Respeakings []string `json:"respeakings"`
}

func newIndex() *Index {
	return &Index{
		Originals:    map[string]Recording{},
		Commentaries: map[string]Recording{},
		Speakers:     map[string]Speaker{},
	}
}

// BaseDir returns the first directory under root, root included, that
// holds a recordings directory.
func BaseDir(root string) (string, error) {
	var base string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "recordings" {
			base = filepath.Dir(p)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("aikuma scan %s: %w", root, err)
	}
	if base == "" {
		return "", fmt.Errorf("aikuma scan %s: %w", root, ErrNoRecordings)
	}
	return base, nil
}

// Scan reads every recordings/**/<uuid>.json and users/*/metadata.json
// under the Aikuma folder at base.
func Scan(base string) (*Index, error) {
	ix := newIndex()
	recs := filepath.Join(base, "recordings")
	err := filepath.WalkDir(recs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		stem, ok := strings.CutSuffix(d.Name(), ".json")
		if !ok || !IsUUID(stem) {
			return nil
		}
		var r Recording
		if err := readJSON(p, &r); err != nil {
			return err
		}
		if r.UUID == "" {
			r.UUID = stem
		}
		if r.IsRespeaking() {
			ix.Commentaries[r.UUID] = r
		} else {
			ix.Originals[r.UUID] = r
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("aikuma scan: %w", err)
	}

	users, _ := filepath.Glob(filepath.Join(base, "users", "*", "metadata.json"))
	for _, p := range users {
		var s Speaker
		if err := readJSON(p, &s); err != nil {
			return nil, fmt.Errorf("aikuma scan: %w", err)
		}
		if s.UUID == "" {
			s.UUID = filepath.Base(filepath.Dir(p))
		}
		ix.Speakers[s.UUID] = s
	}
	return ix, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s decode: %w", path, err)
	}
	return nil
}

// Load reads an index.json.
func Load(path string) (*Index, error) {
	ix := newIndex()
	if err := readJSON(path, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// Recording looks a recording up among originals and respeakings.
func (ix *Index) Recording(id string) (Recording, bool) {
	if r, ok := ix.Originals[id]; ok {
		return r, true
	}
	r, ok := ix.Commentaries[id]
	return r, ok
}

// Respeakings returns the respeakings of an original, sorted.
func (ix *Index) Respeakings(original string) []string {
	var out []string
	for id, r := range ix.Commentaries {
		if r.OriginalUUID == original {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Groups returns one group per original, including originals only known
// through their respeakings, ordered by recording name.
func (ix *Index) Groups() []Group {
	byID := map[string]*Group{}
	for id := range ix.Originals {
		byID[id] = &Group{Original: id}
	}
	for id, r := range ix.Commentaries {
		g, ok := byID[r.OriginalUUID]
		if !ok {
			g = &Group{Original: r.OriginalUUID}
			byID[r.OriginalUUID] = g
		}
		g.Respeakings = append(g.Respeakings, id)
	}
	out := make([]Group, 0, len(byID))
	for _, g := range byID {
		sort.Strings(g.Respeakings)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := ix.name(out[i].Original), ix.name(out[j].Original)
		if a != b {
			return a < b
		}
		return out[i].Original < out[j].Original
	})
	return out
}

func (ix *Index) name(id string) string {
	return strings.ToLower(ix.Originals[id].Name)
}

// IsUUID reports whether s is a uuid in canonical form.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
