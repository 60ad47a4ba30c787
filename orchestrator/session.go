// Package orchestrator runs a transcription session: it opens a recording
// from a data server, wires the views of the session to one event bus and
// table, applies editing commands and saves the result.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/langtech/transcriber/aikuma"
	"github.com/langtech/transcriber/clients"
	cfg "github.com/langtech/transcriber/config"
	"github.com/langtech/transcriber/datamodel"
	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/interval"
	"github.com/langtech/transcriber/player"
	"github.com/langtech/transcriber/swimlane"
	"github.com/langtech/transcriber/textedit"
	"github.com/langtech/transcriber/transcript"
	"github.com/langtech/transcriber/waveform"
)

// respeakingLaneBase keeps respeaking lane ids clear of speaker lane ids.
const respeakingLaneBase = 1000

var (
	ErrUnknownRecording = errors.New("recording not in index")
	ErrNotOriginal      = errors.New("recording is a respeaking")
)

// Source is where a session fetches recordings. *clients.HTTP is one.
type Source interface {
	Index(ctx context.Context) (*aikuma.Index, error)
	Recording(ctx context.Context, id string) ([]byte, error)
	Shape(ctx context.Context, id string) ([]byte, error)
	MapFile(ctx context.Context, id string) (string, error)
	Transcript(ctx context.Context, id string) (string, error)
}

type Session struct {
	cfg *cfg.Root
	src Source
	log logrus.FieldLogger

	bus     *event.Bus
	table   *datamodel.Table
	binding *event.TableBinding

	set      *waveform.Set
	wave     *waveform.Rich
	scroll   *waveform.Scrollbar
	nextWave int

	stack    *swimlane.Stack
	lanes    map[string]*swimlane.Lane
	nextLane int
	text     *textedit.TextEdit

	audio  *player.Sim
	follow *player.Follower

	recording string
	meta      map[string]string

	cursor    float64
	hasCursor bool
	sel       event.Span
	selWave   int
	selRID    datamodel.RowID
	mapSel    event.Span
	selLane   int
}

// NewSession builds an empty session. src may be nil for sessions that
// only work on local transcripts.
func NewSession(c *cfg.Root, src Source, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		cfg:     c,
		src:     src,
		log:     log,
		bus:     event.NewBus(event.WithLogger(log)),
		table:   datamodel.NewTable(Columns...),
		set:     waveform.NewSet(),
		lanes:   map[string]*swimlane.Lane{},
		audio:   player.NewSim(),
		meta:    map[string]string{},
		selWave: event.NoWaveform,
		selRID:  datamodel.NoRow,
		selLane: -1,
	}
	s.binding = event.BindTable(s.bus, s.table)

	s.stack = swimlane.NewStack(s.bus, s.laneConfig())
	s.stack.SetTable(s.table, transcript.IsTranscript)
	s.stack.Display(c.Waveform.Beg, c.Waveform.Dur)

	s.text = textedit.New(s.bus)
	s.text.SetTable(s.table, transcript.IsTranscript)

	s.follow = player.Follow(s.bus, s.audio, s.set)

	s.bus.SubscribeAll(s,
		event.KindCursorMoved,
		event.KindRegionChanged,
		event.KindSegmentSelected,
		event.KindSwimLaneRegion,
		event.KindRowUpdated,
		event.KindRowDeleted,
	)
	return s
}

func (s *Session) laneConfig() swimlane.Config {
	policy := interval.NonOverlapping
	if s.cfg.Lanes.AllowOverlap {
		policy = interval.OverlapPermitted
	}
	return swimlane.Config{Width: s.cfg.Lanes.Width, Policy: policy, Log: s.log}
}

func (s *Session) Bus() *event.Bus                { return s.bus }
func (s *Session) Table() *datamodel.Table        { return s.table }
func (s *Session) Waveform() *waveform.Rich       { return s.wave }
func (s *Session) Set() *waveform.Set             { return s.set }
func (s *Session) Scrollbar() *waveform.Scrollbar { return s.scroll }
func (s *Session) Stack() *swimlane.Stack         { return s.stack }
func (s *Session) TextEdit() *textedit.TextEdit   { return s.text }
func (s *Session) Player() *player.Sim            { return s.audio }
func (s *Session) Recording() string              { return s.recording }

// Lanes returns the respeaking lanes in the order they were added.
func (s *Session) Lanes() []*swimlane.Lane {
	out := make([]*swimlane.Lane, 0, len(s.lanes))
	for _, l := range s.lanes {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Cursor returns the last cursor position, if any.
func (s *Session) Cursor() (float64, bool) { return s.cursor, s.hasCursor }

// Selection returns the selected span and the row it belongs to, or
// NoRow for a plain region.
func (s *Session) Selection() (event.Span, datamodel.RowID) { return s.sel, s.selRID }

// RespeakingSelection returns the span of the respeaking recording mapped
// by the last clicked lane chip, and the lane id (-1 for none).
func (s *Session) RespeakingSelection() (event.Span, int) { return s.mapSel, s.selLane }

// SetMeta sets a metadata field written with the document.
func (s *Session) SetMeta(key, value string) { s.meta[key] = value }

func (s *Session) origin() event.Origin { return event.Origin{From: s} }

// Open loads an original recording with its envelope, its respeakings and
// its stored transcript. A recording without a stored transcript starts
// with an empty one.
func (s *Session) Open(ctx context.Context, id string) error {
	if s.src == nil {
		return fmt.Errorf("open %s: no data source", id)
	}
	if !aikuma.IsUUID(id) {
		return fmt.Errorf("open %q: not a recording uuid", id)
	}
	ix, err := s.src.Index(ctx)
	if err != nil {
		return err
	}
	rec, ok := ix.Recording(id)
	if !ok {
		return fmt.Errorf("open %s: %w", id, ErrUnknownRecording)
	}
	if rec.IsRespeaking() {
		return fmt.Errorf("open %s: %w of %s", id, ErrNotOriginal, rec.OriginalUUID)
	}

	if err := s.openAudio(ctx, id); err != nil {
		return err
	}

	s.ClearSwimlanes()
	for _, rid := range ix.Respeakings(id) {
		text, err := s.src.MapFile(ctx, rid)
		if err != nil {
			s.log.WithFields(logrus.Fields{"respeaking": rid, "err": err}).Warn("map file unavailable")
			continue
		}
		if _, err := s.AddRespeaking(rid, text); err != nil {
			s.log.WithFields(logrus.Fields{"respeaking": rid, "err": err}).Warn("map file rejected")
		}
	}

	text, err := s.src.Transcript(ctx, id)
	var nf *clients.NotFoundError
	switch {
	case errors.As(err, &nf):
		s.ClearTranscript()
		s.meta = map[string]string{transcript.MetaOriginalUUID: id}
	case err != nil:
		return err
	default:
		doc, err := transcript.ParseAikuma(strings.NewReader(text))
		if err != nil {
			return fmt.Errorf("transcript %s: %w", id, err)
		}
		if doc.OriginalUUID() == "" {
			doc.Meta[transcript.MetaOriginalUUID] = id
		}
		s.LoadDocument(doc)
	}

	s.log.WithFields(logrus.Fields{
		"recording":   id,
		"name":        rec.Name,
		"segments":    s.text.Len(),
		"respeakings": len(s.lanes),
	}).Info("recording opened")
	return nil
}

// OpenDocument opens the recording a transcript belongs to and loads the
// transcript over whatever was stored for it. A recording that cannot be
// opened is logged and the transcript is loaded anyway.
func (s *Session) OpenDocument(ctx context.Context, doc *transcript.Document) {
	if id := doc.OriginalUUID(); id != "" && id != s.recording && s.src != nil {
		if err := s.Open(ctx, id); err != nil {
			s.log.WithFields(logrus.Fields{"recording": id, "err": err}).Warn("recording not opened")
		}
	}
	s.LoadDocument(doc)
}

func (s *Session) openAudio(ctx context.Context, id string) error {
	raw, err := s.shape(ctx, id)
	if err != nil {
		return err
	}
	buf, err := waveform.NewBuffer(raw)
	if err != nil {
		return fmt.Errorf("shapefile %s: %w", id, err)
	}
	s.recording = id
	s.Display(buf)
	return nil
}

// shape downloads the envelope of a recording, building it from the audio
// when the server has none.
func (s *Session) shape(ctx context.Context, id string) ([]byte, error) {
	raw, err := s.src.Shape(ctx, id)
	if err == nil {
		return raw, nil
	}
	var nf *clients.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"recording": id}).Warn("no shape file on server, generating one")
	audio, err := s.src.Recording(ctx, id)
	if err != nil {
		return nil, err
	}
	w := s.cfg.Waveform
	return waveform.ShapeFromWAV(bytes.NewReader(audio), w.MaxWidth, w.MinDur, w.MaxChannels)
}

// Display replaces the session waveform with one drawn from buf and binds
// the transcript rows to it.
func (s *Session) Display(buf *waveform.Buffer) {
	if s.wave != nil {
		s.set.Remove(s.wave)
		s.wave.Close()
		s.scroll.Close()
	}
	wc := s.cfg.Waveform
	w := waveform.New(s.nextWave, buf, wc.Width, wc.Height, wc.Channel)
	s.nextWave++
	s.wave = waveform.NewRich(w, s.bus)
	s.set.Add(s.wave)
	s.scroll = waveform.NewScrollbar(s.set, s.bus, wc.Width)
	s.set.Display(wc.Beg, wc.Dur)
	s.audio.Load(buf.Len())

	for _, rid := range s.table.Find(transcript.IsTranscript) {
		s.table.UpdateRow(rid, map[string]any{"waveform": s.wave.ID()})
	}
}

func (s *Session) waveID() any {
	if s.wave == nil {
		return nil
	}
	return s.wave.ID()
}

// LoadDocument replaces the transcript rows with the segments of doc.
func (s *Session) LoadDocument(doc *transcript.Document) {
	s.ClearTranscript()
	s.meta = map[string]string{}
	for k, v := range doc.Meta {
		s.meta[k] = v
	}
	doc.AddTo(s.table, s.waveID())
}

// Document returns the transcript rows as a document.
func (s *Session) Document() *transcript.Document {
	return transcript.FromTable(s.table, s.meta)
}

// ClearTranscript deletes every transcript row.
func (s *Session) ClearTranscript() {
	for _, rid := range s.table.Find(transcript.IsTranscript) {
		s.table.DeleteRow(rid)
	}
	if !s.table.Has(s.selRID) {
		s.selRID = datamodel.NoRow
	}
}

// ClearSwimlanes deletes every respeaking row and lane.
func (s *Session) ClearSwimlanes() {
	for k, l := range s.lanes {
		l.TearDown()
		delete(s.lanes, k)
	}
	isRespeaking := func(r datamodel.Row) bool { return !transcript.IsTranscript(r) }
	for _, rid := range s.table.Find(isRespeaking) {
		s.table.DeleteRow(rid)
	}
	s.selLane = -1
}

// AddRespeaking adds a lane for a respeaking of the open recording, with
// one row per entry of its map file.
func (s *Session) AddRespeaking(id, mapText string) (*swimlane.Lane, error) {
	maps, err := transcript.ParseMap(mapText)
	if err != nil {
		return nil, fmt.Errorf("mapfile %s: %w", id, err)
	}
	if old := s.lanes[id]; old != nil {
		old.TearDown()
	}
	for _, rid := range s.table.FindBy("swimlane", func(v any) bool { return v == id }) {
		s.table.DeleteRow(rid)
	}

	lane := swimlane.NewLane(respeakingLaneBase+s.nextLane, s.bus, s.laneConfig())
	s.nextLane++
	for _, m := range maps {
		s.table.AddRow([]any{nil, m.Offset, m.Length, nil, nil, nil, id, m.MapOffset, m.MapLength})
	}
	lane.SetTable(s.table, func(r datamodel.Row) bool { return r.Value("swimlane") == id })
	beg, dur := s.cfg.Waveform.Beg, s.cfg.Waveform.Dur
	if s.set.HasWindow() {
		beg, dur = s.set.WindowStart(), s.set.WindowDuration()
	}
	lane.Display(beg, dur)
	s.lanes[id] = lane
	return lane, nil
}

func (s *Session) HandleEvent(e event.Event) {
	switch e := e.(type) {
	case event.CursorMoved:
		s.cursor, s.hasCursor = e.Time, true
	case event.RegionChanged:
		s.sel = event.Span{Offset: e.Beg, Length: e.Dur}
		s.selWave = e.Waveform
		s.selRID = datamodel.NoRow
	case event.SegmentSelected:
		s.sel = event.Span{Offset: e.Beg, Length: e.Dur}
		s.selWave = e.Waveform
		s.selRID = e.RID
	case event.SwimLaneRegion:
		s.mapSel = e.Map
		s.selLane = e.Lane
	case event.RowUpdated:
		if e.RID == s.selRID {
			s.sel = s.span(e.RID)
		}
	case event.RowDeleted:
		if e.RID == s.selRID {
			s.selRID = datamodel.NoRow
		}
	}
}

func (s *Session) span(rid datamodel.RowID) event.Span {
	r := s.table.Row(rid)
	off, _ := r.Float("offset")
	length, _ := r.Float("length")
	return event.Span{Offset: off, Length: length}
}

// Play plays the selection, or from its start to the end of the recording
// when the selection is empty.
func (s *Session) Play() {
	s.audio.Play(s.sel.Offset, s.sel.End())
}

// Close detaches every view from the bus and the table.
func (s *Session) Close() {
	s.follow.Close()
	s.text.TearDown()
	s.stack.TearDown()
	for _, l := range s.lanes {
		l.TearDown()
	}
	if s.wave != nil {
		s.wave.Close()
		s.scroll.Close()
	}
	s.binding.Unbind()
	s.bus.UnsubscribeAll(s)
}

// Save writes the transcript and its statistics into a new session
// directory under the configured outputs path and returns its path.
func (s *Session) Save(now time.Time) (string, error) {
	doc := s.Document()
	if _, ok := doc.Meta[transcript.MetaOriginalUUID]; !ok && s.recording != "" {
		doc.Meta[transcript.MetaOriginalUUID] = s.recording
	}
	sid, dir, err := persist(s.cfg.Paths.Outputs, doc, s.Stats(), now)
	if err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	s.log.WithFields(logrus.Fields{"session": sid, "dir": dir, "segments": len(doc.Segments)}).Info("session saved")
	return dir, nil
}

// Stats computes speaking statistics of the current transcript.
func (s *Session) Stats() Stats {
	return ComputeStats(s.Document(), s.cfg.Features)
}
