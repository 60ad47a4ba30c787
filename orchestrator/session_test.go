package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langtech/transcriber/aikuma"
	"github.com/langtech/transcriber/clients"
	cfg "github.com/langtech/transcriber/config"
	"github.com/langtech/transcriber/datamodel"
	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/transcript"
	"github.com/langtech/transcriber/waveform"
)

const (
	orig = "3f2b6c1e-8d4a-4e2f-9c1b-7a5d3e9f0b12"
	rspk = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
)

const storedTranscript = ";; user kim\n" +
	";; original_uuid " + orig + "\n" +
	"1\t3\tA\thello\tsalut\n" +
	"4\t6\tB\tyes\toui\n"

// 1 s to 2 s and 5 s to 6 s of the original.
const storedMap = "16000,32000:0,8000\n80000,96000:8000,24000\n"

type fakeSource struct {
	ix          *aikuma.Index
	shapes      map[string][]byte
	wavs        map[string][]byte
	maps        map[string]string
	transcripts map[string]string
	fail        error
}

func notFound(what string) error { return &clients.NotFoundError{URL: what} }

func (f *fakeSource) Index(context.Context) (*aikuma.Index, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.ix, nil
}

func (f *fakeSource) Recording(_ context.Context, id string) ([]byte, error) {
	if b, ok := f.wavs[id]; ok {
		return b, nil
	}
	return nil, notFound("recording/" + id)
}

func (f *fakeSource) Shape(_ context.Context, id string) ([]byte, error) {
	if b, ok := f.shapes[id]; ok {
		return b, nil
	}
	return nil, notFound("recording/" + id + "/shapefile")
}

func (f *fakeSource) MapFile(_ context.Context, id string) (string, error) {
	if m, ok := f.maps[id]; ok {
		return m, nil
	}
	return "", notFound("recording/" + id + "/mapfile")
}

func (f *fakeSource) Transcript(_ context.Context, id string) (string, error) {
	if s, ok := f.transcripts[id]; ok {
		return s, nil
	}
	return "", notFound("transcript/" + id)
}

// shapeFile is seconds of constant envelope at 100 frames per second.
func shapeFile(seconds int) []byte {
	const rate = 100
	frames := make([]int8, seconds*rate*2)
	for i := 0; i < len(frames); i += 2 {
		frames[i], frames[i+1] = -20, 20
	}
	return waveform.EncodeShape(waveform.Header{Rate: rate, Channels: 1}, frames)
}

// toneWAV is one second of a 440 Hz sine at 8 kHz.
func toneWAV(t *testing.T) []byte {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(p)
	require.NoError(t, err)
	const rate, total = 8000, 8000
	i := 0
	s := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if i >= total {
			return 0, false
		}
		n := 0
		for ; n < len(samples) && i < total; n, i = n+1, i+1 {
			v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
			samples[n] = [2]float64{v, v}
		}
		return n, true
	})
	require.NoError(t, wav.Encode(f, s, beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}))
	require.NoError(t, f.Close())
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return b
}

func testConfig(t *testing.T) *cfg.Root {
	c := cfg.Default()
	c.Waveform.Width = 100
	c.Waveform.Dur = 10
	c.Lanes.Width = 100
	c.Features = cfg.Features{TimeWindow: 4, Overlap: 2}
	c.Paths.Outputs = t.TempDir()
	return c
}

func testSource() *fakeSource {
	return &fakeSource{
		ix: &aikuma.Index{
			Originals: map[string]aikuma.Recording{
				orig: {UUID: orig, Name: "Story"},
			},
			Commentaries: map[string]aikuma.Recording{
				rspk: {UUID: rspk, Name: "Story respoken", OriginalUUID: orig},
			},
			Speakers: map[string]aikuma.Speaker{},
		},
		shapes:      map[string][]byte{orig: shapeFile(20)},
		wavs:        map[string][]byte{},
		maps:        map[string]string{rspk: storedMap},
		transcripts: map[string]string{orig: storedTranscript},
	}
}

func openSession(t *testing.T) (*Session, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	s := NewSession(testConfig(t), testSource(), log)
	t.Cleanup(s.Close)
	require.NoError(t, s.Open(context.Background(), orig))
	return s, hook
}

// rowAt finds the transcript row starting at offset.
func rowAt(t *testing.T, s *Session, offset float64) datamodel.RowID {
	t.Helper()
	ids := s.Table().Find(func(r datamodel.Row) bool {
		off, _ := r.Float("offset")
		return transcript.IsTranscript(r) && math.Abs(off-offset) < 1e-9
	})
	require.Len(t, ids, 1, "row at %v", offset)
	return ids[0]
}

func spans(doc *transcript.Document) [][2]float64 {
	var out [][2]float64
	for _, s := range doc.Segments {
		out = append(out, [2]float64{s.Offset, s.End()})
	}
	return out
}

func TestOpenLoadsEverything(t *testing.T) {
	s, _ := openSession(t)

	require.NotNil(t, s.Waveform())
	assert.Equal(t, orig, s.Recording())
	assert.Equal(t, 20.0, s.Waveform().Length())
	assert.Equal(t, 10.0, s.Set().WindowDuration())
	assert.Equal(t, 50.0, s.Scrollbar().ThumbWidth())
	assert.Equal(t, 20.0, s.Player().Length())

	assert.Equal(t, []string{"A", "B"}, s.Stack().Speakers())
	assert.Equal(t, 2, s.TextEdit().Len())
	for _, rid := range s.Table().Find(transcript.IsTranscript) {
		wf, ok := s.Table().Row(rid).Int("waveform")
		require.True(t, ok)
		assert.Equal(t, s.Waveform().ID(), wf)
	}

	lanes := s.Lanes()
	require.Len(t, lanes, 1)
	assert.Equal(t, 2, lanes[0].Len())
	chips := lanes[0].Chips()
	require.Len(t, chips, 2)
	assert.Equal(t, 10, chips[0].Left)
	assert.Equal(t, 50, chips[1].Left)

	doc := s.Document()
	assert.Equal(t, "kim", doc.Meta[transcript.MetaUser])
	assert.Equal(t, [][2]float64{{1, 3}, {4, 6}}, spans(doc), "respeaking rows stay out of the transcript")
}

func TestOpenGeneratesMissingShape(t *testing.T) {
	log, hook := test.NewNullLogger()
	src := testSource()
	delete(src.shapes, orig)
	delete(src.transcripts, orig)
	src.wavs[orig] = toneWAV(t)

	s := NewSession(testConfig(t), src, log)
	defer s.Close()
	require.NoError(t, s.Open(context.Background(), orig))

	assert.InDelta(t, 1.0, s.Waveform().Length(), 1e-9)
	assert.Equal(t, 0, s.TextEdit().Len())
	assert.Equal(t, orig, s.Document().OriginalUUID())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "generating") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestOpenErrors(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()

	s := NewSession(testConfig(t), testSource(), log)
	defer s.Close()
	assert.ErrorIs(t, s.Open(ctx, "4b1e2f3a-0000-4000-8000-000000000000"), ErrUnknownRecording)
	assert.ErrorIs(t, s.Open(ctx, rspk), ErrNotOriginal)
	assert.Error(t, s.Open(ctx, "not-a-uuid"))

	src := testSource()
	src.fail = errors.New("index 500 Internal Server Error: boom")
	s2 := NewSession(testConfig(t), src, log)
	defer s2.Close()
	assert.EqualError(t, s2.Open(ctx, orig), "index 500 Internal Server Error: boom")

	src = testSource()
	delete(src.shapes, orig)
	s3 := NewSession(testConfig(t), src, log)
	defer s3.Close()
	var nf *clients.NotFoundError
	assert.ErrorAs(t, s3.Open(ctx, orig), &nf, "no shape and no audio")

	src = testSource()
	src.transcripts[orig] = "x\t1\n"
	s4 := NewSession(testConfig(t), src, log)
	defer s4.Close()
	assert.ErrorContains(t, s4.Open(ctx, orig), "transcript "+orig)
}

func TestBadMapFileIsSkipped(t *testing.T) {
	log, hook := test.NewNullLogger()
	src := testSource()
	src.maps[rspk] = "1,2:x,4"
	s := NewSession(testConfig(t), src, log)
	defer s.Close()
	require.NoError(t, s.Open(context.Background(), orig))
	assert.Empty(t, s.Lanes())
	assert.Equal(t, 2, s.TextEdit().Len())

	var rejected bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["respeaking"] == rspk {
			rejected = true
		}
	}
	assert.True(t, rejected)
}

func TestLoadDocumentBeforeWaveform(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewSession(testConfig(t), nil, log)
	defer s.Close()

	doc, err := transcript.ParseAikuma(strings.NewReader(storedTranscript))
	require.NoError(t, err)
	s.LoadDocument(doc)
	assert.Equal(t, 2, s.TextEdit().Len())
	assert.Empty(t, s.Stack().Speakers(), "rows are not on a waveform yet")

	buf, err := waveform.NewBuffer(shapeFile(20))
	require.NoError(t, err)
	s.Display(buf)
	assert.Equal(t, []string{"A", "B"}, s.Stack().Speakers())
	assert.Error(t, s.Open(context.Background(), orig), "no source")
}

func TestSplitInGapFillsBothSides(t *testing.T) {
	s, _ := openSession(t)
	s.Bus().Publish(event.CursorMoved{Time: 3.5})

	rid, err := s.Split()
	require.NoError(t, err)
	off, _ := s.Table().Row(rid).Float("offset")
	assert.Equal(t, 3.5, off)
	assert.Equal(t, DefaultSpeaker, s.Table().Row(rid).String("speaker"))

	assert.Equal(t, [][2]float64{{1, 3}, {3, 3.5}, {3.5, 4}, {4, 6}}, spans(s.Document()))
	assert.Contains(t, s.Stack().Speakers(), DefaultSpeaker)
	assert.Equal(t, 2, s.Stack().Lane(DefaultSpeaker).Len())
}

func TestSplitAtEndOfRecording(t *testing.T) {
	s, _ := openSession(t)
	s.Bus().Publish(event.CursorMoved{Time: 8})

	_, err := s.Split()
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{1, 3}, {4, 6}, {6, 8}, {8, 20}}, spans(s.Document()))
}

func TestSplitSelectedSegment(t *testing.T) {
	s, _ := openSession(t)
	a := rowAt(t, s, 1)
	require.True(t, s.SelectRow(a))
	s.Bus().Publish(event.CursorMoved{Time: 2})

	rid, err := s.Split()
	require.NoError(t, err)

	assert.Equal(t, [][2]float64{{1, 2}, {2, 3}, {4, 6}}, spans(s.Document()))
	assert.Equal(t, "A", s.Table().Row(rid).String("speaker"))

	sel, selRID := s.Selection()
	assert.Equal(t, rid, selRID)
	assert.Equal(t, event.Span{Offset: 2, Length: 1}, sel)
	assert.Equal(t, rid, s.Waveform().Selection().RID)

	lane := s.Stack().Lane("A")
	assert.Equal(t, 2, lane.Len())
	chips := lane.Chips()
	require.Len(t, chips, 2)
	assert.Equal(t, 10, chips[0].Width)
	assert.True(t, chips[1].Selected)
	focus, ok := s.TextEdit().Focused()
	assert.True(t, ok)
	assert.Equal(t, rid, focus)
}

func TestSplitRefusals(t *testing.T) {
	log, _ := test.NewNullLogger()
	empty := NewSession(testConfig(t), nil, log)
	defer empty.Close()
	_, err := empty.Split()
	assert.ErrorIs(t, err, ErrNoWaveform)

	s, _ := openSession(t)
	_, err = s.Split()
	assert.ErrorIs(t, err, ErrNoCursor)

	s.Bus().Publish(event.CursorMoved{Time: 2})
	_, err = s.Split()
	assert.ErrorIs(t, err, ErrNotSplittable)
	assert.Equal(t, 2, s.TextEdit().Len())
}

func TestMergePrevious(t *testing.T) {
	s, _ := openSession(t)
	a, b := rowAt(t, s, 1), rowAt(t, s, 4)
	require.True(t, s.SelectRow(b))

	rid, err := s.MergePrevious()
	require.NoError(t, err)
	assert.Equal(t, a, rid)
	assert.False(t, s.Table().Has(b))

	doc := s.Document()
	require.Len(t, doc.Segments, 1)
	assert.Equal(t, transcript.Segment{Offset: 1, Length: 5, Speaker: "A", Transcript: "hello yes", Translation: "salut oui"}, doc.Segments[0])

	_, selRID := s.Selection()
	assert.Equal(t, a, selRID)
	assert.Equal(t, 0, s.Stack().Lane("B").Len())

	_, err = s.MergePrevious()
	assert.ErrorIs(t, err, ErrNoPrevious)
}

func TestMergeNeedsSelection(t *testing.T) {
	s, _ := openSession(t)
	_, err := s.MergePrevious()
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestCreateFromSelection(t *testing.T) {
	s, _ := openSession(t)

	s.Bus().Publish(event.RegionChanged{Beg: 7, Dur: 0, Waveform: s.Waveform().ID()})
	_, err := s.CreateFromSelection()
	assert.ErrorIs(t, err, ErrEmptySelection)

	s.Bus().Publish(event.RegionChanged{Beg: 7, Dur: 2, Waveform: s.Waveform().ID()})
	rid, err := s.CreateFromSelection()
	require.NoError(t, err)
	assert.True(t, s.Table().Has(rid))
	assert.Equal(t, [][2]float64{{1, 3}, {4, 6}, {7, 9}}, spans(s.Document()))

	require.True(t, s.SelectRow(rid))
	_, err = s.CreateFromSelection()
	assert.ErrorIs(t, err, ErrRowSelected)
}

func TestRemoveSelected(t *testing.T) {
	s, _ := openSession(t)
	_, err := s.RemoveSelected()
	assert.ErrorIs(t, err, ErrNoSelection)

	a := rowAt(t, s, 1)
	require.True(t, s.SelectRow(a))
	require.True(t, s.Waveform().Selection().Linked())

	rid, err := s.RemoveSelected()
	require.NoError(t, err)
	assert.Equal(t, a, rid)
	assert.False(t, s.Table().Has(a))
	assert.False(t, s.Waveform().Selection().Linked())
	assert.Equal(t, 0, s.Stack().Lane("A").Len())
	assert.Equal(t, 1, s.TextEdit().Len())

	sel, selRID := s.Selection()
	assert.Equal(t, datamodel.NoRow, selRID)
	assert.Equal(t, event.Span{Offset: 1, Length: 2}, sel)
}

func TestRowDeletedElsewhereClearsSelection(t *testing.T) {
	s, _ := openSession(t)
	a := rowAt(t, s, 1)
	require.True(t, s.SelectRow(a))
	s.Bus().Publish(event.RowDeleted{RID: a})
	_, selRID := s.Selection()
	assert.Equal(t, datamodel.NoRow, selRID)
}

func TestResizedSelectionFollowsRow(t *testing.T) {
	s, _ := openSession(t)
	a := rowAt(t, s, 1)
	require.True(t, s.SelectRow(a))
	s.Bus().Publish(event.RowUpdated{RID: a, Update: map[string]any{"length": 2.5}})
	sel, _ := s.Selection()
	assert.Equal(t, event.Span{Offset: 1, Length: 2.5}, sel)
}

func TestEditGoesThroughBus(t *testing.T) {
	s, _ := openSession(t)
	a := rowAt(t, s, 1)
	require.True(t, s.Edit(a, "transcript", "hello again"))
	assert.Equal(t, "hello again", s.Table().Row(a).String("transcript"))
	assert.False(t, s.Edit(a, "offset", "3"))
}

func TestRespeakingChipSelectsMappedSpan(t *testing.T) {
	s, _ := openSession(t)
	lane := s.Lanes()[0]
	require.True(t, lane.Click(15))

	mapped, id := s.RespeakingSelection()
	assert.Equal(t, lane.ID(), id)
	assert.Equal(t, event.Span{Offset: 0, Length: 0.5}, mapped)

	sel, selRID := s.Selection()
	assert.Equal(t, datamodel.NoRow, selRID)
	assert.Equal(t, event.Span{Offset: 1, Length: 1}, sel)
}

func TestPlaybackMovesCursorAndWindow(t *testing.T) {
	s, _ := openSession(t)
	s.Bus().Publish(event.RegionChanged{Beg: 15, Dur: 2, Waveform: s.Waveform().ID()})
	s.Play()

	cur, ok := s.Cursor()
	require.True(t, ok)
	assert.Equal(t, 15.0, cur)
	assert.Equal(t, 10.0, s.Set().WindowStart())
	assert.Equal(t, 10.0, s.Waveform().WindowStart())
	beg, _ := s.Stack().Lane("A").Window()
	assert.Equal(t, 10.0, beg)

	s.Player().Advance(5)
	assert.False(t, s.Player().Playing())
	assert.Equal(t, 15.0, s.Player().Position(), "stop returns to the span start")
}

func TestClearSwimlanes(t *testing.T) {
	s, _ := openSession(t)
	s.ClearSwimlanes()
	assert.Empty(t, s.Lanes())
	assert.Equal(t, 2, s.Table().Len())
}

func TestSave(t *testing.T) {
	s, _ := openSession(t)
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	dir, err := s.Save(now)
	require.NoError(t, err)
	assert.Equal(t, "session_20240301-093000", filepath.Base(dir))

	f, err := os.Open(filepath.Join(dir, AikumaFile))
	require.NoError(t, err)
	defer f.Close()
	doc, err := transcript.ParseAikuma(f)
	require.NoError(t, err)
	assert.Equal(t, s.Document().Segments, doc.Segments)
	assert.Equal(t, orig, doc.OriginalUUID())

	eaf, err := os.Open(filepath.Join(dir, EAFFile))
	require.NoError(t, err)
	defer eaf.Close()
	fromEAF, err := transcript.ParseEAF(eaf)
	require.NoError(t, err)
	assert.Len(t, fromEAF.Segments, 2)

	md, err := os.ReadFile(filepath.Join(dir, MarkdownFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "hello")

	var st Stats
	raw, err := os.ReadFile(filepath.Join(dir, StatsFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, 2, st.Segments)

	var bundle PersistBundle
	raw, err = os.ReadFile(filepath.Join(dir, BundleFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Equal(t, "session_20240301-093000", bundle.SessionID)
	assert.Equal(t, orig, bundle.Recording)
	assert.Equal(t, []string{"A", "B"}, bundle.Speakers)
}
