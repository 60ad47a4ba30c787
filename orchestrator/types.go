package orchestrator

// Columns of the session table. Transcript rows leave swimlane, mapoff
// and maplen nil; respeaking rows leave waveform nil.
var Columns = []string{
	"waveform",
	"offset",
	"length",
	"speaker",
	"transcript",
	"translation",
	"swimlane",
	"mapoff",
	"maplen",
}

// DefaultSpeaker names the speaker of segments created by editing.
const DefaultSpeaker = "speaker"

type Utterance struct {
	Start float64 // sec
	End   float64 // sec
	Text  string
	Spk   string
}

type Window struct {
	T0       float64     `json:"t0"`
	T1       float64     `json:"t1"`
	Utts     []Utterance `json:"-"`
	Segments int         `json:"segments"`
	// Aggregates
	SpeakingTime  map[string]float64 `json:"speaking_time,omitempty"`  // sec per speaker
	SpeakingShare map[string]float64 `json:"speaking_share,omitempty"` // fraction of speech
	OverlapRate   float64            `json:"overlap_rate"`
}

// Stats summarises the speech of a transcript.
type Stats struct {
	Segments      int                `json:"segments"`
	Span          float64            `json:"span_seconds"`
	Speech        float64            `json:"speech_seconds"`
	SpeakingTime  map[string]float64 `json:"speaking_time"`
	SpeakingShare map[string]float64 `json:"speaking_share"`
	OverlapRate   float64            `json:"overlap_rate"`
	Windows       []Window           `json:"windows,omitempty"`
}
