package orchestrator

import (
	"math"
	"sort"

	cfg "github.com/langtech/transcriber/config"
	"github.com/langtech/transcriber/transcript"
)

func utterances(doc *transcript.Document) []Utterance {
	utts := make([]Utterance, 0, len(doc.Segments))
	for _, s := range doc.Segments {
		utts = append(utts, Utterance{Start: s.Offset, End: s.End(), Text: s.Transcript, Spk: s.Speaker})
	}
	sort.SliceStable(utts, func(i, j int) bool { return utts[i].Start < utts[j].Start })
	return utts
}

func bounds(utts []Utterance) (start, end float64) {
	start = utts[0].Start
	for _, u := range utts {
		end = math.Max(end, u.End)
	}
	return start, end
}

func window(utts []Utterance, size, overlap float64) []Window {
	if len(utts) == 0 || size <= 0 {
		return nil
	}
	start, end := bounds(utts)
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var out []Window
	for t0 := start; t0 < end; t0 += step {
		t1 := math.Min(t0+size, end)
		var slice []Utterance
		for _, u := range utts {
			if u.End <= t0 || u.Start >= t1 {
				continue
			}
			slice = append(slice, u)
		}
		out = append(out, Window{T0: t0, T1: t1, Utts: slice, Segments: len(slice)})
	}
	return out
}

// aggregate fills the speaking time, share and overlap of w from the parts
// of its utterances that fall inside [T0, T1].
func aggregate(w *Window) {
	if len(w.Utts) == 0 {
		return
	}
	total := 0.0
	w.SpeakingTime = map[string]float64{}
	w.SpeakingShare = map[string]float64{}
	type edge struct {
		t     float64
		delta int
	}
	var edges []edge
	for _, u := range w.Utts {
		a := math.Max(u.Start, w.T0)
		b := math.Min(u.End, w.T1)
		d := math.Max(0, b-a)
		total += d
		w.SpeakingTime[u.Spk] += d
		edges = append(edges, edge{t: a, delta: +1}, edge{t: math.Max(a, b), delta: -1})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].t < edges[j].t })
	active := 0
	last := edges[0].t
	overlap := 0.0
	for _, e := range edges {
		if active > 1 {
			overlap += e.t - last
		}
		active += e.delta
		last = e.t
	}
	if total > 0 {
		for k, v := range w.SpeakingTime {
			w.SpeakingShare[k] = v / total
		}
	}
	winDur := w.T1 - w.T0
	if winDur > 0 {
		w.OverlapRate = overlap / winDur
	}
}

// ComputeStats measures speaking time, speaking share and overlap per
// speaker over the whole transcript and over sliding windows of
// f.TimeWindow seconds overlapping by f.Overlap.
func ComputeStats(doc *transcript.Document, f cfg.Features) Stats {
	utts := utterances(doc)
	st := Stats{
		Segments:      len(utts),
		SpeakingTime:  map[string]float64{},
		SpeakingShare: map[string]float64{},
	}
	if len(utts) == 0 {
		return st
	}
	start, end := bounds(utts)
	all := Window{T0: start, T1: end, Utts: utts}
	aggregate(&all)
	st.Span = end - start
	for k, v := range all.SpeakingTime {
		st.SpeakingTime[k] = v
		st.Speech += v
	}
	for k, v := range all.SpeakingShare {
		st.SpeakingShare[k] = v
	}
	st.OverlapRate = all.OverlapRate

	st.Windows = window(utts, float64(f.TimeWindow), float64(f.Overlap))
	for i := range st.Windows {
		aggregate(&st.Windows[i])
	}
	return st
}
