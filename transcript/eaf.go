package transcript

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EAF vocabulary used by the transcriber.
const (
	EAFVersion        = "2.7"
	TranscriptionTier = "transcription"
	TranslationTier   = "translation"
	DefaultType       = "default-lt"
	TranslationType   = "translation-lt"
)

type eafDocument struct {
	XMLName     xml.Name        `xml:"ANNOTATION_DOCUMENT"`
	Author      string          `xml:"AUTHOR,attr"`
	Date        string          `xml:"DATE,attr"`
	Format      string          `xml:"FORMAT,attr"`
	Version     string          `xml:"VERSION,attr"`
	XSI         string          `xml:"xmlns:xsi,attr,omitempty"`
	Schema      string          `xml:"xsi:noNamespaceSchemaLocation,attr,omitempty"`
	Header      eafHeader       `xml:"HEADER"`
	TimeOrder   eafTimeOrder    `xml:"TIME_ORDER"`
	Tiers       []eafTier       `xml:"TIER"`
	Types       []eafType       `xml:"LINGUISTIC_TYPE"`
	Constraints []eafConstraint `xml:"CONSTRAINT"`
}

type eafHeader struct {
	MediaFile string     `xml:"MEDIA_FILE,attr"`
	TimeUnits string     `xml:"TIME_UNITS,attr"`
	Media     []eafMedia `xml:"MEDIA_DESCRIPTOR"`
}

type eafMedia struct {
	URL      string `xml:"MEDIA_URL,attr"`
	MimeType string `xml:"MIME_TYPE,attr"`
}

type eafTimeOrder struct {
	Slots []eafSlot `xml:"TIME_SLOT"`
}

type eafSlot struct {
	ID    string `xml:"TIME_SLOT_ID,attr"`
	Value string `xml:"TIME_VALUE,attr,omitempty"`
}

type eafTier struct {
	Annotator   string          `xml:"ANNOTATOR,attr"`
	Type        string          `xml:"LINGUISTIC_TYPE_REF,attr"`
	Parent      string          `xml:"PARENT_REF,attr,omitempty"`
	Participant string          `xml:"PARTICIPANT,attr,omitempty"`
	ID          string          `xml:"TIER_ID,attr"`
	Annotations []eafAnnotation `xml:"ANNOTATION"`
}

type eafAnnotation struct {
	Alignable *eafAlignable `xml:"ALIGNABLE_ANNOTATION"`
	Ref       *eafRef       `xml:"REF_ANNOTATION"`
}

type eafAlignable struct {
	ID    string `xml:"ANNOTATION_ID,attr"`
	Slot1 string `xml:"TIME_SLOT_REF1,attr"`
	Slot2 string `xml:"TIME_SLOT_REF2,attr"`
	Value string `xml:"ANNOTATION_VALUE"`
}

type eafRef struct {
	ID    string `xml:"ANNOTATION_ID,attr"`
	Ref   string `xml:"ANNOTATION_REF,attr"`
	Value string `xml:"ANNOTATION_VALUE"`
}

type eafType struct {
	Constraints   string `xml:"CONSTRAINTS,attr,omitempty"`
	Graphic       string `xml:"GRAPHIC_REFERENCES,attr"`
	ID            string `xml:"LINGUISTIC_TYPE_ID,attr"`
	TimeAlignable string `xml:"TIME_ALIGNABLE,attr"`
}

type eafConstraint struct {
	Description string `xml:"DESCRIPTION,attr"`
	Stereotype  string `xml:"STEREOTYPE,attr"`
}

var mediaUUID = regexp.MustCompile(`(?i)(?:.*/)?([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})(?:\.[^/]*)?`)

// ParseEAF reads the transcription tiers of an EAF document together with
// the translation tiers that depend on them. The recording uuid is taken
// from the first media URL.
func ParseEAF(r io.Reader) (*Document, error) {
	var x eafDocument
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("eaf decode: %w", err)
	}
	doc := &Document{Meta: map[string]string{}}
	if len(x.Header.Media) > 0 {
		doc.Meta[MetaOriginalUUID] = mediaID(x.Header.Media[0].URL)
	}

	slots := make(map[string]string, len(x.TimeOrder.Slots))
	for _, s := range x.TimeOrder.Slots {
		slots[s.ID] = s.Value
	}
	ms := func(id string) (float64, error) {
		v, ok := slots[id]
		if !ok {
			return 0, fmt.Errorf("unknown time slot %q", id)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("time slot %q: %w", id, err)
		}
		return float64(n) / 1000, nil
	}

	for _, tier := range x.Tiers {
		if !strings.HasPrefix(tier.ID, TranscriptionTier) {
			continue
		}
		trans := translations(x.Tiers, tier.ID)
		for _, a := range tier.Annotations {
			al := a.Alignable
			if al == nil {
				continue
			}
			t1, err := ms(al.Slot1)
			if err != nil {
				return nil, fmt.Errorf("eaf annotation %s: %w", al.ID, err)
			}
			t2, err := ms(al.Slot2)
			if err != nil {
				return nil, fmt.Errorf("eaf annotation %s: %w", al.ID, err)
			}
			seg := Segment{
				Offset:      t1,
				Length:      t2 - t1,
				Speaker:     tier.Participant,
				Transcript:  al.Value,
				Translation: trans[al.ID],
			}
			if err := validate.Struct(seg); err != nil {
				return nil, fmt.Errorf("eaf annotation %s: %w", al.ID, err)
			}
			doc.Segments = append(doc.Segments, seg)
		}
	}
	return doc, nil
}

func mediaID(url string) string {
	if m := mediaUUID.FindStringSubmatch(url); m != nil {
		if id, err := uuid.Parse(m[1]); err == nil {
			return id.String()
		}
	}
	return url
}

// translations maps annotation ids of parent to their translation text.
func translations(tiers []eafTier, parent string) map[string]string {
	out := map[string]string{}
	for _, t := range tiers {
		if t.Type != TranslationType || t.Parent != parent {
			continue
		}
		for _, a := range t.Annotations {
			if a.Ref != nil {
				out[a.Ref.Ref] = a.Ref.Value
			}
		}
		break
	}
	return out
}

var eafConstraints = []eafConstraint{
	{"Time subdivision of parent annotation's time interval, no time gaps allowed within this interval", "Time_Subdivision"},
	{"Symbolic subdivision of a parent annotation. Annotations refering to the same parent are ordered", "Symbolic_Subdivision"},
	{"1-1 association with a parent annotation", "Symbolic_Association"},
	{"Time alignable annotations within the parent annotation's time interval, gaps are allowed", "Included_In"},
}

// WriteEAF writes doc as an EAF 2.7 document with one transcription tier
// and one dependent translation tier per speaker.
func WriteEAF(w io.Writer, doc *Document, now time.Time) error {
	x := eafDocument{
		Date:    now.UTC().Format(time.RFC3339),
		Format:  EAFVersion,
		Version: EAFVersion,
		XSI:     "http://www.w3.org/2001/XMLSchema-instance",
		Schema:  "http://www.mpi.nl/tools/elan/EAFv2.7.xsd",
		Header: eafHeader{
			TimeUnits: "milliseconds",
			Media:     []eafMedia{{URL: doc.OriginalUUID(), MimeType: "audio/x-wav"}},
		},
		Types: []eafType{
			{Graphic: "false", ID: DefaultType, TimeAlignable: "true"},
			{Constraints: "Symbolic_Association", Graphic: "false", ID: TranslationType, TimeAlignable: "false"},
		},
		Constraints: eafConstraints,
	}

	slotIDs := map[int64]string{}
	slot := func(t float64) string {
		ms := int64(math.Round(t * 1000))
		if id, ok := slotIDs[ms]; ok {
			return id
		}
		id := "ts" + strconv.Itoa(len(slotIDs)+1)
		slotIDs[ms] = id
		return id
	}

	type pair struct{ trs, trn *eafTier }
	var order []string
	tiers := map[string]*pair{}
	ann := 0
	for _, s := range doc.Segments {
		p, ok := tiers[s.Speaker]
		if !ok {
			n := strconv.Itoa(len(order) + 1)
			p = &pair{
				trs: &eafTier{Type: DefaultType, Participant: s.Speaker, ID: TranscriptionTier + "-" + n},
				trn: &eafTier{Type: TranslationType, Parent: TranscriptionTier + "-" + n, ID: TranslationTier + "-" + n},
			}
			tiers[s.Speaker] = p
			order = append(order, s.Speaker)
		}
		a1 := "a" + strconv.Itoa(ann+1)
		a2 := "a" + strconv.Itoa(ann+2)
		ann += 2
		p.trs.Annotations = append(p.trs.Annotations, eafAnnotation{
			Alignable: &eafAlignable{ID: a1, Slot1: slot(s.Offset), Slot2: slot(s.End()), Value: s.Transcript},
		})
		p.trn.Annotations = append(p.trn.Annotations, eafAnnotation{
			Ref: &eafRef{ID: a2, Ref: a1, Value: s.Translation},
		})
	}

	times := make([]int64, 0, len(slotIDs))
	for ms := range slotIDs {
		times = append(times, ms)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	for _, ms := range times {
		x.TimeOrder.Slots = append(x.TimeOrder.Slots, eafSlot{ID: slotIDs[ms], Value: strconv.FormatInt(ms, 10)})
	}
	for _, sp := range order {
		x.Tiers = append(x.Tiers, *tiers[sp].trs, *tiers[sp].trn)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(x); err != nil {
		return fmt.Errorf("eaf encode: %w", err)
	}
	return enc.Flush()
}
