package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MapRate is the sample rate of the indices in a respeaking map file.
const MapRate = 16000

// Mapping ties a span of the original recording to the span of a
// respeaking that comments on it.
type Mapping struct {
	Offset    float64
	Length    float64
	MapOffset float64
	MapLength float64
}

var mapSep = regexp.MustCompile(`[,:]`)

// ParseMap reads a map file made of whitespace separated "a,b:c,d" entries,
// where a..b indexes the original and c..d the respeaking. Entries that do
// not have four parts are skipped.
func ParseMap(text string) ([]Mapping, error) {
	var out []Mapping
	for _, entry := range strings.Fields(text) {
		parts := mapSep.Split(entry, -1)
		if len(parts) != 4 {
			continue
		}
		var n [4]int64
		for i, p := range parts {
			v, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("map entry %q: %w", entry, err)
			}
			n[i] = v
		}
		out = append(out, Mapping{
			Offset:    float64(n[0]) / MapRate,
			Length:    float64(n[1]-n[0]) / MapRate,
			MapOffset: float64(n[2]) / MapRate,
			MapLength: float64(n[3]-n[2]) / MapRate,
		})
	}
	return out, nil
}
