package transcript

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ParseAikuma reads an Aikuma transcript: ";; key value" header lines,
// then start, end, speaker, transcript and translation separated by tabs,
// up to the first blank line.
func ParseAikuma(r io.Reader) (*Document, error) {
	doc := &Document{Meta: map[string]string{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	header := true
	for sc.Scan() {
		n++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if header && strings.HasPrefix(line, ";;") {
			f := strings.Split(line, " ")
			if len(f) > 1 {
				doc.Meta[f[1]] = strings.Join(f[2:], " ")
			}
			continue
		}
		header = false
		if strings.TrimSpace(line) == "" {
			break
		}
		seg, err := parseAikumaLine(line)
		if err != nil {
			return nil, fmt.Errorf("aikuma line %d: %w", n, err)
		}
		if err := validate.Struct(seg); err != nil {
			return nil, fmt.Errorf("aikuma line %d: %w", n, err)
		}
		doc.Segments = append(doc.Segments, seg)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("aikuma read: %w", err)
	}
	return doc, nil
}

func parseAikumaLine(line string) (Segment, error) {
	f := strings.Split(line, "\t")
	if len(f) < 2 {
		return Segment{}, fmt.Errorf("expected start and end, got %q", line)
	}
	beg, err := strconv.ParseFloat(strings.TrimSpace(f[0]), 64)
	if err != nil {
		return Segment{}, fmt.Errorf("start: %w", err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(f[1]), 64)
	if err != nil {
		return Segment{}, fmt.Errorf("end: %w", err)
	}
	field := func(i int) string {
		if i < len(f) {
			return f[i]
		}
		return ""
	}
	return Segment{
		Offset:      beg,
		Length:      end - beg,
		Speaker:     field(2),
		Transcript:  field(3),
		Translation: field(4),
	}, nil
}

var flatten = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

// WriteAikuma writes doc in the format read by ParseAikuma. The user and
// original_uuid keys come first, other meta keys follow sorted.
func WriteAikuma(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	var keys []string
	for k := range doc.Meta {
		if k != MetaUser && k != MetaOriginalUUID {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range append([]string{MetaUser, MetaOriginalUUID}, keys...) {
		if v, ok := doc.Meta[k]; ok {
			fmt.Fprintf(bw, ";; %s %s\n", k, flatten.Replace(v))
		}
	}
	for _, s := range doc.Segments {
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\n",
			seconds(s.Offset), seconds(s.End()),
			flatten.Replace(s.Speaker), flatten.Replace(s.Transcript), flatten.Replace(s.Translation))
	}
	return bw.Flush()
}
