package transcript

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

var cell = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\t", " ")

// WriteMarkdown writes doc as a markdown table.
func WriteMarkdown(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	title := "Transcript"
	if id := doc.OriginalUUID(); id != "" {
		title += " " + id
	}
	fmt.Fprintf(bw, "# %s\n\n", title)
	if u := doc.Meta[MetaUser]; u != "" {
		fmt.Fprintf(bw, "Transcribed by %s.\n\n", cell.Replace(u))
	}
	bw.WriteString("| start | end | speaker | transcript | translation |\n")
	bw.WriteString("|---:|---:|---|---|---|\n")
	for _, s := range doc.Segments {
		fmt.Fprintf(bw, "| %s | %s | %s | %s | %s |\n",
			seconds(s.Offset), seconds(s.End()),
			cell.Replace(s.Speaker), cell.Replace(s.Transcript), cell.Replace(s.Translation))
	}
	return bw.Flush()
}
