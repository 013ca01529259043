package genai

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Summary counts the files and lines touched by a diff
type Summary struct {
	Files   int
	Added   int
	Deleted int
}

// Summarize parses a unified diff; unparsable input yields a zero Summary
func Summarize(d string) Summary {
	files, err := diff.ParseMultiFileDiff([]byte(d))
	if err != nil {
		return Summary{}
	}
	var s Summary
	for _, fd := range files {
		st := fd.Stat()
		s.Files++
		s.Added += int(st.Added + st.Changed)
		s.Deleted += int(st.Deleted + st.Changed)
	}
	return s
}

// TrimDiff keeps whole file sections while they fit in max bytes and lists
// the names of the files that did not fit.
func TrimDiff(d string, max int) string {
	if max <= 0 || len(d) <= max {
		return d
	}

	files, err := diff.ParseMultiFileDiff([]byte(d))
	if err != nil || len(files) == 0 {
		return d[:max]
	}

	var b strings.Builder
	var omitted []string
	for _, fd := range files {
		section, err := diff.PrintFileDiff(fd)
		if err != nil || b.Len()+len(section) > max {
			omitted = append(omitted, fileName(fd))
			continue
		}
		b.Write(section)
	}
	if len(omitted) > 0 {
		fmt.Fprintf(&b, "\n(%d more changed files omitted: %s)\n", len(omitted), strings.Join(omitted, ", "))
	}
	return b.String()
}

func fileName(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "b/")
	return strings.TrimPrefix(name, "a/")
}
