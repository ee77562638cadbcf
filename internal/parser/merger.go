package parser

import (
	"sort"
	"strings"
)

// Corpus is the merged, line-split text of several log files.
type Corpus struct {
	Lines []string
	// Files lists the merged file names in corpus order.
	Files []string
	// FileStarts[i] is the index of the first line of Files[i].
	FileStarts []int
}

// MergeSources concatenates files ordered by the timestamp of their first
// parseable line. The sort is stable, so files sharing a timestamp (including
// files with none, which sort as 0) keep their input order.
func MergeSources(files []*SourceFile) *Corpus {
	ordered := make([]*SourceFile, 0, len(files))
	for _, f := range files {
		if f != nil {
			ordered = append(ordered, f)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FirstTimestamp < ordered[j].FirstTimestamp
	})

	c := &Corpus{
		Files:      make([]string, 0, len(ordered)),
		FileStarts: make([]int, 0, len(ordered)),
	}
	texts := make([]string, 0, len(ordered))
	for _, f := range ordered {
		c.Files = append(c.Files, f.Name)
		texts = append(texts, f.Text)
	}
	if len(texts) == 0 {
		return c
	}

	c.Lines = strings.Split(strings.Join(texts, "\n"), "\n")

	start := 0
	for _, t := range texts {
		c.FileStarts = append(c.FileStarts, start)
		start += strings.Count(t, "\n") + 1
	}
	return c
}

// FileOf returns the index into Files of the file holding line.
func (c *Corpus) FileOf(line int) int {
	i := sort.SearchInts(c.FileStarts, line+1) - 1
	if i < 0 {
		return 0
	}
	return i
}
