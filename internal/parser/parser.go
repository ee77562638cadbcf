package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ProgressCallback is called periodically while reading or indexing.
type ProgressCallback func(linesProcessed int, bytesProcessed int64, totalBytes int64)

// SourceFile is one uploaded log file read into memory.
type SourceFile struct {
	ID   string
	Name string
	Text string
	// FirstTimestamp is the UTC ms of the first parseable line, 0 if none.
	FirstTimestamp int64
}

// maxLineBytes bounds a single log line.
const maxLineBytes = 4 * 1024 * 1024

// ReadSourceFile reads a log file from disk.
func ReadSourceFile(id, path string, onProgress ProgressCallback) (*SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var total int64
	if st, err := f.Stat(); err == nil {
		total = st.Size()
	}
	sf, err := ReadSource(id, path, f, total, onProgress)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return sf, nil
}

// ReadSource reads a log stream, reporting progress every 10000 lines.
func ReadSource(id, name string, r io.Reader, totalBytes int64, onProgress ProgressCallback) (*SourceFile, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var b strings.Builder
	if totalBytes > 0 {
		b.Grow(int(totalBytes))
	}
	var (
		lines int
		read  int64
		first int64
	)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if lines > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		lines++
		read += int64(len(line)) + 1
		if first == 0 {
			if ts, ok := ParseTimestamp(line); ok {
				first = ts
			}
		}
		if onProgress != nil && lines%10000 == 0 {
			onProgress(lines, read, totalBytes)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(lines, read, totalBytes)
	}
	return &SourceFile{ID: id, Name: name, Text: b.String(), FirstTimestamp: first}, nil
}

// NewSourceFromText wraps in-memory text, e.g. for tests and the CLI.
func NewSourceFromText(id, name, text string) *SourceFile {
	sf := &SourceFile{ID: id, Name: name, Text: text}
	for _, line := range strings.Split(text, "\n") {
		if ts, ok := ParseTimestamp(line); ok {
			sf.FirstTimestamp = ts
			break
		}
	}
	return sf
}

func atoiTrim(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseIntLoose(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	// JS parseInt semantics: leading digits only
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloatTrim(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
