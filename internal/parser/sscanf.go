package parser

import "strings"

// Wildcard is the capture token in marker patterns.
const Wildcard = "%%"

// Match extracts the wildcard captures of template from line.
//
// The first literal may occur anywhere in the line, which skips variable
// timestamp and tag prefixes. Every later literal must follow immediately.
// A wildcard captures up to the nearest occurrence of the character that
// follows it in the template, or the rest of the line when it is last.
// A template without wildcards matches by containment.
func Match(line, template string) ([]string, bool) {
	s := strings.TrimSpace(line)
	format := template
	first := true
	captures := make([]string, 0, strings.Count(template, Wildcard))

	for {
		next := strings.Index(format, Wildcard)
		if next < 0 {
			if first {
				return captures, strings.Contains(s, format)
			}
			return captures, strings.HasPrefix(s, format)
		}
		delim := format[:next]
		if first {
			at := strings.Index(s, delim)
			if at < 0 {
				return nil, false
			}
			s = s[at:]
			first = false
		}
		if !strings.HasPrefix(s, delim) {
			return nil, false
		}
		s = s[len(delim):]
		format = format[next+len(Wildcard):]

		if format == "" {
			captures = append(captures, s)
			continue
		}
		end := strings.IndexByte(s, format[0])
		if end < 0 {
			captures = append(captures, s)
			s = ""
			continue
		}
		captures = append(captures, s[:end])
		s = s[end:]
	}
}

// ExpandLabel substitutes %0..%9 in label with captured groups.
// A reference to a missing group expands to "".
func ExpandLabel(label string, captures []string) string {
	if !strings.Contains(label, "%") {
		return label
	}
	var b strings.Builder
	b.Grow(len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c == '%' && i+1 < len(label) && label[i+1] >= '0' && label[i+1] <= '9' {
			idx := int(label[i+1] - '0')
			if idx < len(captures) {
				b.WriteString(captures[idx])
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
