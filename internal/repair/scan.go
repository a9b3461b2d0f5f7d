package repair

import "strings"

// sanitize drops control characters and // line comments outside strings.
// Raw newlines, carriage returns and tabs inside strings become escapes so
// their text survives; other control characters are removed.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				b.WriteString(`\n`)
				continue
			case c == '\r':
				b.WriteString(`\r`)
				continue
			case c == '\t':
				b.WriteString(`\t`)
				continue
			case c < 0x20:
				continue
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '"':
			inString = true
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		case c < 0x20 && c != '\n' && c != '\r' && c != '\t':
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stripTrailingCommas removes commas outside strings that are followed only by
// whitespace and then a closer or the end of the text.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j == len(s) || s[j] == '}' || s[j] == ']' {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// frame is one open bracket on the scanner's stack.
type frame struct {
	open byte
	// safe is the end offset of the last complete member of this container,
	// or the offset just past the opener when no member has completed yet.
	safe int
	// afterColon is set inside objects between a key's colon and the next comma.
	afterColon bool
}

// trimIncomplete scans s tracking string/escape state and the bracket stack.
// If the root value closes, the text up to that point is returned with no open
// frames. Otherwise the text is cut back to the last complete element and the
// frames still open at the cut are returned, outermost first.
//
// An incomplete non-root object is dropped whole; an incomplete array is kept
// with its complete elements. A trailing scalar is only complete once a comma
// or closer follows it, so a number cut mid-digits never survives.
func trimIncomplete(s string) (string, []frame, error) {
	var stack []frame
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				if n := len(stack); n > 0 {
					top := &stack[n-1]
					if top.open == '[' || top.afterColon {
						top.safe = i + 1
					}
				}
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, frame{open: c, safe: i + 1})
		case '}', ']':
			n := len(stack)
			if n == 0 || closerFor(stack[n-1].open) != c {
				return "", nil, ErrUnbalanced
			}
			stack = stack[:n-1]
			if n == 1 {
				return s[:i+1], nil, nil
			}
			stack[n-2].safe = i + 1
		case ',':
			if n := len(stack); n > 0 {
				stack[n-1].safe = i
				stack[n-1].afterColon = false
			}
		case ':':
			if n := len(stack); n > 0 {
				stack[n-1].afterColon = true
			}
		}
	}

	if len(stack) == 0 {
		return s, nil, nil
	}

	// Cut inside the parent of the outermost open non-root object; with no such
	// object, keep every open array and cut at the innermost one.
	for j := 1; j < len(stack); j++ {
		if stack[j].open == '{' {
			return s[:stack[j-1].safe], stack[:j], nil
		}
	}
	k := len(stack) - 1
	return s[:stack[k].safe], stack, nil
}

// closers returns the closing brackets for open, innermost first.
func closers(open []frame) string {
	var b strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteByte(closerFor(open[i].open))
	}
	return b.String()
}

func closerFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
