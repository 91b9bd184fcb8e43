package minify

import "strings"

// regexAllowedBefore is the set of tokens after which a leading `/` is
// parsed as the start of a regex literal rather than division.
var regexAllowedBefore = map[byte]bool{
	'(': true, '=': true, ':': true, ',': true, '?': true, '!': true,
	'&': true, '|': true, '^': true, '%': true, '+': true, '-': true,
	'~': true, '{': true, '}': true, '[': true, ';': true,
}

// JS strips comments and collapses whitespace while preserving string and
// regex literals verbatim, including escape sequences.
func JS(src []byte) []byte {
	s := string(src)

	var out strings.Builder
	out.Grow(len(s))

	lastSignificant := byte(0)
	pendingSpace := false

	i := 0
	for i < len(s) {
		ch := s[i]

		switch {
		case ch == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}

			pendingSpace = true

			continue

		case ch == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)

				continue
			}

			i += 2 + end + 2
			pendingSpace = true

			continue

		case ch == '\'' || ch == '"' || ch == '`':
			lit, newI := scanStringLiteral(s, i)
			flushPendingSpace(&out, &pendingSpace, lastSignificant, lit[0])
			out.WriteString(lit)
			i = newI
			lastSignificant = lit[len(lit)-1]

			continue

		case ch == '/' && (regexAllowedBefore[lastSignificant] || lastSignificant == 0):
			lit, newI, ok := scanRegexLiteral(s, i)
			if ok {
				flushPendingSpace(&out, &pendingSpace, lastSignificant, '/')
				out.WriteString(lit)
				i = newI
				lastSignificant = '/'

				continue
			}

			flushPendingSpace(&out, &pendingSpace, lastSignificant, ch)
			out.WriteByte(ch)
			lastSignificant = ch
			i++

			continue

		case isSpace(ch):
			pendingSpace = true
			i++

			continue

		default:
			flushPendingSpace(&out, &pendingSpace, lastSignificant, ch)
			out.WriteByte(ch)
			lastSignificant = ch
			i++
		}
	}

	return []byte(out.String())
}

func flushPendingSpace(out *strings.Builder, pending *bool, prev, next byte) {
	if !*pending {
		return
	}

	*pending = false

	if prev == 0 {
		return
	}

	if needsSeparatingSpace(prev, next) {
		out.WriteByte(' ')
	}
}

func needsSeparatingSpace(prev, next byte) bool {
	return isWordByte(prev) && isWordByte(next)
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// scanStringLiteral returns the literal text (including quotes) starting
// at s[i] (a quote character) and the index just past it.
func scanStringLiteral(s string, i int) (string, int) {
	quote := s[i]
	start := i
	i++

	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			i += 2

			continue
		}

		if s[i] == quote {
			i++

			break
		}

		i++
	}

	return s[start:i], i
}

// scanRegexLiteral attempts to parse a regex literal starting at s[i] (a
// `/`). Returns ok=false if the scan runs into a newline or EOF before a
// closing unescaped `/`, treating the input as division instead.
func scanRegexLiteral(s string, i int) (string, int, bool) {
	start := i
	i++

	inClass := false

	for i < len(s) {
		ch := s[i]

		if ch == '\n' {
			return "", 0, false
		}

		if ch == '\\' && i+1 < len(s) {
			i += 2

			continue
		}

		if ch == '[' {
			inClass = true
		} else if ch == ']' {
			inClass = false
		} else if ch == '/' && !inClass {
			i++

			// consume trailing flags
			for i < len(s) && isAsciiLetter(s[i]) {
				i++
			}

			return s[start:i], i, true
		}

		i++
	}

	return "", 0, false
}

func isAsciiLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
