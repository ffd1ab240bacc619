package embed

import (
	"regexp"
	"strings"
)

// The chart configuration lives in inline scripts. Only the literal subset
// authors write by hand is understood: array and object literals, quoted
// strings, numbers, and identifiers bound earlier in the same script.

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// skipString returns the index just past the string literal starting at i.
func skipString(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

// skipComment returns the index just past a comment starting at i, or i.
func skipComment(s string, i int) int {
	if i+1 >= len(s) || s[i] != '/' {
		return i
	}
	switch s[i+1] {
	case '/':
		if end := strings.IndexByte(s[i:], '\n'); end >= 0 {
			return i + end + 1
		}
		return len(s)
	case '*':
		if end := strings.Index(s[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2
		}
		return len(s)
	}
	return i
}

// matchBalanced returns the index of the bracket closing s[open].
func matchBalanced(s string, open int) (int, bool) {
	var stack []byte
	for i := open; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipString(s, i)
			continue
		case c == '/':
			if next := skipComment(s, i); next != i {
				i = next
				continue
			}
		case c == '(' || c == '[' || c == '{':
			stack = append(stack, closers[c])
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

// splitTopLevel splits s on commas outside brackets and strings.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipString(s, i)
			continue
		case c == '/':
			if next := skipComment(s, i); next != i {
				i = next
				continue
			}
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
		i++
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}

// literalBody strips the outer brackets of an array or object literal.
func literalBody(lit string, open, close byte) (string, bool) {
	lit = strings.TrimSpace(lit)
	if len(lit) < 2 || lit[0] != open || lit[len(lit)-1] != close {
		return "", false
	}
	return lit[1 : len(lit)-1], true
}

// objectFields returns the top level key/value pairs of an object literal.
func objectFields(lit string) (map[string]string, bool) {
	body, ok := literalBody(lit, '{', '}')
	if !ok {
		return nil, false
	}
	fields := make(map[string]string)
	for _, part := range splitTopLevel(stripComments(body)) {
		colon := topLevelColon(part)
		if colon < 0 {
			// shorthand property: { x, y }
			fields[part] = part
			continue
		}
		key := strings.TrimSpace(part[:colon])
		if unq, ok := unquote(key); ok {
			key = unq
		}
		fields[key] = strings.TrimSpace(part[colon+1:])
	}
	return fields, true
}

func topLevelColon(s string) int {
	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipString(s, i)
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ':' && depth == 0:
			return i
		}
		i++
	}
	return -1
}

// stripComments blanks out comments, keeping offsets and line breaks.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c == '"' || c == '\'' || c == '`' {
			end := skipString(s, i)
			b.WriteString(s[i:end])
			i = end
			continue
		}
		if next := skipComment(s, i); next != i {
			for _, r := range []byte(s[i:next]) {
				if r == '\n' {
					b.WriteByte('\n')
				} else {
					b.WriteByte(' ')
				}
			}
			i = next
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '"' && q != '\'' && q != '`') || s[len(s)-1] != q {
		return "", false
	}
	return s[1 : len(s)-1], true
}

var reIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func isIdent(s string) bool {
	return reIdent.MatchString(s)
}

// resolveIdent finds the value bound to name in script. Array and object
// literals are returned whole; other expressions up to the end of statement.
func resolveIdent(script, name string) (string, bool) {
	re := regexp.MustCompile(`(?:^|[^.\w$])` + regexp.QuoteMeta(name) + `\s*=`)
	for _, loc := range re.FindAllStringIndex(script, -1) {
		valueStart := loc[1]
		if valueStart < len(script) && (script[valueStart] == '=' || script[valueStart] == '>') {
			continue
		}
		rest := strings.TrimLeft(script[valueStart:], " \t\r\n")
		offset := len(script) - len(rest)
		if rest == "" {
			continue
		}
		if rest[0] == '[' || rest[0] == '{' {
			end, ok := matchBalanced(script, offset)
			if !ok {
				return "", false
			}
			return script[offset : end+1], true
		}
		if end := strings.IndexAny(rest, ";\n"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}
