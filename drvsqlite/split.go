package drvsqlite

import "strings"

// splitStatement returns the first statement of query, with its
// terminating semicolon, and the text after it.
//
// Semicolons inside quotes, comments and the body of a CREATE TRIGGER
// do not end a statement. A trigger body ends at "END;".
func splitStatement(query string) (first, rest string) {
	var (
		words   int  // words seen in this statement, up to 4
		trigger bool // statement is CREATE [TEMP] TRIGGER
		lastEnd bool // the last word was END
	)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := strings.IndexByte(query[i+1:], c)
			if j < 0 {
				return query, ""
			}
			i += j + 1
			lastEnd = false
		case c == '[':
			j := strings.IndexByte(query[i+1:], ']')
			if j < 0 {
				return query, ""
			}
			i += j + 1
			lastEnd = false
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			j := strings.IndexByte(query[i:], '\n')
			if j < 0 {
				return query, ""
			}
			i += j
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			j := strings.Index(query[i+2:], "*/")
			if j < 0 {
				return query, ""
			}
			i += j + 3
		case c == ';':
			if !trigger || lastEnd {
				return query[:i+1], query[i+1:]
			}
		case isWordByte(c):
			j := i
			for j < len(query) && isWordByte(query[j]) {
				j++
			}
			word := strings.ToUpper(query[i:j])
			if words < 4 {
				words++
				if word == "TRIGGER" && (words == 2 || words == 3) {
					trigger = true
				}
			}
			lastEnd = word == "END"
			i = j - 1
		default:
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				lastEnd = false
			}
		}
	}
	return query, ""
}

func isWordByte(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}
