// Package statements locates the individual statements in a SQL script.
//
// It is a lexical pass only: it understands quotes, comments and Postgres
// dollar quoting well enough to find statement boundaries, and nothing else.
package statements

import "strings"

// Statement is one statement of a script.
type Statement struct {
	SQL string
	// Start and End are byte offsets into the script. End excludes the
	// terminating semicolon and any trailing whitespace or comments.
	Start int
	End   int
	// Line and Column locate Start, both 1-based. Column counts runes.
	Line   int
	Column int
}

type scanner struct {
	src  string
	pos  int
	line int
	col  int
}

func (s *scanner) done() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek(n int) byte {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

func (s *scanner) next() {
	switch {
	case s.src[s.pos] == '\n':
		s.line++
		s.col = 1
	case s.src[s.pos]&0xC0 != 0x80:
		s.col++
	}
	s.pos++
}

func (s *scanner) skip(n int) {
	for ; n > 0 && !s.done(); n-- {
		s.next()
	}
}

// Find returns the statements of sql in order. Empty statements, including
// those made only of comments, are dropped.
func Find(sql string) []Statement {
	s := &scanner{src: sql, line: 1, col: 1}
	var (
		out      []Statement
		current  *Statement
		lastByte int
	)

	emit := func() {
		if current == nil {
			return
		}
		current.End = lastByte
		current.SQL = sql[current.Start:current.End]
		out = append(out, *current)
		current = nil
	}

	for !s.done() {
		c := s.src[s.pos]
		switch {
		case c == '-' && s.peek(1) == '-':
			for !s.done() && s.src[s.pos] != '\n' {
				s.next()
			}
		case c == '/' && s.peek(1) == '*':
			s.skip(2)
			for !s.done() && !(s.src[s.pos] == '*' && s.peek(1) == '/') {
				s.next()
			}
			s.skip(2)
		case c == ';':
			emit()
			s.next()
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			s.next()
		default:
			if current == nil {
				current = &Statement{Start: s.pos, Line: s.line, Column: s.col}
			}
			switch c {
			case '\'', '"', '`':
				s.quoted(c)
			case '$':
				if tag := s.dollarTag(); tag != "" {
					s.dollarQuoted(tag)
				} else {
					s.next()
				}
			default:
				s.next()
			}
			lastByte = s.pos
		}
	}
	emit()

	return out
}

// Split returns just the text of each statement.
func Split(sql string) []string {
	stmts := Find(sql)
	out := make([]string, len(stmts))
	for i, st := range stmts {
		out[i] = st.SQL
	}
	return out
}

// At returns the statement a cursor at byte offset belongs to: the last
// statement starting at or before offset, or the first one when the cursor
// precedes every statement.
func At(stmts []Statement, offset int) (Statement, bool) {
	if len(stmts) == 0 {
		return Statement{}, false
	}
	found := stmts[0]
	for _, st := range stmts[1:] {
		if st.Start > offset {
			break
		}
		found = st
	}
	return found, true
}

// quoted consumes a quoted string or identifier. A doubled quote character
// is an escaped quote. An unterminated quote runs to the end of the input.
func (s *scanner) quoted(q byte) {
	s.next()
	for !s.done() {
		if s.src[s.pos] == q {
			if s.peek(1) == q {
				s.skip(2)
				continue
			}
			s.next()
			return
		}
		s.next()
	}
}

// dollarTag returns the $tag$ opening a dollar-quoted string at the current
// position, or "" when the $ starts something else such as a $1 parameter.
func (s *scanner) dollarTag() string {
	rest := s.src[s.pos+1:]
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch {
		case c == '$':
			return s.src[s.pos : s.pos+i+2]
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80:
		case c >= '0' && c <= '9' && i > 0:
		default:
			return ""
		}
	}
	return ""
}

func (s *scanner) dollarQuoted(tag string) {
	s.skip(len(tag))
	end := strings.Index(s.src[s.pos:], tag)
	if end < 0 {
		s.skip(len(s.src) - s.pos)
		return
	}
	s.skip(end + len(tag))
}
