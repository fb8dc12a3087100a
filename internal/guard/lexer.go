package guard

import (
	"fmt"
	"strings"
)

// tokenKind classifies lexed tokens just finely enough for the safety
// checks. This is deliberately not a full SQL parser: it only needs to see
// keywords where keywords are, and to never see them inside strings or
// comments.
type tokenKind int

const (
	tokenWord   tokenKind = iota // bare identifier or keyword
	tokenQuoted                  // quoted identifier: "x", `x`, [x]
	tokenString                  // string literal
	tokenNumber
	tokenSymbol // operators, punctuation
)

type token struct {
	kind tokenKind
	text string // original text, without quotes
	// upper is the uppercased text for bare words, "" otherwise. Only bare
	// words can be keywords; a quoted identifier never is.
	upper string
}

type lexer struct {
	input string
	pos   int

	unterminatedComment bool
}

// tokenize splits SQL into tokens, stripping comments. Unterminated strings
// or comments are errors: if we cannot see where a literal ends, we cannot
// tell what is hidden behind it.
func tokenize(input string) ([]token, error) {
	l := &lexer{input: input}
	var tokens []token
	for {
		tok, ok, err := l.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			if l.unterminatedComment {
				return nil, fmt.Errorf("unterminated block comment")
			}
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

func (l *lexer) next() (token, bool, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.input) {
		return token{}, false, nil
	}

	ch := l.input[l.pos]
	switch {
	case ch == '\'':
		text, err := l.readString('\'')
		if err != nil {
			return token{}, false, err
		}
		return token{kind: tokenString, text: text}, true, nil

	case ch == '"':
		text, err := l.readString('"')
		if err != nil {
			return token{}, false, err
		}
		return token{kind: tokenQuoted, text: text}, true, nil

	case ch == '`':
		text, err := l.readString('`')
		if err != nil {
			return token{}, false, err
		}
		return token{kind: tokenQuoted, text: text}, true, nil

	case ch == '[':
		end := strings.IndexByte(l.input[l.pos:], ']')
		if end < 0 {
			return token{}, false, fmt.Errorf("unterminated bracket identifier")
		}
		text := l.input[l.pos+1 : l.pos+end]
		l.pos += end + 1
		return token{kind: tokenQuoted, text: text}, true, nil

	case isWordStart(ch):
		start := l.pos
		for l.pos < len(l.input) && isWordPart(l.input[l.pos]) {
			l.pos++
		}
		text := l.input[start:l.pos]
		return token{kind: tokenWord, text: text, upper: strings.ToUpper(text)}, true, nil

	case ch >= '0' && ch <= '9':
		start := l.pos
		for l.pos < len(l.input) && (isWordPart(l.input[l.pos]) || l.input[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokenNumber, text: l.input[start:l.pos]}, true, nil

	default:
		l.pos++
		return token{kind: tokenSymbol, text: string(ch)}, true, nil
	}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case strings.HasPrefix(l.input[l.pos:], "--"):
			nl := strings.IndexByte(l.input[l.pos:], '\n')
			if nl < 0 {
				l.pos = len(l.input)
				return
			}
			l.pos += nl + 1
		case strings.HasPrefix(l.input[l.pos:], "/*"):
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				// Unterminated block comment; tokenize reports an error.
				l.pos = len(l.input)
				l.unterminatedComment = true
				return
			}
			l.pos += end + 4
		default:
			return
		}
	}
}

// readString consumes a quoted region delimited by quote, honoring the
// doubled-quote escape ('' inside '...').
func (l *lexer) readString(quote byte) (string, error) {
	var b strings.Builder
	l.pos++ // opening quote
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == quote {
				b.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			return b.String(), nil
		}
		b.WriteByte(ch)
		l.pos++
	}
	return "", fmt.Errorf("unterminated %q-quoted literal", string(quote))
}

func isWordStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isWordPart(ch byte) bool {
	return isWordStart(ch) || (ch >= '0' && ch <= '9')
}
