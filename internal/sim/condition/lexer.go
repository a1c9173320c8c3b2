package condition

import "fmt"

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokNot
	tokAnd
	tokOr
	tokMinus
	tokLT
	tokLE
	tokGT
	tokGE
	tokEQ
	tokNE
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			seenDot := false
			for i < len(src) && (isDigit(src[i]) || (src[i] == '.' && !seenDot)) {
				if src[i] == '.' {
					seenDot = true
				}
				i++
			}
			out = append(out, token{kind: tokNumber, text: src[start:i], pos: start})
			continue
		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i]) || src[i] == '.') {
				i++
			}
			out = append(out, token{kind: tokIdent, text: src[start:i], pos: start})
			continue
		}

		two := ""
		if i+1 < len(src) {
			two = src[i : i+2]
		}
		switch two {
		case "&&":
			out = append(out, token{kind: tokAnd, text: two, pos: i})
			i += 2
			continue
		case "||":
			out = append(out, token{kind: tokOr, text: two, pos: i})
			i += 2
			continue
		case "<=":
			out = append(out, token{kind: tokLE, text: two, pos: i})
			i += 2
			continue
		case ">=":
			out = append(out, token{kind: tokGE, text: two, pos: i})
			i += 2
			continue
		case "==":
			out = append(out, token{kind: tokEQ, text: two, pos: i})
			i += 2
			continue
		case "!=":
			out = append(out, token{kind: tokNE, text: two, pos: i})
			i += 2
			continue
		}

		var k tokKind
		switch c {
		case '(':
			k = tokLParen
		case ')':
			k = tokRParen
		case '!':
			k = tokNot
		case '-':
			k = tokMinus
		case '<':
			k = tokLT
		case '>':
			k = tokGT
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, c, i)
		}
		out = append(out, token{kind: k, text: string(c), pos: i})
		i++
	}
	out = append(out, token{kind: tokEOF, pos: len(src)})
	return out, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
