package parser

import (
	"strconv"
	"unicode"

	"github.com/cockroachdb/errors"
)

// ErrSyntax is returned for malformed literals.
var ErrSyntax = errors.New("syntax error")

// Parser reads integer list literals written as S-expressions:
//
//	(1 2 3)   '(1 2 3)   1 2 3   ()
//
// Comments run from ';' to the end of the line.
type Parser struct {
	input string
	pos   int
}

// New creates a new parser for the given input
func New(input string) *Parser {
	return &Parser{input: input, pos: 0}
}

// ParseInts parses one literal and returns its elements in order.
// Anything after the closing ')' other than whitespace is an error.
func (p *Parser) ParseInts() ([]int64, error) {
	p.skipWhitespace()
	if p.peek() == '\'' {
		p.advance()
		p.skipWhitespace()
	}

	var out []int64
	var err error
	if p.peek() == '(' {
		out, err = p.parseList()
	} else {
		out, err = p.parseBare()
	}
	if err != nil {
		return nil, err
	}

	p.skipWhitespace()
	if p.pos < len(p.input) {
		return nil, p.errorf("unexpected %q after literal", p.peek())
	}
	return out, nil
}

func (p *Parser) skipWhitespace() {
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == ';' {
			// Skip comment to end of line
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
		} else if unicode.IsSpace(rune(ch)) {
			p.pos++
		} else {
			break
		}
	}
}

func (p *Parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) advance() byte {
	ch := p.peek()
	if ch != 0 {
		p.pos++
	}
	return ch
}

func (p *Parser) parseList() ([]int64, error) {
	p.advance() // consume '('
	var items []int64

	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			return nil, p.errorf("unclosed list")
		}
		if p.peek() == ')' {
			p.advance()
			return items, nil
		}
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
}

func (p *Parser) parseBare() ([]int64, error) {
	var items []int64
	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			return items, nil
		}
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
}

func (p *Parser) parseInt() (int64, error) {
	start := p.pos

	// Check for sign
	if (p.peek() == '-' || p.peek() == '+') && p.pos+1 < len(p.input) && isDigit(p.input[p.pos+1]) {
		p.advance()
	}
	if !isDigit(p.peek()) {
		if p.peek() == ')' {
			return 0, p.errorf("unexpected ')'")
		}
		return 0, p.errorf("expected integer, found %q", p.peek())
	}
	for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
		p.pos++
	}
	if p.pos < len(p.input) && !isDelimiter(p.input[p.pos]) {
		return 0, p.errorf("invalid integer %q", p.input[start:p.pos+1])
	}

	numStr := p.input[start:p.pos]
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "invalid integer %q", numStr), ErrSyntax)
	}
	return n, nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSyntax, "at offset %d: "+format, append([]interface{}{p.pos}, args...)...)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isDelimiter(ch byte) bool {
	return unicode.IsSpace(rune(ch)) || ch == '(' || ch == ')' || ch == ';'
}

// ParseInts is a convenience function to parse a literal string
func ParseInts(input string) ([]int64, error) {
	return New(input).ParseInts()
}
