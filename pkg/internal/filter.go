// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

package internal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/apache/arrow/go/v17/arrow"
)

// The filter language accepted by Delete, Update and Select is a small
// subset of SQL WHERE syntax: comparisons between a column and a literal
// (`score > 0.5`, `name = 'alice'`, `id != 3`), null checks (`text IS NULL`,
// `text IS NOT NULL`), grouping with parentheses, and AND/OR conjunctions
// with the usual precedence. It is deliberately not a SQL engine.

// predicate evaluates a compiled filter against one row.
type predicate func(row map[string]interface{}) bool

// matchAll accepts every row. compileFilter returns it for an empty filter.
func matchAll(map[string]interface{}) bool { return true }

func compileFilter(expr string) (predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return matchAll, nil
	}

	tokens, err := tokenizeFilter(expr)
	if err != nil {
		return nil, err
	}

	p := &filterParser{tokens: tokens}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q in filter", p.peek().text)
	}
	return pred, nil
}

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type filterToken struct {
	kind tokenKind
	text string
}

func tokenizeFilter(expr string) ([]filterToken, error) {
	var tokens []filterToken
	runes := []rune(expr)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, filterToken{tokenLeftParen, "("})
			i++
		case r == ')':
			tokens = append(tokens, filterToken{tokenRightParen, ")"})
			i++
		case r == '\'':
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				j++
			}
			if j == len(runes) {
				return nil, fmt.Errorf("unterminated string literal in filter")
			}
			tokens = append(tokens, filterToken{tokenString, string(runes[i+1 : j])})
			i = j + 1
		case strings.ContainsRune("=<>!", r):
			j := i + 1
			if j < len(runes) && strings.ContainsRune("=>", runes[j]) {
				j++
			}
			op := string(runes[i:j])
			switch op {
			case "=", "!=", "<>", "<", "<=", ">", ">=":
			default:
				return nil, fmt.Errorf("invalid operator %q in filter", op)
			}
			tokens = append(tokens, filterToken{tokenOperator, op})
			i = j
		case unicode.IsDigit(r) || r == '-' || r == '.':
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.' || runes[j] == 'e' ||
				runes[j] == 'E' || runes[j] == '-' || runes[j] == '+') {
				j++
			}
			tokens = append(tokens, filterToken{tokenNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, filterToken{tokenIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in filter", r)
		}
	}
	return tokens, nil
}

type filterParser struct {
	tokens []filterToken
	pos    int
}

func (p *filterParser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *filterParser) peek() filterToken {
	if p.done() {
		return filterToken{}
	}
	return p.tokens[p.pos]
}

func (p *filterParser) nextKeyword(kw string) bool {
	t := p.peek()
	if t.kind == tokenIdent && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *filterParser) parseOr() (predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.nextKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(row map[string]interface{}) bool { return l(row) || r(row) }
	}
	return left, nil
}

func (p *filterParser) parseAnd() (predicate, error) {
	left, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	for p.nextKeyword("AND") {
		right, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(row map[string]interface{}) bool { return l(row) && r(row) }
	}
	return left, nil
}

func (p *filterParser) parseCondition() (predicate, error) {
	if p.peek().kind == tokenLeftParen {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRightParen {
			return nil, fmt.Errorf("missing closing parenthesis in filter")
		}
		p.pos++
		return inner, nil
	}

	col := p.peek()
	if col.kind != tokenIdent {
		return nil, fmt.Errorf("expected column name, got %q", col.text)
	}
	p.pos++
	name := col.text

	// IS NULL / IS NOT NULL
	if p.nextKeyword("IS") {
		negate := p.nextKeyword("NOT")
		if !p.nextKeyword("NULL") {
			return nil, fmt.Errorf("expected NULL after IS in filter")
		}
		return func(row map[string]interface{}) bool {
			v, ok := row[name]
			isNull := !ok || v == nil
			return isNull != negate
		}, nil
	}

	op := p.peek()
	if op.kind != tokenOperator {
		return nil, fmt.Errorf("expected operator after column %s", name)
	}
	p.pos++

	lit := p.peek()
	var want interface{}
	switch lit.kind {
	case tokenString:
		want = lit.text
	case tokenNumber:
		f, err := strconv.ParseFloat(lit.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in filter", lit.text)
		}
		want = f
	case tokenIdent:
		switch strings.ToLower(lit.text) {
		case "true":
			want = true
		case "false":
			want = false
		default:
			return nil, fmt.Errorf("unexpected literal %q in filter", lit.text)
		}
	default:
		return nil, fmt.Errorf("expected literal after operator %s", op.text)
	}
	p.pos++

	operator := op.text
	return func(row map[string]interface{}) bool {
		value, ok := row[name]
		if !ok || value == nil {
			// SQL semantics: comparisons against NULL never match.
			return false
		}
		return compareValues(value, want, operator)
	}, nil
}

func compareValues(value, want interface{}, operator string) bool {
	switch w := want.(type) {
	case bool:
		v, ok := value.(bool)
		if !ok {
			return false
		}
		switch operator {
		case "=":
			return v == w
		case "!=", "<>":
			return v != w
		default:
			return false
		}
	case string:
		v, ok := value.(string)
		if !ok {
			return false
		}
		return compareOrdered(strings.Compare(v, w), operator)
	case float64:
		v, ok := toFloat64(value)
		if !ok {
			return false
		}
		switch {
		case v < w:
			return compareOrdered(-1, operator)
		case v > w:
			return compareOrdered(1, operator)
		default:
			return compareOrdered(0, operator)
		}
	default:
		return false
	}
}

func compareOrdered(cmp int, operator string) bool {
	switch operator {
	case "=":
		return cmp == 0
	case "!=", "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

// validateUpdateColumns rejects updates that reference columns the schema
// does not have.
func validateUpdateColumns(schema *arrow.Schema, updates map[string]interface{}) error {
	for name := range updates {
		if !schema.HasField(name) {
			return fmt.Errorf("unknown column %s in updates", name)
		}
	}
	return nil
}
