package query

import (
	"regexp"
	"strconv"
	"strings"
)

var relDatePattern = regexp.MustCompile(`^(?i)(today|yesterday|\d+[dwmy])$`)

// Parse parses the string form of a query into its AST.
func Parse(input string) (*Query, error) {
	lx := newLexer(input)
	var toks []token
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	p := &parser{toks: toks}
	return p.parseQuery()
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (p *parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return &ParseError{Pos: p.peek().pos, Msg: "expected " + word}
	}
	p.advance()
	return nil
}

func (p *parser) parseQuery() (*Query, error) {
	if err := p.expectKeyword("find"); err != nil {
		return nil, err
	}
	target := p.advance()
	if target.kind != tokIdent && target.kind != tokString {
		return nil, &ParseError{Pos: target.pos, Msg: "expected supertag name or *"}
	}
	q := &Query{Find: target.text}

	if p.isKeyword("where") {
		p.advance()
		for {
			cond, err := p.parseCondOrGroup()
			if err != nil {
				return nil, err
			}
			q.Where = append(q.Where, cond)
			if p.isKeyword("and") {
				p.advance()
				continue
			}
			break
		}
	}

	if p.isKeyword("order") {
		p.advance()
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		t := p.advance()
		if t.kind != tokIdent && t.kind != tokString {
			return nil, &ParseError{Pos: t.pos, Msg: "expected order field"}
		}
		field := t.text
		desc := false
		if strings.HasPrefix(field, "-") {
			desc = true
			field = field[1:]
		}
		if field == "" {
			return nil, &ParseError{Pos: t.pos, Msg: "expected order field"}
		}
		q.OrderBy = &Order{Field: field, Desc: desc}
	}

	if p.isKeyword("limit") {
		p.advance()
		n, err := p.parseInt("limit")
		if err != nil {
			return nil, err
		}
		q.Limit = n
	}

	if p.isKeyword("offset") {
		p.advance()
		n, err := p.parseInt("offset")
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, &ParseError{Pos: p.toks[p.i-1].pos, Msg: "offset must be >= 0"}
		}
		q.Offset = n
	}

	if p.isKeyword("select") {
		p.advance()
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		q.Select = sel
	}

	if t := p.peek(); t.kind != tokEOF {
		return nil, &ParseError{Pos: t.pos, Msg: "unexpected trailing input " + strconv.Quote(t.text)}
	}
	return q, nil
}

func (p *parser) parseInt(what string) (int, error) {
	t := p.advance()
	if t.kind != tokNumber {
		return 0, &ParseError{Pos: t.pos, Msg: "expected number after " + what}
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, &ParseError{Pos: t.pos, Msg: "invalid " + what + " " + t.text}
	}
	return n, nil
}

func (p *parser) parseCondOrGroup() (Cond, error) {
	if p.peek().kind == tokLParen {
		return p.parseGroup()
	}
	return p.parseClause()
}

func (p *parser) parseGroup() (*Group, error) {
	p.advance() // (
	g := &Group{}
	for {
		c, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		g.Clauses = append(g.Clauses, c)
		if p.isKeyword("or") {
			p.advance()
			continue
		}
		break
	}
	if t := p.advance(); t.kind != tokRParen {
		return nil, &ParseError{Pos: t.pos, Msg: "expected )"}
	}
	return g, nil
}

func (p *parser) parseClause() (*Clause, error) {
	c := &Clause{}
	if p.isKeyword("not") {
		p.advance()
		c.Negated = true
	}
	t := p.advance()
	if t.kind != tokIdent && t.kind != tokString {
		return nil, &ParseError{Pos: t.pos, Msg: "expected field name"}
	}
	c.Field = t.text

	switch {
	case p.isKeyword("exists"):
		p.advance()
		c.Op = OpExists
		return c, nil
	case p.isKeyword("is"):
		p.advance()
		if p.isKeyword("empty") || p.isKeyword("null") {
			p.advance()
			c.Op = OpIsEmpty
			return c, nil
		}
		return nil, &ParseError{Pos: p.peek().pos, Msg: "expected empty or null after is"}
	case p.isKeyword("contains"):
		p.advance()
		c.Op = OpContains
	default:
		op := p.advance()
		if op.kind != tokOp {
			return nil, &ParseError{Pos: op.pos, Msg: "expected operator after field " + c.Field}
		}
		c.Op = Operator(op.text)
	}

	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	// Comma-separated values form an array. Unambiguous here: a bare
	// comma never follows a complete clause otherwise.
	if p.peek().kind == tokComma {
		list := []Value{v}
		for p.peek().kind == tokComma {
			p.advance()
			next, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			list = append(list, next)
		}
		v = Value{Kind: ValueList, List: list}
	}
	c.Value = v
	return c, nil
}

func (p *parser) parseValue() (Value, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		return Value{Kind: ValueString, Str: t.text}, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Value{}, &ParseError{Pos: t.pos, Msg: "invalid number " + t.text}
		}
		return Value{Kind: ValueNumber, Num: n, Str: t.text}, nil
	case tokIdent:
		switch {
		case strings.EqualFold(t.text, "true"):
			return Value{Kind: ValueBool, Bool: true, Str: "true"}, nil
		case strings.EqualFold(t.text, "false"):
			return Value{Kind: ValueBool, Bool: false, Str: "false"}, nil
		case relDatePattern.MatchString(t.text):
			return Value{Kind: ValueRelDate, Str: strings.ToLower(t.text)}, nil
		default:
			// Unquoted identifier value, e.g. Status = Done.
			return Value{Kind: ValueString, Str: t.text}, nil
		}
	default:
		return Value{}, &ParseError{Pos: t.pos, Msg: "expected value"}
	}
}

func (p *parser) parseSelect() ([]string, error) {
	t := p.advance()
	if t.kind != tokIdent && t.kind != tokString {
		return nil, &ParseError{Pos: t.pos, Msg: "expected select fields"}
	}
	if t.kind == tokIdent && t.text == "*" {
		return []string{"*"}, nil
	}
	// Backward compat: a single quoted list splits on comma.
	if t.kind == tokString && strings.Contains(t.text, ",") && p.peek().kind == tokEOF {
		var out []string
		for _, f := range strings.Split(t.text, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
		return out, nil
	}
	out := []string{t.text}
	for p.peek().kind == tokComma {
		p.advance()
		f := p.advance()
		if f.kind != tokIdent && f.kind != tokString {
			return nil, &ParseError{Pos: f.pos, Msg: "expected field after comma"}
		}
		out = append(out, f.text)
	}
	return out, nil
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
