package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/transcoder"
	"github.com/wippyai/mlbridge/value"
)

type argKind int

const (
	argInt argKind = iota
	argFloat
	argBool
	argUnit
	argString
	argNone
	argSome
	argList
	argArray
	argTuple
	argFunc
	argExternal
	argWasm
)

// arg is a parsed command-line argument. Arguments use the foreign literal
// syntax: 42, 1.5, true, (), "text", None, Some x, [1; 2], [|1; 2|], (1, "a").
// fn:name, ext:name and wasm:name denote closures.
type arg struct {
	kind  argKind
	num   int64
	float float64
	text  string
	items []arg
}

type parser struct {
	src string
	pos int
}

func parseArg(s string) (arg, error) {
	p := &parser{src: s}
	a, err := p.expr()
	if err != nil {
		return arg{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return arg{}, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	return a, nil
}

// splitArgs splits a command line into literals, each of which parseArg
// accepts. Literals are separated by whitespace outside brackets and quotes.
func splitArgs(line string) ([]string, error) {
	p := &parser{src: line}
	var out []string
	for {
		p.skipSpace()
		if p.pos == len(p.src) {
			break
		}
		start := p.pos
		if _, err := p.expr(); err != nil {
			return nil, err
		}
		out = append(out, p.src[start:p.pos])
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return out, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) expr() (arg, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return arg{}, fmt.Errorf("unexpected end of argument")
	}
	switch {
	case p.src[p.pos] == '"':
		return p.quoted()
	case p.consume("[|"):
		items, err := p.items("|]")
		return arg{kind: argArray, items: items}, err
	case p.consume("["):
		items, err := p.items("]")
		return arg{kind: argList, items: items}, err
	case p.consume("("):
		return p.paren()
	}
	return p.word()
}

func (p *parser) quoted() (arg, error) {
	end := p.pos + 1
	for end < len(p.src) && p.src[end] != '"' {
		if p.src[end] == '\\' {
			end++
		}
		end++
	}
	if end >= len(p.src) {
		return arg{}, fmt.Errorf("unterminated string at offset %d", p.pos)
	}
	s, err := strconv.Unquote(p.src[p.pos : end+1])
	if err != nil {
		return arg{}, fmt.Errorf("string at offset %d: %w", p.pos, err)
	}
	p.pos = end + 1
	return arg{kind: argString, text: s}, nil
}

func (p *parser) items(closing string) ([]arg, error) {
	var items []arg
	if p.consume(closing) {
		return items, nil
	}
	for {
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, a)
		if p.consume(closing) {
			return items, nil
		}
		if !p.consume(";") {
			return nil, fmt.Errorf("expected ; or %s at offset %d", closing, p.pos)
		}
	}
}

func (p *parser) paren() (arg, error) {
	if p.consume(")") {
		return arg{kind: argUnit}, nil
	}
	first, err := p.expr()
	if err != nil {
		return arg{}, err
	}
	if p.consume(")") {
		return first, nil
	}
	items := []arg{first}
	for p.consume(",") {
		a, err := p.expr()
		if err != nil {
			return arg{}, err
		}
		items = append(items, a)
	}
	if !p.consume(")") {
		return arg{}, fmt.Errorf("expected ) at offset %d", p.pos)
	}
	return arg{kind: argTuple, items: items}, nil
}

func (p *parser) word() (arg, error) {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(" \t;,()[]|\"", rune(p.src[p.pos])) {
		p.pos++
	}
	w := p.src[start:p.pos]
	if w == "" {
		return arg{}, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	switch w {
	case "true":
		return arg{kind: argBool, num: 1}, nil
	case "false":
		return arg{kind: argBool}, nil
	case "None":
		return arg{kind: argNone}, nil
	case "Some":
		inner, err := p.expr()
		if err != nil {
			return arg{}, err
		}
		return arg{kind: argSome, items: []arg{inner}}, nil
	}
	for prefix, kind := range map[string]argKind{"fn:": argFunc, "ext:": argExternal, "wasm:": argWasm} {
		if name, ok := strings.CutPrefix(w, prefix); ok {
			return arg{kind: kind, text: name}, nil
		}
	}
	if n, err := strconv.ParseInt(w, 10, 64); err == nil {
		return arg{kind: argInt, num: n}, nil
	}
	if f, err := strconv.ParseFloat(w, 64); err == nil {
		return arg{kind: argFloat, float: f}, nil
	}
	return arg{kind: argString, text: w}, nil
}

// encode builds the foreign value of a. Intermediate values stay rooted in
// a frame until the enclosing block is filled.
func (s *session) encode(rt *runtime.Runtime, a arg) (value.Value, error) {
	tok := rt.Token()
	abi := rt.ABI()
	switch a.kind {
	case argInt:
		return value.Int(a.num), nil
	case argFloat:
		return transcoder.Float.Encode(tok, a.float), nil
	case argBool:
		return value.Bool(a.num != 0), nil
	case argUnit:
		return value.Unit, nil
	case argString:
		return transcoder.String.Encode(tok, a.text), nil
	case argNone:
		return value.None, nil
	case argFunc:
		c, ok := closures[a.text]
		if !ok {
			return value.Unit, fmt.Errorf("unknown closure fn:%s", a.text)
		}
		code, ok := s.codes[a.text]
		if !ok {
			code = s.heap.DefineCode(a.text, c.arity, c.code)
			s.codes[a.text] = code
		}
		return s.heap.AllocClosure(code), nil
	case argExternal:
		if _, ok := s.heap.ExternalArity(a.text); !ok {
			return value.Unit, fmt.Errorf("unknown external ext:%s", a.text)
		}
		return s.heap.ExternalClosure(a.text), nil
	case argWasm:
		code, ok := s.wasm[a.text]
		if !ok {
			return value.Unit, fmt.Errorf("unknown wasm export wasm:%s", a.text)
		}
		return s.heap.AllocClosure(code), nil
	case argArray:
		if floats(a.items) {
			v := abi.AllocDoubleArray(len(a.items))
			for i, it := range a.items {
				v.StoreDoubleField(i, it.float)
			}
			return v, nil
		}
	}

	f := rt.Frame()
	defer f.Close()
	roots := make([]runtime.Root, len(a.items))
	for i, it := range a.items {
		v, err := s.encode(rt, it)
		if err != nil {
			return value.Unit, err
		}
		roots[i] = f.Root(v)
	}

	switch a.kind {
	case argList:
		list := f.Root(value.EmptyList)
		for i := len(roots) - 1; i >= 0; i-- {
			cell := abi.AllocSmall(2, 0)
			abi.Initialize(cell, 0, roots[i].Get())
			abi.Initialize(cell, 1, list.Get())
			list.Set(cell)
		}
		return list.Get(), nil
	case argSome, argTuple, argArray:
		blk := abi.Alloc(len(roots), 0)
		for i, r := range roots {
			abi.Modify(blk, i, r.Get())
		}
		return blk, nil
	}
	return value.Unit, fmt.Errorf("cannot encode argument kind %d", a.kind)
}

func floats(items []arg) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.kind != argFloat {
			return false
		}
	}
	return true
}
