package types

import (
	"fmt"
	"strings"
	"unicode"
)

// ClassResolver maps a fully-qualified class name to its declaration.
type ClassResolver func(fullname string) *TypeInfo

// Parse converts a textual annotation into a Type.
//
// Accepted forms: Any, None, Optional[T], Union[T, ...], T | U and
// dotted.Class[Arg, ...]. Class names are passed to resolve.
func Parse(text string, resolve ClassResolver) (Type, error) {
	p := &annotationParser{tokens: tokenize(text), resolve: resolve, text: text}
	typ, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("unexpected %q in annotation %q", p.peek(), text)
	}
	return typ, nil
}

// MustParse is Parse for annotations known to be well formed.
func MustParse(text string, resolve ClassResolver) Type {
	typ, err := Parse(text, resolve)
	if err != nil {
		panic(err)
	}
	return typ
}

type annotationParser struct {
	tokens  []string
	pos     int
	resolve ClassResolver
	text    string
}

func (p *annotationParser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *annotationParser) peek() string {
	if p.atEnd() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *annotationParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *annotationParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q in annotation %q", tok, got, p.text)
	}
	return nil
}

func (p *annotationParser) parseUnion() (Type, error) {
	first, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	items := []Type{first}
	for p.peek() == "|" {
		p.next()
		item, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return MakeUnion(items...), nil
}

func (p *annotationParser) parseArgs() ([]Type, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	var args []Type
	for {
		arg, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek() == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *annotationParser) parseAtom() (Type, error) {
	name := p.next()
	if name == "" || !isIdentStart(name) {
		return nil, fmt.Errorf("expected a type name, got %q in annotation %q", name, p.text)
	}

	switch name {
	case "Any", "typing.Any":
		return NewAny(Special), nil
	case "None", "builtins.None":
		return None, nil
	case "Union", "typing.Union":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return MakeUnion(args...), nil
	case "Optional", "typing.Optional":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("Optional takes exactly one argument in annotation %q", p.text)
		}
		return MakeOptional(args[0]), nil
	}

	inst := &Instance{Info: p.resolve(name)}
	if p.peek() == "[" {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		inst.Args = args
	}
	return inst, nil
}

func isIdentStart(tok string) bool {
	r := rune(tok[0])
	return r == '_' || unicode.IsLetter(r)
}

func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '[' || r == ']' || r == ',' || r == '|':
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
