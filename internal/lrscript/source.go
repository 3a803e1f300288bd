package lrscript

import (
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
)

// The grammar only recognises call sites. Everything else in a script
// (declarations, control flow, blocks) is consumed as loose tokens.

type scriptAST struct {
	Nodes []*nodeAST `parser:"@@*"`
}

type nodeAST struct {
	Call  *callAST `parser:"  @@"`
	Other string   `parser:"| @(Ident | String | Char | Number | Operator | Punct | Paren)"`
}

type callAST struct {
	Pos  lexer.Position
	Name string    `parser:"@Ident '('"`
	Args []*argAST `parser:"( @@ ( ',' @@ )* )? ')'"`
}

type argAST struct {
	Parts []*partAST `parser:"@@+"`
}

type partAST struct {
	Strings []string  `parser:"  @String+"`
	Call    *callAST  `parser:"| @@"`
	Group   *groupAST `parser:"| @@"`
	Token   string    `parser:"| @(Ident | Number | Char | Operator | Punct)"`
}

type groupAST struct {
	Args []*argAST `parser:"'(' ( @@ ( ',' @@ )* )? ')'"`
}

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|/\*[\s\S]*?\*/`},
	{Name: "Preproc", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(?:[^"\\\n]|\\.)*"`},
	{Name: "Char", Pattern: `'(?:[^'\\\n]|\\.)*'`},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+|\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Paren", Pattern: `[(),]`},
	{Name: "Punct", Pattern: `[;{}\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Operator", Pattern: `[^\s\w"'(),;{}\[\]]`},
})

// keywords look like calls but are control flow.
var keywords = map[string]struct{}{
	"if":     {},
	"while":  {},
	"for":    {},
	"switch": {},
	"return": {},
	"sizeof": {},
}

var (
	sourceParserOnce sync.Once
	sourceParser     *participle.Parser[scriptAST]
	sourceParserErr  error
)

func loadSourceParser() (*participle.Parser[scriptAST], error) {
	sourceParserOnce.Do(func() {
		sourceParser, sourceParserErr = participle.Build[scriptAST](
			participle.Lexer(scriptLexer),
			participle.Elide("Whitespace", "Comment", "Preproc"),
			participle.UseLookahead(2),
		)
	})
	return sourceParser, sourceParserErr
}

// ParseSource extracts the call sites of a script in source order. Function
// definitions and control-flow keywords are skipped, arguments of nested
// calls are rendered back to text, adjacent string literals are joined.
func ParseSource(name, src string) ([]MethodCall, error) {
	p, err := loadSourceParser()
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "build script grammar")
	}
	ast, err := p.ParseString(name, src)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "parse script %s", name)
	}

	var calls []MethodCall
	for i, node := range ast.Nodes {
		if node.Call == nil {
			continue
		}
		if _, kw := keywords[node.Call.Name]; kw {
			continue
		}
		if i+1 < len(ast.Nodes) && ast.Nodes[i+1].Other == "{" {
			// function definition
			continue
		}
		calls = append(calls, node.Call.methodCall())
	}
	return calls, nil
}

func (c *callAST) methodCall() MethodCall {
	params := make([]string, 0, len(c.Args))
	for _, arg := range c.Args {
		params = append(params, arg.render())
	}
	return MethodCall{Name: c.Name, Parameters: params, Line: c.Pos.Line}
}

func (a *argAST) render() string {
	if len(a.Parts) == 1 && len(a.Parts[0].Strings) > 0 {
		return joinLiterals(a.Parts[0].Strings)
	}
	var b strings.Builder
	glued := false
	for i, p := range a.Parts {
		if i > 0 && !glued {
			b.WriteByte(' ')
		}
		b.WriteString(p.render())
		// a prefix operator sticks to its operand: -1, !flag
		glued = isPrefixOperator(p.Token) && (i == 0 || isOperator(a.Parts[i-1].Token))
	}
	return b.String()
}

func isPrefixOperator(tok string) bool {
	switch tok {
	case "-", "+", "!", "~":
		return true
	}
	return false
}

func isOperator(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return !(c == '_' || c == '\'' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9')
}

func (p *partAST) render() string {
	switch {
	case len(p.Strings) > 0:
		return joinLiterals(p.Strings)
	case p.Call != nil:
		return p.Call.Name + "(" + renderArgs(p.Call.Args) + ")"
	case p.Group != nil:
		return "(" + renderArgs(p.Group.Args) + ")"
	default:
		return p.Token
	}
}

func renderArgs(args []*argAST) string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, a.render())
	}
	return strings.Join(out, ", ")
}

// joinLiterals merges "a" "b" into "ab", keeping escapes untouched.
func joinLiterals(lits []string) string {
	if len(lits) == 1 {
		return lits[0]
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, lit := range lits {
		b.WriteString(Unquote(lit))
	}
	b.WriteByte('"')
	return b.String()
}
