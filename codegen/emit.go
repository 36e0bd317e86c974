// Package codegen emits a recorded function as compilable Go source.
//
// The generated file contains a single function
//
//	func <Name>(params, domain []<Type>) ([]<Type>, error)
//
// that evaluates the operation sequence: dynamic parameter operators
// first, then variable operators, then the range gather. A
// collaborator compiles the file into a shared library and calls the
// symbol through that uniform signature; this package only produces
// the source.
package codegen

import (
	"bytes"
	"fmt"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ast/astutil"

	"adtape/ad"
	"adtape/value"
)

// Options controls the shape of the generated file.
type Options struct {
	// Package is the generated package name.
	Package string
	// Func is the generated function name.
	Func string
	// Type is the value type expression inside the generated file,
	// for example "value.F64".
	Type string
	// TypeImport is the import path providing Type; empty for a
	// builtin type.
	TypeImport string
	// Const renders one constant as a Go expression. When nil,
	// constants render as Type(<String()>).
	Const func(v string) string
}

func (o *Options) constExpr(v string) string {
	if o.Const != nil {
		return o.Const(v)
	}
	return fmt.Sprintf("%s(%s)", o.Type, v)
}

// Emit renders f as a Go source file.
//
// Functions whose operation sequence contains a call operator are
// refused: an atomic callback has no source form to splice in.
func Emit[V value.Value[V]](f *ad.Fn[V], opts Options) ([]byte, error) {
	if opts.Package == "" || opts.Func == "" || opts.Type == "" {
		return nil, errors.New("codegen: Package, Func and Type are required")
	}
	for k := 0; k < f.OpLen(); k++ {
		switch f.OpAt(k) {
		case ad.OpCall, ad.OpCallRes:
			return nil, errors.Errorf(
				"codegen: operator %d is an atomic call; calls have no source form",
				k)
		}
	}

	g := &generator[V]{f: f, opts: opts}
	g.scan()
	src, err := g.render()
	if err != nil {
		return nil, err
	}
	return finish(src, g.imports())
}

type generator[V value.Value[V]] struct {
	f    *ad.Fn[V]
	opts Options

	usesCop  []bool
	needsCmp bool
	needsDiv bool
}

// scan records which constants and helpers the body will reference.
func (g *generator[V]) scan() {
	f := g.f
	g.usesCop = make([]bool, len(f.Constants()))
	use := func(a ad.Addr) {
		if a.Kind() == ad.KindCop {
			g.usesCop[a.Index()] = true
		}
	}
	for k := 0; k < f.OpLen(); k++ {
		for _, a := range f.ArgsAt(k) {
			use(a)
		}
		switch f.OpAt(k) {
		case ad.OpDivPP, ad.OpDivPV, ad.OpDivVP, ad.OpDivVV:
			g.needsDiv = true
		case ad.OpLt, ad.OpLe, ad.OpEq, ad.OpNe, ad.OpGe, ad.OpGt, ad.OpNot:
			g.needsCmp = true
		}
	}
	for _, a := range f.Range() {
		use(a)
	}
}

func (g *generator[V]) imports() []string {
	var paths []string
	if g.needsDiv {
		paths = append(paths, "errors")
	}
	if g.opts.TypeImport != "" {
		paths = append(paths, g.opts.TypeImport)
	}
	return paths
}

func operandExpr(a ad.Addr) string { return a.String() }

func (g *generator[V]) render() (string, error) {
	f := g.f
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated for a recorded operation sequence; do not edit.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", g.opts.Package)
	fmt.Fprintf(&b, "func %s(params, domain []%s) ([]%s, error) {\n",
		g.opts.Func, g.opts.Type, g.opts.Type)

	needBase := g.needsCmp
	for i, used := range g.usesCop {
		if used && f.Constants()[i].IsNaN() {
			needBase = true
		}
	}
	if needBase {
		fmt.Fprintf(&b, "\tvar base %s\n", g.opts.Type)
	}
	for i, v := range f.Constants() {
		if !g.usesCop[i] {
			continue
		}
		if v.IsNaN() {
			fmt.Fprintf(&b, "\tc%d := base.NaN()\n", i)
		} else {
			fmt.Fprintf(&b, "\tc%d := %s\n", i, g.opts.constExpr(v.String()))
		}
	}
	if g.needsCmp {
		b.WriteString("\tzero := base.Zero()\n")
		b.WriteString("\tone := base.One()\n")
	}

	if f.DypDomainLen() == 0 {
		b.WriteString("\t_ = params\n")
	}
	for j := 0; j < f.DypDomainLen(); j++ {
		fmt.Fprintf(&b, "\tp%d := params[%d]\n", j, j)
	}
	if f.DomainLen() == 0 {
		b.WriteString("\t_ = domain\n")
	}
	for j := 0; j < f.DomainLen(); j++ {
		fmt.Fprintf(&b, "\tv%d := domain[%d]\n", j, j)
	}

	for k := 0; k < f.OpLen(); k++ {
		var res string
		if k < f.DypOpCount() {
			res = fmt.Sprintf("p%d", f.DypDomainLen()+k)
		} else {
			res = fmt.Sprintf("v%d", f.DomainLen()+(k-f.DypOpCount()))
		}
		if err := g.renderOp(&b, f.OpAt(k), f.ArgsAt(k), res); err != nil {
			return "", err
		}
	}

	b.WriteString("\treturn []" + g.opts.Type + "{")
	for i, a := range f.Range() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(operandExpr(a))
	}
	b.WriteString("}, nil\n}\n")
	return b.String(), nil
}

var binaryMethod = map[ad.OpID]string{
	ad.OpAddPP: "Add", ad.OpAddPV: "Add", ad.OpAddVP: "Add", ad.OpAddVV: "Add",
	ad.OpSubPP: "Sub", ad.OpSubPV: "Sub", ad.OpSubVP: "Sub", ad.OpSubVV: "Sub",
	ad.OpMulPP: "Mul", ad.OpMulPV: "Mul", ad.OpMulVP: "Mul", ad.OpMulVV: "Mul",
	ad.OpDivPP: "Div", ad.OpDivPV: "Div", ad.OpDivVP: "Div", ad.OpDivVV: "Div",
}

var unaryMethod = map[ad.OpID]string{
	ad.OpNeg: "Neg", ad.OpExp: "Exp", ad.OpSin: "Sin", ad.OpCos: "Cos",
}

var cmpCond = map[ad.OpID]func(lhs, rhs string) string{
	ad.OpLt: func(l, r string) string { return fmt.Sprintf("%s.Less(%s)", l, r) },
	ad.OpLe: func(l, r string) string { return fmt.Sprintf("!%s.Less(%s)", r, l) },
	ad.OpEq: func(l, r string) string { return fmt.Sprintf("%s.Equal(%s)", l, r) },
	ad.OpNe: func(l, r string) string { return fmt.Sprintf("!%s.Equal(%s)", l, r) },
	ad.OpGe: func(l, r string) string { return fmt.Sprintf("!%s.Less(%s)", l, r) },
	ad.OpGt: func(l, r string) string { return fmt.Sprintf("%s.Less(%s)", r, l) },
}

func (g *generator[V]) renderOp(
	b *strings.Builder, op ad.OpID, arg []ad.Addr, res string,
) error {
	switch {
	case binaryMethod[op] != "":
		lhs, rhs := operandExpr(arg[0]), operandExpr(arg[1])
		if binaryMethod[op] == "Div" {
			fmt.Fprintf(b, "\tif %s.IsZero() {\n", rhs)
			b.WriteString("\t\treturn nil, errors.New(\"division by zero\")\n")
			b.WriteString("\t}\n")
		}
		fmt.Fprintf(b, "\t%s := %s.%s(%s)\n", res, lhs, binaryMethod[op], rhs)
	case unaryMethod[op] != "":
		fmt.Fprintf(b, "\t%s := %s.%s()\n",
			res, operandExpr(arg[0]), unaryMethod[op])
	case cmpCond[op] != nil:
		fmt.Fprintf(b, "\t%s := zero\n", res)
		fmt.Fprintf(b, "\tif %s {\n\t\t%s = one\n\t}\n",
			cmpCond[op](operandExpr(arg[0]), operandExpr(arg[1])), res)
	case op == ad.OpNot:
		fmt.Fprintf(b, "\t%s := zero\n", res)
		fmt.Fprintf(b, "\tif %s.IsZero() {\n\t\t%s = one\n\t}\n",
			operandExpr(arg[0]), res)
	case op == ad.OpNop:
		// nothing to evaluate
	default:
		return errors.Errorf("codegen: cannot render operator %q", op.Name())
	}
	return nil
}

// finish parses the rendered source, adds the imports the body needs
// and pretty-prints the result.
func finish(src string, imports []string) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "generated.go", src, parser.ParseComments)
	if err != nil {
		return nil, errors.Wrap(err, "codegen: generated source does not parse")
	}
	for _, path := range imports {
		astutil.AddImport(fset, file, path)
	}
	var out bytes.Buffer
	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&out, fset, file); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
