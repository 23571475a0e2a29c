// Package emit renders a generation model and its buffer-operation
// program as Go source.
package emit

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/vmgen/internal/bufop"
	"github.com/agentic-research/vmgen/internal/model"
	"github.com/agentic-research/vmgen/schema"
)

const (
	header     = "// Code generated by vmgen. DO NOT EDIT.\n\n"
	schemaPkg  = "github.com/agentic-research/vmgen/schema"
	runtimePkg = "github.com/agentic-research/vmgen/vm"
)

// File is one generated source file.
type File struct {
	Name    string
	Content []byte
}

// Options control emitted file names and package.
type Options struct {
	// Package is the package clause of the output. Defaults to the
	// override source's package, then "main".
	Package string
	// Base prefixes the file names. Defaults to the lower-cased root name.
	Base string
}

func (o Options) withDefaults(m *model.Model) Options {
	if o.Package == "" && m.Behavior != nil {
		o.Package = m.Behavior.Package
	}
	if o.Package == "" {
		o.Package = "main"
	}
	if o.Base == "" {
		o.Base = strings.ToLower(m.RootClass().Name)
	}
	return o
}

// Emit renders <base>_codec.go and <base>_vm.go.
func Emit(m *model.Model, p *bufop.Program, opts Options) ([]File, error) {
	opts = opts.withDefaults(m)

	codec, err := Format(Codec(m, p, opts.Package))
	if err != nil {
		return nil, fmt.Errorf("emit %s codec: %w", m.RootClass().Name, err)
	}
	classes, err := Format(Classes(m, opts.Package))
	if err != nil {
		return nil, fmt.Errorf("emit %s classes: %w", m.RootClass().Name, err)
	}
	return []File{
		{Name: opts.Base + "_codec.go", Content: codec},
		{Name: opts.Base + "_vm.go", Content: classes},
	}, nil
}

// gen accumulates unformatted source.
type gen struct {
	buf bytes.Buffer
}

func (g *gen) printf(format string, args ...any) {
	fmt.Fprintf(&g.buf, format, args...)
}

// line writes a fragment on its own lines; empty fragments are dropped.
func (g *gen) line(s string) {
	if s == "" {
		return
	}
	g.buf.WriteString(s)
	g.buf.WriteByte('\n')
}

func templateVar(c *model.Class) string {
	return model.Unexported(c.Name) + "Template"
}

func schemaConst(m *model.Model) string {
	return model.Unexported(m.RootClass().Name) + "Schema"
}

// lookupPath is the schema path of a class template; array element
// classes are addressed through an index.
func lookupPath(c *model.Class) string {
	if c.Parent == nil {
		return ""
	}
	for _, s := range c.Parent.Plan {
		if s.Child == c {
			p := lookupPath(c.Parent)
			p = schema.Join(p, s.Prop.Name)
			if s.Kind == schema.KindArray {
				p += "[0]"
			}
			return p
		}
	}
	return c.Path
}

// Codec renders the codec file: the schema template, one encode and
// decode function per distinct class shape, and the root codec
// constructor. It depends only on the schema and vm packages.
func Codec(m *model.Model, p *bufop.Program, pkg string) []byte {
	g := &gen{}
	rc := m.RootClass()
	g.printf("%spackage %s\n\n", header, pkg)
	g.printf("import (\n%q\n%q\n)\n\n", schemaPkg, runtimePkg)

	g.printf("const %s = %s\n\n", schemaConst(m), strconv.Quote(string(schema.Format(m.Root))))

	g.printf("var %s = schema.MustParse([]byte(%s))\n\n", templateVar(rc), schemaConst(m))
	for _, c := range m.Classes[1:] {
		if len(c.Computed()) == 0 {
			continue
		}
		g.printf("var %s = schema.MustLookup(%s, %q)\n\n", templateVar(c), templateVar(rc), lookupPath(c))
	}

	for _, r := range p.Owned() {
		g.printf("func %s(w *vm.Writer, in *vm.Instance, mode vm.Mode) {\n", r.EncodeFunc)
		g.node(p, r.Encode)
		g.printf("}\n\n")
		g.printf("func %s(r *vm.Reader, in *vm.Instance) error {\n", r.DecodeFunc)
		g.node(p, r.Decode)
		g.printf("}\n\n")
	}

	root := p.Roots[rc.Index]
	g.printf("// New%sCodec returns the codec of %s view-models.\n", rc.Name, rc.Name)
	g.printf("func New%sCodec(opts ...vm.CodecOption) vm.Codec {\n", rc.Name)
	g.printf("return vm.NewCodec(%s, %s, %s, opts...)\n}\n", templateVar(rc), root.EncodeFunc, root.DecodeFunc)
	return g.buf.Bytes()
}

// node writes the fragments of a subtree. A GrowAndRetry node writes its
// Emit children as one retried unit, then its structural children.
func (g *gen) node(p *bufop.Program, id bufop.NodeID) {
	n := p.Node(id)
	g.line(n.Pre)
	if n.Op == bufop.ScopedCursor && n.Ref != bufop.None {
		return
	}
	if n.Op == bufop.GrowAndRetry {
		var emits []string
		var rest []bufop.NodeID
		for _, c := range n.Children {
			if cn := p.Node(c); cn.Op == bufop.Emit {
				emits = append(emits, cn.Pre)
			} else {
				rest = append(rest, c)
			}
		}
		g.printf("w.Try(func() bool {\nreturn %s\n})\n", strings.Join(emits, " &&\n"))
		for _, c := range rest {
			g.node(p, c)
		}
	} else {
		for _, c := range n.Children {
			g.node(p, c)
		}
	}
	g.line(n.Post)
}

var goTypes = map[schema.Kind]string{
	schema.KindString:  "string",
	schema.KindInteger: "int64",
	schema.KindFloat:   "float64",
	schema.KindBoolean: "bool",
}

var accessors = map[schema.Kind]string{
	schema.KindString:  "String",
	schema.KindInteger: "Int",
	schema.KindFloat:   "Float",
	schema.KindBoolean: "Bool",
}

// Classes renders the view-model file: value classes with their
// accessors, input dispatch, computed bindings, and the root constructor.
func Classes(m *model.Model, pkg string) []byte {
	g := &gen{}
	rc := m.RootClass()
	g.printf("%spackage %s\n\n", header, pkg)
	g.printf("import %q\n\n", runtimePkg)

	for _, c := range m.Classes {
		if !c.Substituted {
			if c.Parent == nil {
				g.printf("// %s is a view-model of the %s schema.\n", c.Name, m.Root.Name)
			} else {
				g.printf("// %s is the view-model of %s.\n", c.Name, c.Path)
			}
			g.printf("type %s struct {\nvm.Object\n}\n\n", c.Name)
		}
		g.members(c)
		g.input(c)
	}

	binder := hasComputed(m)
	if binder {
		g.binder(m)
	}

	g.printf("// New%s returns a %s with default values.\n", rc.Name, rc.Name)
	g.printf("func New%s() %s {\n", rc.Name, rc.Name)
	if binder {
		g.printf("return %s{Object: vm.Object{In: vm.New(%s, vm.WithBinder(bind%s))}}\n}\n\n", rc.Name, templateVar(rc), rc.Name)
	} else {
		g.printf("return %s{Object: vm.Object{In: vm.New(%s)}}\n}\n\n", rc.Name, templateVar(rc))
	}

	g.printf("// Decode%s reads a full payload with c into a new %s.\n", rc.Name, rc.Name)
	g.printf("func Decode%s(c vm.Codec, data []byte) (%s, error) {\n", rc.Name, rc.Name)
	g.printf("o := New%s()\nif err := c.Apply(o.In, data); err != nil {\nreturn %s{}, err\n}\nreturn o, nil\n}\n", rc.Name, rc.Name)
	return g.buf.Bytes()
}

func wrap(c *model.Class, expr string) string {
	return fmt.Sprintf("%s{Object: vm.Object{In: %s}}", c.Name, expr)
}

func (g *gen) members(c *model.Class) {
	for _, s := range c.Plan {
		mb := s.Members
		switch s.Kind {
		case schema.KindObject:
			g.printf("func (o %s) %s() %s {\nreturn %s\n}\n\n", c.Name, mb.Get, s.Child.Name, wrap(s.Child, fmt.Sprintf("o.In.Object(%d)", s.Slot)))
		case schema.KindArray:
			el := s.Child
			g.printf("func (o %s) %s(i int) %s {\nreturn %s\n}\n\n", c.Name, mb.Get, el.Name, wrap(el, fmt.Sprintf("o.In.Array(%d)[i]", s.Slot)))
			g.printf("func (o %s) %s() int {\nreturn o.In.Len(%d)\n}\n\n", c.Name, mb.Len, s.Slot)
			g.printf("func (o %s) %s() %s {\nreturn %s\n}\n\n", c.Name, mb.Add, el.Name, wrap(el, fmt.Sprintf("o.In.Append(%d)", s.Slot)))
			g.printf("func (o %s) %s(i int) {\no.In.RemoveAt(%d, i)\n}\n\n", c.Name, mb.Remove, s.Slot)
			g.printf("func (o %s) %s() {\no.In.Clear(%d)\n}\n\n", c.Name, mb.Clear, s.Slot)
		default:
			if s.Computed() {
				continue
			}
			typ, acc := goTypes[s.Kind], accessors[s.Kind]
			g.printf("func (o %s) %s() %s {\nreturn o.In.Get%s(%d)\n}\n\n", c.Name, mb.Get, typ, acc, s.Slot)
			g.printf("func (o %s) %s(v %s) {\no.In.Set%s(%d, v)\n}\n\n", c.Name, mb.Set, typ, acc, s.Slot)
		}
	}
}

func (g *gen) input(c *model.Class) {
	var handled []model.Step
	for _, s := range c.Plan {
		if s.Handler != nil {
			handled = append(handled, s)
		}
	}
	g.printf("// Input applies a client-side change to the named property of %s.\n", c.Name)
	g.printf("func (o %s) Input(name string, v any) error {\n", c.Name)
	if len(handled) > 0 {
		g.printf("switch name {\n")
		for _, s := range handled {
			g.printf("case %q:\nx, err := vm.As[%s](v, %q)\nif err != nil {\nreturn err\n}\no.%s(x)\nreturn nil\n",
				s.Prop.Name, s.Handler.Type, s.Prop.Name, s.Handler.Member)
		}
		g.printf("}\n")
	}
	g.printf("return o.In.Input(name, v)\n}\n\n")
}

func hasComputed(m *model.Model) bool {
	for _, c := range m.Classes {
		if len(c.Computed()) > 0 {
			return true
		}
	}
	return false
}

// binder binds the hand-written accessors of every class with computed
// properties to new instances of that class.
func (g *gen) binder(m *model.Model) {
	rc := m.RootClass()
	g.printf("func bind%s(in *vm.Instance) {\n", rc.Name)
	g.printf("switch in.Template() {\n")
	for _, c := range m.Classes {
		if len(c.Computed()) == 0 {
			continue
		}
		g.printf("case %s:\n", templateVar(c))
		g.printf("o := %s\n", wrap(c, "in"))
		for _, s := range c.Plan {
			if !s.Computed() {
				continue
			}
			g.printf("in.Bind(%d, func() any { return %s(o.%s()) })\n", s.Slot, goTypes[s.Kind], s.Accessor.Member)
		}
	}
	g.printf("}\n}\n\n")
}
