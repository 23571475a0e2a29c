package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personBehavior = `package people

import "strings"

// FullName is derived from the name parts.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName() + " " + p.LastName())
}

func (p *Person) HandleAge(v int64) {
	if v < 0 {
		v = 0
	}
	p.SetAge(v)
}

func (p Person) helper() string { return "" }

func (p Person) Describe(prefix string) string { return prefix }

// Home is the address class.
//vm:bind Address
type Home struct {
	Object
}

func (h Home) Label() string { return h.Street() }

type PersonItems struct{ Object }

func (i PersonItems) Upper() string { return "" }

type unrelated int

func (u unrelated) Value() int { return int(u) }

func (o Other) Ignored() string { return "" }
`

func TestAnalyze_Person(t *testing.T) {
	d, err := Analyze("Person", []byte(personBehavior))
	require.NoError(t, err)

	assert.Equal(t, "Person", d.Class)
	assert.Equal(t, "people", d.Package)

	subs := d.Substitutions()
	require.Len(t, subs, 3)
	assert.Equal(t, Entry{Kind: Substitution, Path: "Address", Member: "Home", Line: 23, Column: 6}, subs[0])
	assert.Equal(t, "PersonItems", subs[1].Member)
	assert.Empty(t, subs[1].Path, "unannotated types are by-name candidates")
	assert.Equal(t, "unrelated", subs[2].Member)

	members := d.Members("Person")
	require.Len(t, members, 2)
	assert.Equal(t, Accessor, members[0].Kind)
	assert.Equal(t, "FullName", members[0].Path)
	assert.Equal(t, "string", members[0].Type)
	assert.Equal(t, 6, members[0].Line)

	assert.Equal(t, Handler, members[1].Kind)
	assert.Equal(t, "Age", members[1].Path)
	assert.Equal(t, "int64", members[1].Type)
	assert.True(t, members[1].Pointer)

	home := d.Members("Home")
	require.Len(t, home, 1)
	assert.Equal(t, "Label", home[0].Path)

	assert.Len(t, d.Members("PersonItems"), 1)
	assert.Empty(t, d.Members("Other"), "methods on undeclared types are ignored")
	assert.Len(t, d.Members("unrelated"), 1)
}

func TestAnalyze_Deterministic(t *testing.T) {
	a, err := Analyze("Person", []byte(personBehavior))
	require.NoError(t, err)
	b, err := Analyze("Person", []byte(personBehavior))
	require.NoError(t, err)
	assert.Equal(t, a.Key(), b.Key())
}

func TestAnalyze_Empty(t *testing.T) {
	d, err := Analyze("Person", nil)
	require.NoError(t, err)
	assert.Empty(t, d.Entries)
}

func TestAnalyze_ParseError(t *testing.T) {
	_, err := Analyze("Person", []byte("package p\n\nfunc (p Person) Broken( {\n"))
	require.Error(t, err)
	var pe *BehaviorParseError
	require.ErrorAs(t, err, &pe)
	assert.GreaterOrEqual(t, pe.Line, 3)
	assert.Positive(t, pe.Column)
}

func TestAnalyze_DirectiveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"empty path", "package p\n\n//vm:bind\ntype A struct{}\n", 3},
		{"group", "package p\n\n//vm:bind Address\ntype (\n\tA struct{}\n\tB struct{}\n)\n", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze("Person", []byte(tt.src))
			var pe *BehaviorParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestAnalyze_DetachedDirective(t *testing.T) {
	src := "package p\n\n//vm:bind Address\n\ntype A struct{}\n"
	d, err := Analyze("Person", []byte(src))
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	assert.Empty(t, d.Entries[0].Path)
}

func TestLint(t *testing.T) {
	src := `package p

func (p Person) HandleName(a, b string) {}

func (p Person) Total(x int) int { return x }

func (p Person) Reset() {}

func (p Person) Good() int { return 1 }

func (p Person) HandleGood(v string) {}

func (o other) HandleBad() {}

//vm:bind Items

func orphan() {}
`
	diags, err := Lint("Person", []byte(src))
	require.NoError(t, err)
	require.Len(t, diags, 4)
	assert.Equal(t, "line 3: HandleName takes 2 parameters; handlers take exactly one", diags[0].String())
	assert.Contains(t, diags[1].Message, "Total takes parameters")
	assert.Contains(t, diags[2].Message, "Reset returns nothing")
	assert.Contains(t, diags[3].Message, "vm:bind is not attached")
}
