package models

import "fmt"

type EmbedKind string

const (
	KindScripted EmbedKind = "scripted"
	KindFramed   EmbedKind = "framed"
)

// Position locates a directive inside a document body.
type Position struct {
	Index    int // ordinal among the body's directives, starting at 0
	Line     int // 1-based line in the body
	Offset   int // byte offset of the directive span
	Length   int // byte length of the directive span
	FileLine int // 1-based line in the source file, 0 when unknown
}

// SourceLine is the line to report to an author: the line in the source
// file when known, the body line otherwise.
func (p Position) SourceLine() int {
	if p.FileLine > 0 {
		return p.FileLine
	}
	return p.Line
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, embed #%d", p.Line, p.Index+1)
}

// Embed is a chart widget placed in a document body.
type Embed interface {
	Kind() EmbedKind
	Pos() Position
}

type Point struct {
	X float64
	Y float64
}

type Trace struct {
	Type   string
	Points []Point
}

// ScriptedChart is drawn client side by the charting library.
type ScriptedChart struct {
	Position
	TargetID   string
	LibraryURL string
	Traces     []Trace
}

func (c ScriptedChart) Kind() EmbedKind { return KindScripted }
func (c ScriptedChart) Pos() Position   { return c.Position }

// Attr is one authored attribute, kept verbatim.
type Attr struct {
	Key string
	Val string
}

// FramedChart nests a separately hosted, pre-rendered chart page.
type FramedChart struct {
	Position
	Src         string
	Width       string
	Height      string
	FrameBorder string
	Attrs       []Attr
}

func (c FramedChart) Kind() EmbedKind { return KindFramed }
func (c FramedChart) Pos() Position   { return c.Position }
