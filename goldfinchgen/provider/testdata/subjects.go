package testdata

import (
	"time"

	"github.com/wowselim/goldfinch/goldfinchgen/provider/testdata/box"
)

// Person is the canonical scenario.
//
//goldfinch:properties visibility=internal placement=top
type Person struct {
	Name        string
	DateOfBirth time.Time
}

//goldfinch:properties
type Animal struct {
	Name string
}

type Level = int

// Kitchen has one field of every shape the resolver handles.
//
//goldfinch:properties visibility=public
type Kitchen struct {
	Wrapped  box.Wrapper[box.Inner[string]]
	Optional *string
	Twice    **int
	Tags     []string
	Scores   map[string]float64
	Grid     [3][3]int
	Pair     box.Pair[int, *time.Time]
	Callback func()
	Events   chan string
	Anon     struct{ X int }
	Reader   interface{ Read([]byte) (int, error) }
	Any      any
	Err      error
	_        int
	time.Duration
	Level Level
	Self  *Kitchen
}

// Holder is generic, so it cannot carry generated methods; the provider still
// extracts it.
//
//goldfinch:properties
type Holder[T any] struct {
	Items box.List[T]
	Value T
	Count int
}

//goldfinch:properties
type hidden struct {
	secret string
}

//goldfinch:properties
type Empty struct {
	fn func()
}

//goldfinch:properties placement=top
type Clash struct {
	Name string
}

func (Clash) Properties() []string { return nil }

func build() {
	//goldfinch:properties
	type point struct{ X, Y int }
	_ = point{}
}

var _ = build
