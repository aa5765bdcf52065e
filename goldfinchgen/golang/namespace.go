package golang

import (
	"go/token"
	"iter"
	"strconv"
)

// namespace tracks the identifiers in use in a generated file.
type namespace map[string]struct{}

func newNamespace(names ...string) namespace {
	ns := make(namespace, len(names))
	for _, name := range names {
		ns.reserve(name)
	}
	return ns
}

// reserve marks name as used. It returns false if name was already taken.
func (ns namespace) reserve(name string) bool {
	if _, ok := ns[name]; ok {
		return false
	}
	ns[name] = struct{}{}
	return true
}

// name returns the first free alternative of name and reserves it. Keywords
// and the blank identifier are never returned.
//
// Panics if name is empty.
func (ns namespace) name(name string) string {
	if name == "" {
		panic("empty name")
	}
	if name == "_" || token.Lookup(name).IsKeyword() {
		name += "_"
	}
	for candidate := range disambiguate(name) {
		if ns.reserve(candidate) {
			return candidate
		}
	}
	panic("unreachable")
}

// disambiguate yields name followed by numbered alternatives: box, box2,
// box3. Names already ending in a digit get a separator: v3, v3_2.
func disambiguate(name string) iter.Seq[string] {
	if name == "" {
		panic("empty name")
	}
	return func(yield func(string) bool) {
		if !yield(name) {
			return
		}

		sep := ""
		if last := name[len(name)-1]; last >= '0' && last <= '9' {
			sep = "_"
		}
		for i := 2; ; i++ {
			if !yield(name + sep + strconv.Itoa(i)) {
				return
			}
		}
	}
}
