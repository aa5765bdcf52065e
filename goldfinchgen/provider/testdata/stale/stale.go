// Package stale refers to generated declarations that do not exist while
// generated files are excluded from loading.
package stale

//goldfinch:properties
type Person struct {
	Name string
}

func count(p Person) int {
	return len(p.Properties())
}

var _ = count
