package provider

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
)

// parseTypeExpr parses a type as spelled in runtime type names, where named
// types are qualified by full import path:
//
//	int
//	*github.com/acme/box.Inner[string]
//	map[string][]time.Duration
//
// Type literals that cannot be named (func, chan, struct, non-empty
// interface) report false. Package names are guessed from import paths.
func parseTypeExpr(s string) (schema.TypeDescriptor, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return schema.TypeDescriptor{}, false

	case strings.HasPrefix(s, "*"):
		elem, ok := parseTypeExpr(s[1:])
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Pointer(elem), true

	case strings.HasPrefix(s, "[]"):
		elem, ok := parseTypeExpr(s[2:])
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Slice(elem), true

	case strings.HasPrefix(s, "["):
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return schema.TypeDescriptor{}, false
		}
		n, err := strconv.ParseInt(s[1:end], 10, 64)
		if err != nil {
			return schema.TypeDescriptor{}, false
		}
		elem, ok := parseTypeExpr(s[end+1:])
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Array(elem, n), true

	case strings.HasPrefix(s, "map["):
		end := matchBracket(s, len("map"))
		if end < 0 {
			return schema.TypeDescriptor{}, false
		}
		key, ok := parseTypeExpr(s[len("map["):end])
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		value, ok := parseTypeExpr(s[end+1:])
		if !ok {
			return schema.TypeDescriptor{}, false
		}
		return schema.Map(key, value), true

	case s == "interface {}" || s == "interface{}" || s == "any":
		return schema.Predeclared("any"), true

	case strings.HasPrefix(s, "func("),
		strings.HasPrefix(s, "chan "),
		strings.HasPrefix(s, "<-chan "),
		strings.HasPrefix(s, "struct {"),
		strings.HasPrefix(s, "struct{"),
		strings.HasPrefix(s, "interface {"),
		strings.HasPrefix(s, "interface{"):
		return schema.TypeDescriptor{}, false
	}

	base, args := splitTypeArgs(s)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 {
		if !isIdent(base) || args != "" {
			return schema.TypeDescriptor{}, false
		}
		return schema.Predeclared(base), true
	}

	path, name := base[:dot], base[dot+1:]
	if !isIdent(name) {
		return schema.TypeDescriptor{}, false
	}

	var resolved []schema.TypeDescriptor
	dropped := false
	if args != "" {
		for _, arg := range splitTopLevel(args) {
			d, ok := parseTypeExpr(arg)
			if !ok {
				dropped = true
				continue
			}
			resolved = append(resolved, d)
		}
	}
	d := schema.Named(path, guessPackageName(path), name, resolved...)
	d.Partial = d.Partial || dropped
	return d, true
}

// splitTypeArgs splits "Box[int,string]" into "Box" and "int,string".
func splitTypeArgs(s string) (base, args string) {
	i := strings.IndexByte(s, '[')
	if i < 0 || !strings.HasSuffix(s, "]") {
		return s, ""
	}
	return s[:i], s[i+1 : len(s)-1]
}

// splitTopLevel splits a comma separated list, ignoring commas nested in
// brackets, parentheses, or braces.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// matchBracket returns the index of the ']' matching the '[' at s[open].
func matchBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// guessPackageName derives a package name from an import path, skipping
// major version suffixes: "github.com/acme/box/v2" → "box",
// "gopkg.in/yaml.v3" → "yaml". The result is always a valid identifier; it
// is only used as an import alias, so a wrong guess still compiles.
func guessPackageName(path string) string {
	elems := strings.Split(path, "/")
	last := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(last) {
		last = elems[len(elems)-2]
	}
	if i := strings.LastIndex(last, ".v"); i > 0 && isMajorVersion(last[i+1:]) {
		last = last[:i]
	}

	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, last)
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	return name
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
