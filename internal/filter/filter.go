// Package filter decides which file names in a source folder are modules
// worth decompiling.
package filter

import "strings"

// Set is an ordered collection of literal name prefixes. Matching is
// case-sensitive and never interprets glob characters.
type Set struct {
	prefixes []string
}

func New(prefixes ...string) Set {
	out := make([]string, 0, len(prefixes))
	seen := make(map[string]bool, len(prefixes))
	for _, p := range prefixes {
		v := strings.TrimSpace(p)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return Set{prefixes: out}
}

// ParseList splits a semicolon-joined prefix string such as
// "Microsoft.;System.".
func ParseList(raw string) Set {
	return New(strings.Split(raw, ";")...)
}

func (s Set) Prefixes() []string {
	return append([]string(nil), s.prefixes...)
}

func (s Set) String() string {
	return strings.Join(s.prefixes, ";")
}

func (s Set) Len() int {
	return len(s.prefixes)
}

// Excluded reports whether name starts with any prefix in the set.
func (s Set) Excluded(name string) bool {
	for _, p := range s.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Filter combines the prefix set with the module extension.
type Filter struct {
	Prefixes  Set
	Extension string
}

// Match is true iff name ends with the module extension, has a non-empty
// stem, and is not excluded by a prefix.
func (f Filter) Match(name string) bool {
	if !strings.HasSuffix(name, f.Extension) {
		return false
	}
	if Stem(name, f.Extension) == "" {
		return false
	}
	return !f.Prefixes.Excluded(name)
}

// Select keeps the matching names in their original order.
func (f Filter) Select(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if f.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// Stem strips one trailing extension and keeps every other dot, so
// "System.Core.dll" becomes "System.Core".
func Stem(name, ext string) string {
	return strings.TrimSuffix(name, ext)
}
