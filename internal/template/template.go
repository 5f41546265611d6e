// Package template expands the placeholders allowed in manifest artifact
// URLs, checksums and shell commands. Only {version}, {os} and {arch} are
// recognised; shell expansions such as ${HOME} are left alone.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	Version = "version"
	OS      = "os"
	Arch    = "arch"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type Values struct {
	Version string
	OS      string
	Arch    string
}

func (v Values) lookup(name string) (string, bool) {
	switch name {
	case Version:
		return v.Version, true
	case OS:
		return v.OS, true
	case Arch:
		return v.Arch, true
	}
	return "", false
}

type UnknownPlaceholderError struct {
	Name     string
	Template string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("unknown placeholder {%s} in %q", e.Name, e.Template)
}

// Placeholders returns the placeholder names used in s, in order of
// appearance.
func Placeholders(s string) []string {
	var names []string
	for _, m := range matches(s) {
		names = append(names, s[m[2]:m[3]])
	}
	return names
}

func Validate(s string) error {
	for _, name := range Placeholders(s) {
		if _, ok := (Values{}).lookup(name); !ok {
			return &UnknownPlaceholderError{Name: name, Template: s}
		}
	}
	return nil
}

func Expand(s string, v Values) string {
	ms := matches(s)
	if len(ms) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range ms {
		value, ok := v.lookup(s[m[2]:m[3]])
		if !ok {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func ExpandAll(ss []string, v Values) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = Expand(s, v)
	}
	return out
}

// matches skips ${...} so shell parameter expansion survives.
func matches(s string) [][]int {
	var out [][]int
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > 0 && s[m[0]-1] == '$' {
			continue
		}
		out = append(out, m)
	}
	return out
}
