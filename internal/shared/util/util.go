package util

import (
	"fmt"
	"unicode"
)

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsPythonKeyword reports whether name is a reserved keyword.
func IsPythonKeyword(name string) bool {
	return pythonKeywords[name]
}

// IsIdentifier reports whether name is a valid Python identifier.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// UniqueRedefinitionName returns a name of the form "name-redefinition" that
// does not collide with an existing key in taken.
func UniqueRedefinitionName(name string, taken func(string) bool) string {
	candidate := name + "-redefinition"
	if !taken(candidate) {
		return candidate
	}
	for i := 2; ; i++ {
		candidate = fmt.Sprintf("%s-redefinition%d", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
