package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"typewatch/internal/engine/sem"
)

// Format-string checking rides the method hook contract: the receiver of
// str.__mod__ or str.format carries the format string as a literal type, so
// the hook can parse it without access to the original expression.

// percentFormatRe matches printf-style conversion specifiers. It is
// intentionally a bit wider than the language accepts, to report better
// errors instead of silently not matching.
var percentFormatRe = regexp.MustCompile(
	`%(\(([^()]*)\))?([#0\-+ ]*)(\*|[1-9][0-9]*)?(?:\.(\*|[0-9]+)?)?[hlL]?(.)?`)

// newFormatRe matches str.format replacement fields (the part between the
// braces).
var newFormatRe = regexp.MustCompile(
	`^(?P<field>(?P<key>[^.\[!:]*)([^:!]+)?)(?P<conversion>![^:])?(?P<spec>:.*)?$`)

var supportedTypesOld = map[string]bool{
	"d": true, "i": true, "o": true, "u": true, "x": true, "X": true,
	"e": true, "E": true, "f": true, "F": true, "g": true, "G": true,
	"c": true, "r": true, "s": true, "a": true, "b": true, "%": true,
}

var requireIntOld = map[string]bool{"o": true, "x": true, "X": true}

// ConversionSpecifier is the parsed form of one replacement field, created
// per format-string parse and discarded after the call is checked.
type ConversionSpecifier struct {
	Key       string
	HasKey    bool
	Flags     string
	Width     string
	Precision string
	Type      string

	// Field and Conversion are only used for str.format replacement fields.
	Field      string
	Conversion string
	FormatSpec string
}

func (c ConversionSpecifier) HasStar() bool {
	return c.Width == "*" || c.Precision == "*"
}

// ParseConversionSpecifiers extracts every printf-style specifier from a
// format string.
func ParseConversionSpecifiers(format string) []ConversionSpecifier {
	var out []ConversionSpecifier
	for _, m := range percentFormatRe.FindAllStringSubmatch(format, -1) {
		out = append(out, ConversionSpecifier{
			Key:       m[2],
			HasKey:    m[1] != "",
			Flags:     m[3],
			Width:     m[4],
			Precision: m[5],
			Type:      m[6],
		})
	}
	return out
}

// ParseFormatFields extracts str.format replacement fields from between
// braces, expanding doubled braces first.
func ParseFormatFields(format string) []ConversionSpecifier {
	var out []ConversionSpecifier
	depth := 0
	start := 0
	literal := strings.ReplaceAll(strings.ReplaceAll(format, "{{", ""), "}}", "")
	for i, r := range literal {
		switch r {
		case '{':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case '}':
			depth--
			if depth == 0 {
				out = append(out, parseFormatField(literal[start:i]))
			}
		}
	}
	return out
}

func parseFormatField(field string) ConversionSpecifier {
	m := newFormatRe.FindStringSubmatch(field)
	if m == nil {
		return ConversionSpecifier{Field: field}
	}
	groups := make(map[string]string)
	for i, name := range newFormatRe.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	return ConversionSpecifier{
		Key:        groups["key"],
		HasKey:     groups["key"] != "",
		Field:      groups["field"],
		Conversion: groups["conversion"],
		FormatSpec: groups["spec"],
	}
}

// strModCallback type checks printf-style interpolation at a str.__mod__
// call site. The format string must be statically known (a literal type on
// the receiver); otherwise the default inference stands.
func strModCallback(ctx MethodContext) sem.Type {
	format, ok := literalString(ctx.Type)
	if !ok {
		return ctx.DefaultReturnType
	}
	specifiers := ParseConversionSpecifiers(format)
	checkPercentFormat(ctx, specifiers)
	return ctx.DefaultReturnType
}

func checkPercentFormat(ctx MethodContext, specifiers []ConversionSpecifier) {
	hasMapping := false
	hasPositional := false
	for _, spec := range specifiers {
		if spec.Type == "%" {
			continue
		}
		if spec.Type == "" {
			ctx.API.Fail("Invalid conversion specifier in format string", ctx.Span)
			return
		}
		if !supportedTypesOld[spec.Type] {
			ctx.API.Fail(fmt.Sprintf("Unsupported format character %q", spec.Type), ctx.Span)
			return
		}
		if spec.HasKey {
			hasMapping = true
		} else {
			hasPositional = true
		}
	}
	if hasMapping && hasPositional {
		ctx.API.Fail("String interpolation mixes specifier with and without mapping keys", ctx.Span)
		return
	}
	if hasMapping {
		// Mapping-keyed interpolation takes a dict operand; per-key checking
		// needs literal key types and is out of scope here.
		return
	}

	// Each * width or precision consumes one extra replacement.
	needed := 0
	for _, spec := range specifiers {
		if spec.Type == "%" {
			continue
		}
		needed++
		if spec.Width == "*" {
			needed++
		}
		if spec.Precision == "*" {
			needed++
		}
	}

	operands := percentOperands(ctx)
	if operands == nil {
		return
	}
	if needed > len(operands) {
		ctx.API.Fail("Not enough arguments for format string", ctx.Span)
		return
	}
	if needed < len(operands) {
		ctx.API.Fail("Not all arguments converted during string formatting", ctx.Span)
		return
	}

	intType := ctx.API.NamedGenericType("builtins.int", nil)
	i := 0
	for _, spec := range specifiers {
		if spec.Type == "%" {
			continue
		}
		if spec.Width == "*" {
			checkIntOperand(ctx, operands[i], intType, "*")
			i++
		}
		if spec.Precision == "*" {
			checkIntOperand(ctx, operands[i], intType, "*")
			i++
		}
		if requireIntOld[spec.Type] {
			checkIntOperand(ctx, operands[i], intType, spec.Type)
		}
		i++
	}
}

func checkIntOperand(ctx MethodContext, operand sem.Type, intType *sem.Instance, where string) {
	if !sem.IsSubtype(operand, intType) {
		ctx.API.Fail(fmt.Sprintf(
			"Incompatible types in string interpolation (expression has type %q, placeholder %q requires %q)",
			operand.String(), where, intType.String()), ctx.Span)
	}
}

// percentOperands flattens the right operand of % into the list of
// replacement types: a tuple contributes its items, anything else is a
// single replacement. A non-literal tuple type defeats counting and yields
// nil.
func percentOperands(ctx MethodContext) []sem.Type {
	operand, ok := FirstArg(ctx.ArgTypes)
	if !ok {
		return nil
	}
	if tuple, isTuple := operand.(*sem.TupleType); isTuple {
		return tuple.Items
	}
	if _, isAny := operand.(*sem.AnyType); isAny {
		return nil
	}
	return []sem.Type{operand}
}

// strFormatCallback checks new-style str.format calls: field numbering
// consistency and replacement arity for automatically numbered fields.
func strFormatCallback(ctx MethodContext) sem.Type {
	format, ok := literalString(ctx.Type)
	if !ok {
		return ctx.DefaultReturnType
	}
	fields := ParseFormatFields(format)

	auto := 0
	manual := false
	maxIndex := -1
	for _, field := range fields {
		switch {
		case field.Key == "":
			auto++
		case isDecimal(field.Key):
			manual = true
			idx := 0
			fmt.Sscanf(field.Key, "%d", &idx)
			if idx > maxIndex {
				maxIndex = idx
			}
		}
		// Named fields are matched by keyword arguments and not counted.
	}

	if auto > 0 && manual {
		ctx.API.Fail("Cannot combine automatic field numbering and manual field specification", ctx.Span)
		return ctx.DefaultReturnType
	}

	positional := countPositional(ctx)
	if auto > 0 && positional < auto {
		ctx.API.Fail("Cannot find replacement for positional format specifier", ctx.Span)
	} else if manual && positional <= maxIndex {
		ctx.API.Fail(fmt.Sprintf("Cannot find replacement for positional format specifier %d", maxIndex), ctx.Span)
	}
	return ctx.DefaultReturnType
}

func countPositional(ctx MethodContext) int {
	n := 0
	for _, exprs := range ctx.Args {
		n += len(exprs)
	}
	return n
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func literalString(typ sem.Type) (string, bool) {
	lit, ok := typ.(*sem.LiteralType)
	if !ok {
		return "", false
	}
	s, ok := lit.Value.(string)
	return s, ok
}
