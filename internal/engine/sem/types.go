package sem

import (
	"fmt"
	"strings"
)

// Type is the representation of a Python type as seen by the analyzer.
// UnboundType is the only pre-analysis form; every other implementation is
// produced by semantic analysis or synthesis.
type Type interface {
	typ()
	String() string
}

// AnyReason records why a type ended up being Any. It matters for
// diagnostics: an Any that came from an error must not trigger follow-up
// errors downstream.
type AnyReason int

const (
	AnyUnannotated AnyReason = iota
	AnyExplicit
	AnySpecialForm
	AnyFromError
	AnyImplementationArtifact
)

type AnyType struct {
	Reason AnyReason
}

func (*AnyType) typ()           {}
func (*AnyType) String() string { return "Any" }

func AnyFromReason(reason AnyReason) *AnyType { return &AnyType{Reason: reason} }

type NoneType struct{}

func (*NoneType) typ()           {}
func (*NoneType) String() string { return "None" }

// UnboundType is a type annotation as written in source, before name
// resolution. Stripping restores nodes to carry these.
type UnboundType struct {
	Name string
	Args []Type
}

func (*UnboundType) typ() {}
func (t *UnboundType) String() string {
	if len(t.Args) == 0 {
		return t.Name + "?"
	}
	return fmt.Sprintf("%s?[%s]", t.Name, typeListString(t.Args))
}

// Instance is a reference to a class, possibly with type arguments.
type Instance struct {
	Info *TypeInfo
	Args []Type
}

func (*Instance) typ() {}
func (t *Instance) String() string {
	if len(t.Args) == 0 {
		return t.Info.FullName
	}
	return fmt.Sprintf("%s[%s]", t.Info.FullName, typeListString(t.Args))
}

// TupleType is a fixed-length heterogeneous tuple. Fallback is the generic
// builtins.tuple instance used where a nominal type is required.
type TupleType struct {
	Items    []Type
	Fallback *Instance
}

func (*TupleType) typ() {}
func (t *TupleType) String() string {
	return fmt.Sprintf("Tuple[%s]", typeListString(t.Items))
}

type ArgKind int

const (
	ArgPos ArgKind = iota
	ArgOpt
	ArgStar
	ArgNamed
	ArgStar2
	ArgNamedOpt
)

func (k ArgKind) IsPositional() bool { return k == ArgPos || k == ArgOpt || k == ArgStar }
func (k ArgKind) IsNamed() bool      { return k == ArgNamed || k == ArgNamedOpt || k == ArgStar2 }
func (k ArgKind) IsOptional() bool   { return k == ArgOpt || k == ArgNamedOpt }
func (k ArgKind) IsStar() bool       { return k == ArgStar || k == ArgStar2 }

// CallableType is the signature of a function or method.
type CallableType struct {
	Name     string
	ArgTypes []Type
	ArgKinds []ArgKind
	ArgNames []string
	RetType  Type
	Fallback *Instance
	// Variables are type variables bound by the signature itself. They are
	// cleared by stripping and rebound before the type is re-analyzed.
	Variables      []*TypeVarType
	Definition     Declaration
	IsEllipsisArgs bool
}

func (*CallableType) typ() {}
func (t *CallableType) String() string {
	parts := make([]string, 0, len(t.ArgTypes))
	for i, at := range t.ArgTypes {
		p := at.String()
		if t.ArgNames[i] != "" {
			p = t.ArgNames[i] + ": " + p
		}
		if t.ArgKinds[i].IsOptional() {
			p += " ="
		}
		parts = append(parts, p)
	}
	name := t.Name
	if name == "" {
		name = "function"
	}
	return fmt.Sprintf("def %s(%s) -> %s", name, strings.Join(parts, ", "), t.RetType)
}

// CopyModified returns a shallow copy with the given overrides applied.
func (t *CallableType) CopyModified(mod func(*CallableType)) *CallableType {
	c := *t
	c.ArgTypes = append([]Type(nil), t.ArgTypes...)
	c.ArgKinds = append([]ArgKind(nil), t.ArgKinds...)
	c.ArgNames = append([]string(nil), t.ArgNames...)
	c.Variables = append([]*TypeVarType(nil), t.Variables...)
	mod(&c)
	return &c
}

func (t *CallableType) WithName(name string) *CallableType {
	return t.CopyModified(func(c *CallableType) { c.Name = name })
}

// MinArgs counts the required (non-optional, non-star) arguments.
func (t *CallableType) MinArgs() int {
	n := 0
	for _, k := range t.ArgKinds {
		if k == ArgPos || k == ArgNamed {
			n++
		}
	}
	return n
}

// MaxPositionalArgs counts arguments acceptable positionally; -1 for *args.
func (t *CallableType) MaxPositionalArgs() int {
	n := 0
	for _, k := range t.ArgKinds {
		if k == ArgStar {
			return -1
		}
		if k.IsPositional() {
			n++
		}
	}
	return n
}

// TypeVarType is a bound type variable. Function-bound ids are negative and
// class-bound ids positive, which keeps the two binding contexts apart in
// later stages.
type TypeVarType struct {
	Name       string
	FullName   string
	ID         int
	Values     []Type
	UpperBound Type
	Variance   int
}

func (*TypeVarType) typ() {}
func (t *TypeVarType) String() string {
	return fmt.Sprintf("%s`%d", t.Name, t.ID)
}

// TypeType is the type of a class object itself, e.g. Type[C].
type TypeType struct {
	Item Type
}

func (*TypeType) typ()             {}
func (t *TypeType) String() string { return fmt.Sprintf("Type[%s]", t.Item) }

type UnionType struct {
	Items []Type
}

func (*UnionType) typ() {}
func (t *UnionType) String() string {
	return fmt.Sprintf("Union[%s]", typeListString(t.Items))
}

// MakeSimplifiedUnion flattens nested unions and drops duplicates by their
// printed form. A single remaining item is returned unwrapped.
func MakeSimplifiedUnion(items []Type) Type {
	var flat []Type
	seen := make(map[string]bool)
	var add func(t Type)
	add = func(t Type) {
		if u, ok := t.(*UnionType); ok {
			for _, it := range u.Items {
				add(it)
			}
			return
		}
		key := t.String()
		if !seen[key] {
			seen[key] = true
			flat = append(flat, t)
		}
	}
	for _, it := range items {
		add(it)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &UnionType{Items: flat}
}

// LiteralType is a literal value type such as Literal["x"].
type LiteralType struct {
	Value    interface{}
	Fallback *Instance
}

func (*LiteralType) typ() {}
func (t *LiteralType) String() string {
	if s, ok := t.Value.(string); ok {
		return fmt.Sprintf("Literal[%q]", s)
	}
	return fmt.Sprintf("Literal[%v]", t.Value)
}

func typeListString(items []Type) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.String())
	}
	return strings.Join(parts, ", ")
}

// IsSubtype implements nominal subtyping plus the Any escape hatch. It is
// deliberately shallow: structural checks beyond tuples are out of scope for
// this layer.
func IsSubtype(left, right Type) bool {
	if _, ok := left.(*AnyType); ok {
		return true
	}
	if _, ok := right.(*AnyType); ok {
		return true
	}
	switch r := right.(type) {
	case *Instance:
		switch l := left.(type) {
		case *Instance:
			return instanceSubtype(l, r)
		case *TupleType:
			return l.Fallback != nil && instanceSubtype(l.Fallback, r)
		case *NoneType:
			return false
		case *TypeVarType:
			if l.UpperBound != nil {
				return IsSubtype(l.UpperBound, right)
			}
			return false
		case *CallableType:
			return l.Fallback != nil && instanceSubtype(l.Fallback, r)
		case *LiteralType:
			return l.Fallback != nil && instanceSubtype(l.Fallback, r)
		case *UnionType:
			for _, item := range l.Items {
				if !IsSubtype(item, right) {
					return false
				}
			}
			return true
		}
	case *NoneType:
		_, ok := left.(*NoneType)
		return ok
	case *UnionType:
		for _, item := range r.Items {
			if IsSubtype(left, item) {
				return true
			}
		}
		return false
	case *TupleType:
		l, ok := left.(*TupleType)
		if !ok || len(l.Items) != len(r.Items) {
			return false
		}
		for i := range l.Items {
			if !IsSubtype(l.Items[i], r.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func instanceSubtype(left, right *Instance) bool {
	if cached, ok := left.Info.cachedSubtype(right.Info.FullName); ok {
		return cached
	}
	result := false
	for _, anc := range left.Info.MRO {
		if anc == right.Info {
			result = true
			break
		}
	}
	left.Info.cacheSubtype(right.Info.FullName, result)
	return result
}
