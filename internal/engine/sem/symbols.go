package sem

import (
	"sort"

	"typewatch/internal/engine/diag"
)

// SymbolKind classifies where a name is bound.
type SymbolKind int

const (
	// KindUnset marks a reference that has not been resolved (yet).
	KindUnset SymbolKind = iota
	// GDEF is a module-level (global) definition.
	GDEF
	// MDEF is a class member definition.
	MDEF
	// LDEF is a local (function-scope) definition.
	LDEF
	// UnboundImported is an import whose target module has not been bound.
	UnboundImported
)

func (k SymbolKind) String() string {
	switch k {
	case GDEF:
		return "Gdef"
	case MDEF:
		return "Mdef"
	case LDEF:
		return "Ldef"
	case UnboundImported:
		return "UnboundImported"
	}
	return "Unset"
}

// Declaration is anything a symbol table entry can point at: a Var, a
// TypeInfo, a TypeVarExpr, or a syntax-level definition (function, decorator,
// overload group, type alias). The table holds the reference weakly; node
// lifetime is owned by the AST.
type Declaration interface {
	DeclName() string
	DeclFullName() string
	SetDeclFullName(fullname string)
	DeclSpan() diag.Span
	// DeclType is the computed type of the declared entity, nil when not
	// known (yet).
	DeclType() Type
}

// Symbol is a single symbol table entry.
type Symbol struct {
	Kind SymbolKind
	Node Declaration
	// IsNewDef marks entries defined fresh in the current analysis pass, as
	// opposed to re-validated ones. The stripping engine uses it to decide
	// what must be re-discovered.
	IsNewDef bool
	// PluginGenerated marks synthesized entries so later passes and the
	// stripping engine can tell them from user code.
	PluginGenerated bool
	// Implicit marks entries whose existence was inferred rather than
	// declared.
	Implicit bool
}

func NewSymbol(kind SymbolKind, node Declaration) *Symbol {
	return &Symbol{Kind: kind, Node: node}
}

func (s *Symbol) FullName() string {
	if s.Node == nil {
		return ""
	}
	return s.Node.DeclFullName()
}

func (s *Symbol) Type() Type {
	if s.Node == nil {
		return nil
	}
	return s.Node.DeclType()
}

// SymbolTable maps short names to symbols. Insertion order is irrelevant;
// callers that need stable iteration use SortedNames.
type SymbolTable map[string]*Symbol

func (t SymbolTable) SortedNames() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Var is a variable or attribute binding.
type Var struct {
	Name     string
	FullName string
	Type     Type
	Info     *TypeInfo
	Span     diag.Span

	IsSelf               bool
	IsProperty           bool
	IsSettableProperty   bool
	IsClassVar           bool
	IsClassmethod        bool
	IsInitializedInClass bool
	IsFinal              bool
	IsInferred           bool
}

func NewVar(name string, typ Type) *Var {
	return &Var{Name: name, Type: typ}
}

func (v *Var) DeclName() string                { return v.Name }
func (v *Var) DeclFullName() string            { return v.FullName }
func (v *Var) SetDeclFullName(fullname string) { v.FullName = fullname }
func (v *Var) DeclSpan() diag.Span             { return v.Span }
func (v *Var) DeclType() Type                  { return v.Type }

// TypeVarExpr is the declaration produced by a TypeVar(...) assignment. The
// TypeVarScope mints TypeVarType bindings from it.
type TypeVarExpr struct {
	Name       string
	FullName   string
	Values     []Type
	UpperBound Type
	Variance   int
	Span       diag.Span
}

func (e *TypeVarExpr) DeclName() string                { return e.Name }
func (e *TypeVarExpr) DeclFullName() string            { return e.FullName }
func (e *TypeVarExpr) SetDeclFullName(fullname string) { e.FullName = fullname }
func (e *TypeVarExpr) DeclSpan() diag.Span             { return e.Span }
func (e *TypeVarExpr) DeclType() Type                  { return nil }

// TypeAlias is a module-level alias binding such as Pair = Tuple[int, int].
type TypeAlias struct {
	Name     string
	FullName string
	Target   Type
	Span     diag.Span
}

func (a *TypeAlias) DeclName() string                { return a.Name }
func (a *TypeAlias) DeclFullName() string            { return a.FullName }
func (a *TypeAlias) SetDeclFullName(fullname string) { a.FullName = fullname }
func (a *TypeAlias) DeclSpan() diag.Span             { return a.Span }
func (a *TypeAlias) DeclType() Type                  { return a.Target }

// ModuleRef is the declaration behind "import x" style bindings.
type ModuleRef struct {
	Name     string
	FullName string
	Span     diag.Span
}

func (m *ModuleRef) DeclName() string                { return m.Name }
func (m *ModuleRef) DeclFullName() string            { return m.FullName }
func (m *ModuleRef) SetDeclFullName(fullname string) { m.FullName = fullname }
func (m *ModuleRef) DeclSpan() diag.Span             { return m.Span }
func (m *ModuleRef) DeclType() Type                  { return nil }
