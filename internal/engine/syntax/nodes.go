package syntax

import (
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
)

// The AST keeps two type fields side by side where it matters: the
// UnanalyzedType as produced by parsing, and the computed type filled in by
// analysis. The stripping engine restores the former into the latter.

type Node interface {
	Span() diag.Span
}

type Statement interface {
	Node
	stmt()
}

type Expression interface {
	Node
	expr()
}

type NodeBase struct {
	Pos diag.Span
}

func (n *NodeBase) Span() diag.Span { return n.Pos }

// File is a parsed module.
type File struct {
	NodeBase
	Path       string
	ModuleName string
	Defs       []Statement
	// Names is the module-level symbol table, exclusively owned by the file
	// for its lifetime.
	Names  sem.SymbolTable
	IsStub bool
}

func (f *File) FullName(name string) string {
	if f.ModuleName == "" {
		return name
	}
	return f.ModuleName + "." + name
}

// RefData is the resolved-binding state shared by name and member
// references. Cleared by stripping for references newly defined by the
// current target.
type RefData struct {
	Kind     sem.SymbolKind
	Node     sem.Declaration
	FullName string
	// IsNewDef marks a reference that defines a new name in this pass.
	IsNewDef bool
	// IsInferredDef marks an attribute definition inferred from a self
	// assignment rather than declared.
	IsInferredDef bool
}

func (r *RefData) Reset() {
	r.Kind = sem.KindUnset
	r.Node = nil
	r.FullName = ""
	r.IsNewDef = false
	r.IsInferredDef = false
}

// --- Expressions ---

type NameExpr struct {
	NodeBase
	RefData
	Name string
}

func (*NameExpr) expr() {}

type MemberExpr struct {
	NodeBase
	RefData
	Expr Expression
	Name string
	// DefVar is the variable this member expression defined, when it was the
	// defining occurrence of an instance attribute.
	DefVar *sem.Var
}

func (*MemberExpr) expr() {}

// Analysis is the side-channel result attached to a call expression once the
// analyzer has classified it as a special construct.
type Analysis interface {
	analysis()
}

// NamedTupleExpr records a call (or class body) recognized as a named tuple
// definition.
type NamedTupleExpr struct {
	Info    *sem.TypeInfo
	IsTyped bool
}

func (*NamedTupleExpr) analysis() {}

type CallExpr struct {
	NodeBase
	Callee   Expression
	Args     []Expression
	ArgKinds []sem.ArgKind
	ArgNames []string
	// Analyzed caches the special-construct classification; stripping clears
	// it so the call is freshly re-classified.
	Analyzed Analysis
}

func (*CallExpr) expr() {}

// ArgByName returns the index of a named argument, or -1.
func (c *CallExpr) ArgByName(name string) int {
	for i, n := range c.ArgNames {
		if n == name && c.ArgKinds[i].IsNamed() {
			return i
		}
	}
	return -1
}

type IndexExpr struct {
	NodeBase
	Base  Expression
	Index Expression
	// AnalyzedAlias caches the resolved type when this index expression was
	// used as a type alias.
	AnalyzedAlias sem.Type
}

func (*IndexExpr) expr() {}

type StrExpr struct {
	NodeBase
	Value string
}

func (*StrExpr) expr() {}

type IntExpr struct {
	NodeBase
	Value int64
}

func (*IntExpr) expr() {}

type FloatExpr struct {
	NodeBase
	Value float64
}

func (*FloatExpr) expr() {}

type TupleExpr struct {
	NodeBase
	Items []Expression
}

func (*TupleExpr) expr() {}

type ListExpr struct {
	NodeBase
	Items []Expression
}

func (*ListExpr) expr() {}

type EllipsisExpr struct {
	NodeBase
}

func (*EllipsisExpr) expr() {}

type UnaryExpr struct {
	NodeBase
	Op   string
	Expr Expression
}

func (*UnaryExpr) expr() {}

// TempNode stands in for an omitted right-hand side in a bare annotation
// like "x: int".
type TempNode struct {
	NodeBase
	TypeOf sem.Type
}

func (*TempNode) expr() {}

// --- Statements ---

type AssignmentStmt struct {
	NodeBase
	Lvalues []Expression
	Rvalue  Expression
	// Type is the computed annotation type; UnanalyzedType the parsed one.
	Type           sem.Type
	UnanalyzedType sem.Type
	// NewSyntax is true for "x: T = v" style annotated assignments.
	NewSyntax bool
}

func (*AssignmentStmt) stmt() {}

type ExpressionStmt struct {
	NodeBase
	Expr Expression
}

func (*ExpressionStmt) stmt() {}

type PassStmt struct {
	NodeBase
}

func (*PassStmt) stmt() {}

type ReturnStmt struct {
	NodeBase
	Expr Expression
}

func (*ReturnStmt) stmt() {}

type ImportedName struct {
	Name string
	As   string
}

func (n ImportedName) Bound() string {
	if n.As != "" {
		return n.As
	}
	return n.Name
}

type ImportStmt struct {
	NodeBase
	IDs []ImportedName
	// Assignments records module aliases generated by analysis for "import
	// a.b as c" style bindings; cleared by stripping.
	Assignments   []string
	IsUnreachable bool
}

func (*ImportStmt) stmt() {}

type ImportFromStmt struct {
	NodeBase
	ModuleID      string
	Relative      int
	Names         []ImportedName
	Assignments   []string
	IsUnreachable bool
}

func (*ImportFromStmt) stmt() {}

type ImportAllStmt struct {
	NodeBase
	ModuleID string
	// ImportedNames is the list of names the previous analysis pass
	// determined this wildcard introduced. Stripping deletes those entries
	// and clears the list for recomputation.
	ImportedNames []string
	IsUnreachable bool
}

func (*ImportAllStmt) stmt() {}

// Param is a single formal parameter. TypeAnnotation holds the parsed
// (unanalyzed) annotation; the analyzed form lives in the enclosing
// function's computed CallableType.
type Param struct {
	Name           string
	TypeAnnotation sem.Type
	DefaultValue   Expression
	Kind           sem.ArgKind
	Var            *sem.Var
}

type FuncDef struct {
	NodeBase
	Name     string
	FullName string
	Params   []*Param
	Body     []Statement
	// Type is the computed signature; UnanalyzedType the declared one.
	Type           sem.Type
	UnanalyzedType sem.Type
	Info           *sem.TypeInfo
	IsDecorated    bool
	IsClass        bool
	IsStatic       bool
	IsProperty     bool
}

func (*FuncDef) stmt() {}

func (f *FuncDef) DeclName() string                { return f.Name }
func (f *FuncDef) DeclFullName() string            { return f.FullName }
func (f *FuncDef) SetDeclFullName(fullname string) { f.FullName = fullname }
func (f *FuncDef) DeclSpan() diag.Span             { return f.Pos }
func (f *FuncDef) DeclType() sem.Type              { return f.Type }

type Decorator struct {
	NodeBase
	Func       *FuncDef
	Decorators []Expression
	// Var carries the decorated definition's computed type; reset by
	// stripping.
	Var *sem.Var
}

func (*Decorator) stmt() {}

func (d *Decorator) DeclName() string                { return d.Func.Name }
func (d *Decorator) DeclFullName() string            { return d.Func.FullName }
func (d *Decorator) SetDeclFullName(fullname string) { d.Func.FullName = fullname }
func (d *Decorator) DeclSpan() diag.Span             { return d.Pos }
func (d *Decorator) DeclType() sem.Type {
	if d.Var != nil {
		return d.Var.Type
	}
	return nil
}

type OverloadedFuncDef struct {
	NodeBase
	Name     string
	FullName string
	Items    []Statement
	// Impl is the implementation item; analysis removes it from Items and
	// stripping appends it back.
	Impl           Statement
	Type           sem.Type
	UnanalyzedType sem.Type
	Info           *sem.TypeInfo
}

func (*OverloadedFuncDef) stmt() {}

func (o *OverloadedFuncDef) DeclName() string                { return o.Name }
func (o *OverloadedFuncDef) DeclFullName() string            { return o.FullName }
func (o *OverloadedFuncDef) SetDeclFullName(fullname string) { o.FullName = fullname }
func (o *OverloadedFuncDef) DeclSpan() diag.Span             { return o.Pos }
func (o *OverloadedFuncDef) DeclType() sem.Type              { return o.Type }

type ClassDef struct {
	NodeBase
	Name     string
	FullName string
	// BaseTypeExprs are the base class expressions still pending analysis;
	// RemovedBaseTypeExprs were consumed by analysis (e.g. a NamedTuple
	// base). Stripping moves the latter back into the former.
	BaseTypeExprs        []Expression
	RemovedBaseTypeExprs []Expression
	Keywords             map[string]Expression
	Metaclass            Expression
	Decorators           []Expression
	Body                 []Statement
	Info                 *sem.TypeInfo
	// TypeVarNames are the class's own declared type variables, re-derived
	// after stripping.
	TypeVarNames []string
	// Analyzed marks a class body recognized as a named-tuple definition.
	Analyzed Analysis
}

func (*ClassDef) stmt() {}

func (c *ClassDef) DeclName() string                { return c.Name }
func (c *ClassDef) DeclFullName() string            { return c.FullName }
func (c *ClassDef) SetDeclFullName(fullname string) { c.FullName = fullname }
func (c *ClassDef) DeclSpan() diag.Span             { return c.Pos }
func (c *ClassDef) DeclType() sem.Type {
	if c.Info == nil {
		return nil
	}
	return c.Info.DeclType()
}
func (c *ClassDef) DeclaredTypeVars() []string { return c.TypeVarNames }
