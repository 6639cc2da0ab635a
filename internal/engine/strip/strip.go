// Package strip resets analyzed AST targets back to their state after the
// first naming pass, so re-running analysis on a changed target is
// idempotent. Only fields known to be mutated non-idempotently by later
// passes are touched; everything else is kept to avoid a full reparse.
package strip

import (
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

// File strips a module top level. Function bodies are independently
// targeted units and are not descended into.
func File(file *syntax.File) {
	s := &stripper{names: file.Names, file: file}
	for _, stmt := range file.Defs {
		s.stmt(stmt)
	}
}

// Func strips a function target, descending fully into its body.
func Func(fn *syntax.FuncDef) {
	s := &stripper{recurseIntoFunctions: true}
	if fn.Info != nil {
		s.curInfo = fn.Info
	}
	s.funcDef(fn)
}

// Overloaded strips an overloaded function group.
func Overloaded(def *syntax.OverloadedFuncDef) {
	s := &stripper{recurseIntoFunctions: true}
	if def.Info != nil {
		s.curInfo = def.Info
	}
	s.overloaded(def)
}

type stripper struct {
	curInfo              *sem.TypeInfo
	names                sem.SymbolTable
	file                 *syntax.File
	isClassBody          bool
	recurseIntoFunctions bool
}

func (s *stripper) stmt(stmt syntax.Statement) {
	switch n := stmt.(type) {
	case *syntax.ClassDef:
		s.classDef(n)
	case *syntax.FuncDef:
		s.funcDef(n)
	case *syntax.Decorator:
		s.decorator(n)
	case *syntax.OverloadedFuncDef:
		s.overloaded(n)
	case *syntax.AssignmentStmt:
		s.assignment(n)
	case *syntax.ImportStmt:
		s.importStmt(n)
	case *syntax.ImportFromStmt:
		s.importFrom(n)
	case *syntax.ImportAllStmt:
		s.importAll(n)
	case *syntax.ExpressionStmt:
		s.expr(n.Expr)
	case *syntax.ReturnStmt:
		if n.Expr != nil {
			s.expr(n.Expr)
		}
	}
}

// classDef clears the class's computed fields but keeps method bodies
// intact; methods are stripped independently when they themselves changed.
func (s *stripper) classDef(defn *syntax.ClassDef) {
	if defn.Info != nil {
		stripTypeInfo(defn.Info)
	}
	defn.BaseTypeExprs = append(defn.BaseTypeExprs, defn.RemovedBaseTypeExprs...)
	defn.RemovedBaseTypeExprs = nil
	defn.Analyzed = nil
	for _, base := range defn.BaseTypeExprs {
		s.expr(base)
	}
	for _, dec := range defn.Decorators {
		s.expr(dec)
	}
	if defn.Metaclass != nil {
		s.expr(defn.Metaclass)
	}

	oldInfo, oldClassBody, oldNames := s.curInfo, s.isClassBody, s.names
	s.curInfo = defn.Info
	s.isClassBody = true
	if defn.Info != nil {
		s.names = defn.Info.Names
	}
	for _, stmt := range defn.Body {
		s.stmt(stmt)
	}
	s.curInfo, s.isClassBody, s.names = oldInfo, oldClassBody, oldNames
}

func stripTypeInfo(info *sem.TypeInfo) {
	info.TypeVars = nil
	info.Bases = nil
	info.AbstractAttributes = nil
	info.SetMRO(nil)
	info.DeriveTypeVars()
	info.TupleType = nil
	info.ResetSubtypeCaches()
	info.DeclaredMetaclass = ""
	info.MetaclassType = nil
}

func (s *stripper) funcDef(fn *syntax.FuncDef) {
	if !s.recurseIntoFunctions {
		return
	}
	fn.Type = fn.UnanalyzedType
	// Type variables were bound by the previous signature analysis; undo
	// before the type is re-analyzed.
	if sig, ok := fn.Type.(*sem.CallableType); ok {
		sig.Variables = nil
	}

	oldInfo, oldClassBody := s.curInfo, s.isClassBody
	if fn.Info != nil {
		s.curInfo = fn.Info
		s.isClassBody = false
	}
	for _, p := range fn.Params {
		if p.DefaultValue != nil {
			s.expr(p.DefaultValue)
		}
	}
	for _, stmt := range fn.Body {
		s.stmt(stmt)
	}
	s.curInfo, s.isClassBody = oldInfo, oldClassBody
}

func (s *stripper) decorator(dec *syntax.Decorator) {
	if dec.Var != nil {
		dec.Var.Type = nil
	}
	for _, expr := range dec.Decorators {
		s.expr(expr)
	}
	if s.recurseIntoFunctions {
		s.funcDef(dec.Func)
	}
}

func (s *stripper) overloaded(def *syntax.OverloadedFuncDef) {
	if !s.recurseIntoFunctions {
		return
	}
	if def.Impl != nil {
		// Analysis detached the implementation item; reattach it.
		if len(def.Items) == 0 || def.Items[len(def.Items)-1] != def.Impl {
			def.Items = append(def.Items, def.Impl)
		}
	}
	for _, item := range def.Items {
		s.stmt(item)
	}
}

func (s *stripper) assignment(stmt *syntax.AssignmentStmt) {
	stmt.Type = nil
	if s.curInfo != nil && !s.isClassBody {
		for _, lv := range stmt.Lvalues {
			s.methodLvalue(lv)
		}
	}
	for _, lv := range stmt.Lvalues {
		s.expr(lv)
	}
	s.expr(stmt.Rvalue)
}

// methodLvalue removes attributes that were newly defined through self
// assignments in a method; they must be re-discovered.
func (s *stripper) methodLvalue(lv syntax.Expression) {
	switch n := lv.(type) {
	case *syntax.MemberExpr:
		if n.IsNewDef {
			delete(s.curInfo.Names, n.Name)
		}
	case *syntax.TupleExpr:
		for _, item := range n.Items {
			s.methodLvalue(item)
		}
	case *syntax.ListExpr:
		for _, item := range n.Items {
			s.methodLvalue(item)
		}
	}
}

func (s *stripper) importStmt(stmt *syntax.ImportStmt) {
	if len(stmt.Assignments) > 0 {
		stmt.Assignments = nil
		return
	}
	// Unreachable entries point to something else and must not be touched.
	if stmt.IsUnreachable || s.names == nil {
		return
	}
	for _, id := range stmt.IDs {
		bound := id.Bound()
		if sym := s.names[bound]; sym != nil {
			sym.Kind = sem.UnboundImported
			sym.Node = nil
		}
	}
}

func (s *stripper) importFrom(stmt *syntax.ImportFromStmt) {
	if len(stmt.Assignments) > 0 {
		stmt.Assignments = nil
		return
	}
	if stmt.IsUnreachable || s.names == nil {
		return
	}
	for _, id := range stmt.Names {
		sym := sem.NewSymbol(sem.UnboundImported, nil)
		s.names[id.Bound()] = sym
	}
}

func (s *stripper) importAll(stmt *syntax.ImportAllStmt) {
	if stmt.IsUnreachable {
		return
	}
	if s.names != nil {
		for _, name := range stmt.ImportedNames {
			delete(s.names, name)
		}
	}
	stmt.ImportedNames = nil
}

func (s *stripper) expr(e syntax.Expression) {
	switch n := e.(type) {
	case *syntax.NameExpr:
		s.nameExpr(n)
	case *syntax.MemberExpr:
		s.memberExpr(n)
	case *syntax.CallExpr:
		n.Analyzed = nil
		s.expr(n.Callee)
		for _, arg := range n.Args {
			s.expr(arg)
		}
	case *syntax.IndexExpr:
		n.AnalyzedAlias = nil
		s.expr(n.Base)
		s.expr(n.Index)
	case *syntax.TupleExpr:
		for _, item := range n.Items {
			s.expr(item)
		}
	case *syntax.ListExpr:
		for _, item := range n.Items {
			s.expr(item)
		}
	case *syntax.UnaryExpr:
		s.expr(n.Expr)
	}
}

// nameExpr clears resolved bindings except the global definitions made by
// the naming pass, which are idempotent.
func (s *stripper) nameExpr(n *syntax.NameExpr) {
	if n.Kind == sem.GDEF && n.IsNewDef {
		return
	}
	if n.Kind == sem.MDEF && n.IsNewDef && s.curInfo != nil {
		delete(s.curInfo.Names, n.Name)
	}
	n.RefData.Reset()
}

func (s *stripper) memberExpr(n *syntax.MemberExpr) {
	if s.isDuplicateAttributeDef(n) {
		// A base class also defines this attribute; drop the local
		// definition so analysis defers to the inherited one.
		delete(s.curInfo.Names, n.Name)
		n.DefVar = nil
	}
	n.RefData.Reset()
	s.expr(n.Expr)
}

func (s *stripper) isDuplicateAttributeDef(n *syntax.MemberExpr) bool {
	if !n.IsInferredDef {
		return false
	}
	if s.curInfo == nil {
		panic("member attribute definition outside class")
	}
	if s.curInfo.GetOwn(n.Name) == nil {
		return false
	}
	for _, ancestor := range s.curInfo.MRO {
		if ancestor == s.curInfo {
			continue
		}
		if ancestor.Get(n.Name) != nil {
			return true
		}
	}
	return false
}
