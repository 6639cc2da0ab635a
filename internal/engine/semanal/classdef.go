package semanal

import (
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

func (a *Analyzer) visitClassDef(defn *syntax.ClassDef) {
	info := defn.Info
	if info == nil {
		defn.SetDeclFullName(a.qualify(defn.Name))
		info = sem.NewTypeInfo(make(sem.SymbolTable), defn, a.curFile.ModuleName)
		defn.Info = info
		a.bindName(defn.Name, info, a.currentKind())
	}

	if a.namedtuple.isNamedTupleClassDef(defn) {
		switch a.namedtuple.analyzeClassDef(defn) {
		case Deferred:
			a.defer_()
		case Resolved:
			a.analyzeClassBody(defn, true)
		}
		return
	}

	outer := a.tvarScope
	a.tvarScope = sem.NewTypeVarScope(outer)
	defer func() { a.tvarScope = outer }()

	a.bindClassTypeVars(defn)
	info.DeriveTypeVars()

	bases, reasons, ok := a.analyzeBases(defn)
	if !ok {
		a.defer_()
		return
	}
	object := a.universe.class("builtins.object")
	if len(bases) == 0 && info != object {
		bases = append(bases, &sem.Instance{Info: object})
		reasons = append(reasons, nil)
	}
	info.Bases = bases

	mro, err := linearizeMRO(info)
	if err != nil {
		a.Fail("Cannot determine consistent method resolution order (MRO) for \""+defn.FullName+"\"", defn.Pos, false)
		info.FallbackToAny = true
		mro = []*sem.TypeInfo{info, object}
	}
	info.SetMRO(mro)

	a.analyzeMetaclass(defn)
	a.analyzeClassBody(defn, false)
	a.applyClassHooks(defn, bases, reasons)
}

// bindClassTypeVars scans subscripted base expressions for type variable
// references and binds them into the class scope, recording the declared
// order on the definition so stripping can re-derive it.
func (a *Analyzer) bindClassTypeVars(defn *syntax.ClassDef) {
	defn.TypeVarNames = defn.TypeVarNames[:0]
	for _, base := range defn.BaseTypeExprs {
		idx, ok := base.(*syntax.IndexExpr)
		if !ok {
			continue
		}
		a.resolveExpr(idx)
		for _, arg := range indexItems(idx) {
			name, ok := arg.(*syntax.NameExpr)
			if !ok {
				continue
			}
			tv, ok := name.Node.(*sem.TypeVarExpr)
			if !ok {
				continue
			}
			if a.tvarScope.Binding(tv.FullName) == nil {
				a.tvarScope.BindClass(tv.Name, tv)
				defn.TypeVarNames = append(defn.TypeVarNames, tv.Name)
			}
		}
	}
}

func indexItems(idx *syntax.IndexExpr) []syntax.Expression {
	if tup, ok := idx.Index.(*syntax.TupleExpr); ok {
		return tup.Items
	}
	return []syntax.Expression{idx.Index}
}

// analyzeBases resolves the base expressions into instances. A call-form
// named tuple base is consumed: its expression moves to the removed list and
// the synthesized tuple class takes its place. The kept/removed split is
// committed only once every base resolved; a deferral mid-list must leave
// the declaration exactly as the next pass's strip expects it.
func (a *Analyzer) analyzeBases(defn *syntax.ClassDef) ([]*sem.Instance, []syntax.Expression, bool) {
	info := defn.Info
	var bases []*sem.Instance
	var reasons []syntax.Expression
	kept := make([]syntax.Expression, 0, len(defn.BaseTypeExprs))
	var removed []syntax.Expression

	for _, baseExpr := range defn.BaseTypeExprs {
		a.resolveExpr(baseExpr)

		if call, ok := baseExpr.(*syntax.CallExpr); ok {
			matched, ntInfo, deferred := a.namedtuple.checkNamedTuple(call, defn.Name, false)
			if matched {
				if deferred {
					return nil, nil, false
				}
				removed = append(removed, call)
				if ntInfo != nil {
					bases = append(bases, &sem.Instance{Info: ntInfo})
					reasons = append(reasons, call)
					info.TupleType = ntInfo.TupleType
				}
				continue
			}
		}
		kept = append(kept, baseExpr)

		if isGenericBase(baseExpr) {
			continue
		}
		t, ok := a.analyzeType(syntax.ExprToType(baseExpr), baseExpr.Span())
		if !ok {
			return nil, nil, false
		}
		switch base := t.(type) {
		case *sem.Instance:
			bases = append(bases, base)
			reasons = append(reasons, baseExpr)
		case *sem.AnyType:
			info.FallbackToAny = true
		case *sem.TupleType:
			info.TupleType = base
			bases = append(bases, base.Fallback)
			reasons = append(reasons, baseExpr)
		default:
			a.Fail("Invalid base class", baseExpr.Span(), false)
			info.FallbackToAny = true
		}
	}
	defn.BaseTypeExprs = kept
	defn.RemovedBaseTypeExprs = append(defn.RemovedBaseTypeExprs, removed...)
	return bases, reasons, true
}

func isGenericBase(e syntax.Expression) bool {
	idx, ok := e.(*syntax.IndexExpr)
	if !ok {
		return false
	}
	return refFullName(idx.Base) == "typing.Generic"
}

func (a *Analyzer) analyzeMetaclass(defn *syntax.ClassDef) {
	if defn.Metaclass == nil {
		return
	}
	a.resolveExpr(defn.Metaclass)
	fullname := refFullName(defn.Metaclass)
	defn.Info.DeclaredMetaclass = fullname
	if fullname == "" {
		return
	}
	if inst := a.NamedTypeOrNone(fullname, nil); inst != nil {
		defn.Info.MetaclassType = inst
	}
}

// analyzeClassBody visits the class body with the class as the member scope.
// Named tuple bodies run under the saved-body guard that rejects overwrites
// of synthesized members.
func (a *Analyzer) analyzeClassBody(defn *syntax.ClassDef, namedTuple bool) {
	outerInfo, outerLocals := a.curInfo, a.locals
	a.curInfo = defn.Info
	a.locals = nil
	defer func() { a.curInfo, a.locals = outerInfo, outerLocals }()

	if namedTuple {
		a.namedtuple.analyzeBody(defn)
		return
	}
	for _, stmt := range defn.Body {
		a.visitStmt(stmt)
	}
}

// applyClassHooks runs decorator, metaclass and base class hooks in that
// order. A false return requests deferral of the whole class.
func (a *Analyzer) applyClassHooks(defn *syntax.ClassDef, bases []*sem.Instance, reasons []syntax.Expression) {
	for _, dec := range defn.Decorators {
		a.resolveExpr(dec)
		fullname := refFullName(dec)
		if fullname == "" {
			continue
		}
		if hook := a.plugin.ClassDecoratorHook(fullname); hook != nil {
			if !hook(plugins.ClassDefContext{Cls: defn, Reason: dec, API: a}) {
				a.defer_()
				return
			}
		}
	}
	if defn.Metaclass != nil {
		if fullname := refFullName(defn.Metaclass); fullname != "" {
			if hook := a.plugin.MetaclassHook(fullname); hook != nil {
				if !hook(plugins.ClassDefContext{Cls: defn, Reason: defn.Metaclass, API: a}) {
					a.defer_()
					return
				}
			}
		}
	}
	for i, base := range bases {
		if reasons[i] == nil {
			// The implicit object base has no source expression.
			continue
		}
		if hook := a.plugin.BaseClassHook(base.Info.FullName); hook != nil {
			if !hook(plugins.ClassDefContext{Cls: defn, Reason: reasons[i], API: a}) {
				a.defer_()
				return
			}
		}
	}
}
