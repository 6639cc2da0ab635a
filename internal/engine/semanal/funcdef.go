package semanal

import (
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

func (a *Analyzer) visitFuncDef(fn *syntax.FuncDef) {
	a.analyzeFuncDef(fn, false)
}

// analyzeFuncDef resolves a function's signature and body. asDecorated is
// set when a wrapping Decorator owns the symbol table entry.
func (a *Analyzer) analyzeFuncDef(fn *syntax.FuncDef, asDecorated bool) {
	isMethod := a.curInfo != nil && a.locals == nil
	if fn.FullName == "" {
		fn.SetDeclFullName(a.qualify(fn.Name))
	}
	if isMethod {
		fn.Info = a.curInfo
	}
	if !asDecorated {
		existing := a.currentNames()[fn.Name]
		if existing == nil || !existing.PluginGenerated {
			a.bindName(fn.Name, fn, a.currentKind())
		}
	}

	outer := a.tvarScope
	a.tvarScope = sem.NewTypeVarScope(outer)
	defer func() { a.tvarScope = outer }()

	argTypes, ok := a.analyzeSignature(fn, isMethod)
	if !ok {
		a.defer_()
		return
	}
	a.analyzeFuncBody(fn, argTypes, isMethod)
}

// analyzeSignature resolves the declared callable into fn.Type, binding any
// referenced type variables at fresh function-scoped ids. The declared
// signature stays untouched so stripping can restore it.
func (a *Analyzer) analyzeSignature(fn *syntax.FuncDef, isMethod bool) ([]sem.Type, bool) {
	sig, _ := fn.UnanalyzedType.(*sem.CallableType)
	if sig == nil {
		fn.Type = sem.AnyFromReason(sem.AnyUnannotated)
		return nil, true
	}

	a.bindFuncTVars = true
	a.boundTVars = nil
	defer func() { a.bindFuncTVars = false }()

	argTypes := make([]sem.Type, len(sig.ArgTypes))
	for i, at := range sig.ArgTypes {
		if at == nil {
			if i == 0 && isMethod && !fn.IsStatic {
				argTypes[i] = a.receiverType(fn)
			} else {
				argTypes[i] = sem.AnyFromReason(sem.AnyUnannotated)
			}
			continue
		}
		analyzed, ok := a.analyzeType(at, fn.Pos)
		if !ok {
			return nil, false
		}
		argTypes[i] = analyzed
	}

	ret := sem.Type(sem.AnyFromReason(sem.AnyUnannotated))
	if sig.RetType != nil {
		analyzed, ok := a.analyzeType(sig.RetType, fn.Pos)
		if !ok {
			return nil, false
		}
		ret = analyzed
	}

	bound := a.boundTVars
	fn.Type = sig.CopyModified(func(c *sem.CallableType) {
		c.ArgTypes = argTypes
		c.RetType = ret
		c.Variables = bound
		c.Fallback = a.NamedType("builtins.function", nil)
		c.Definition = fn
		if fn.Info != nil {
			c.Name = fn.Name + " of " + fn.Info.Name
		} else {
			c.Name = fn.Name
		}
	})
	return argTypes, true
}

func (a *Analyzer) receiverType(fn *syntax.FuncDef) sem.Type {
	self := sem.Type(&sem.Instance{Info: a.curInfo})
	if fn.IsClass {
		return &sem.TypeType{Item: self}
	}
	return self
}

func (a *Analyzer) analyzeFuncBody(fn *syntax.FuncDef, argTypes []sem.Type, isMethod bool) {
	outerLocals, outerFunc := a.locals, a.curFunc
	a.locals = make(sem.SymbolTable)
	a.curFunc = fn
	defer func() { a.locals, a.curFunc = outerLocals, outerFunc }()

	for i, p := range fn.Params {
		var pt sem.Type
		if i < len(argTypes) {
			pt = argTypes[i]
		} else {
			pt = sem.AnyFromReason(sem.AnyUnannotated)
		}
		v := sem.NewVar(p.Name, pt)
		v.FullName = p.Name
		v.Span = fn.Pos
		if i == 0 && isMethod && !fn.IsStatic {
			v.IsSelf = true
		}
		p.Var = v
		a.locals[p.Name] = sem.NewSymbol(sem.LDEF, v)
		if p.DefaultValue != nil {
			a.resolveExpr(p.DefaultValue)
		}
	}
	for _, stmt := range fn.Body {
		a.visitStmt(stmt)
	}
}

func (a *Analyzer) visitDecorator(dec *syntax.Decorator) {
	for _, d := range dec.Decorators {
		a.resolveExpr(d)
		switch refFullName(d) {
		case "builtins.property":
			dec.Func.IsProperty = true
		case "builtins.classmethod":
			dec.Func.IsClass = true
		case "builtins.staticmethod":
			dec.Func.IsStatic = true
		}
	}

	a.analyzeFuncDef(dec.Func, true)

	typ := dec.Func.Type
	for _, d := range dec.Decorators {
		switch refFullName(d) {
		case "builtins.property", "builtins.classmethod", "builtins.staticmethod":
		default:
			// An arbitrary decorator hides the signature from the checker.
			typ = sem.AnyFromReason(sem.AnyImplementationArtifact)
		}
	}

	v := sem.NewVar(dec.Func.Name, typ)
	v.FullName = dec.Func.FullName
	v.Info = dec.Func.Info
	v.Span = dec.Pos
	v.IsProperty = dec.Func.IsProperty
	v.IsClassmethod = dec.Func.IsClass
	dec.Var = v

	existing := a.currentNames()[dec.Func.Name]
	if existing == nil || !existing.PluginGenerated {
		a.bindName(dec.Func.Name, dec, a.currentKind())
	}
}

// visitOverloaded analyzes every overload item and the implementation. The
// implementation item is detached from Items while analyzed; stripping
// reattaches it.
func (a *Analyzer) visitOverloaded(def *syntax.OverloadedFuncDef) {
	if def.FullName == "" {
		def.SetDeclFullName(a.qualify(def.Name))
	}
	if a.curInfo != nil && a.locals == nil {
		def.Info = a.curInfo
	}
	for _, item := range def.Items {
		a.visitStmt(item)
	}
	if def.Impl != nil {
		a.visitStmt(def.Impl)
	}
	if len(def.Items) > 0 {
		if first, ok := def.Items[0].(sem.Declaration); ok {
			def.Type = first.DeclType()
		}
	}
	existing := a.currentNames()[def.Name]
	if existing == nil || !existing.PluginGenerated {
		a.bindName(def.Name, def, a.currentKind())
	}
}
