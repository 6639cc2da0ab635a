package plugins

import (
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
	"typewatch/internal/shared/util"
)

// MethodArg describes one formal argument of a synthesized method, excluding
// the receiver.
type MethodArg struct {
	Name string
	Type sem.Type
	Kind sem.ArgKind
}

// MethodSpec carries the optional knobs of AddMethodToClass.
type MethodSpec struct {
	SelfType      sem.Type
	TypeVar       *sem.TypeVarType
	IsClassmethod bool
}

// AddMethodToClass synthesizes a method and installs it in the class's symbol
// table, replacing an earlier synthesized method of the same name. A
// user-written definition with that name is kept under a redefinition alias
// so it still gets analyzed; the synthesized entry dominates lookups.
func AddMethodToClass(api SemanticAPI, cls *syntax.ClassDef, name string, args []MethodArg, retType sem.Type, spec MethodSpec) *syntax.FuncDef {
	info := cls.Info

	if existing := info.Names[name]; existing != nil && existing.PluginGenerated {
		if old, ok := existing.Node.(*syntax.FuncDef); ok {
			removeBodyStmt(cls, old)
		}
	}

	functionType := api.NamedType("builtins.function", nil)

	selfType := spec.SelfType
	if selfType == nil {
		selfType = &sem.Instance{Info: info}
	}
	var receiver MethodArg
	if spec.IsClassmethod {
		receiver = MethodArg{Name: "_cls", Type: &sem.TypeType{Item: selfType}, Kind: sem.ArgPos}
	} else {
		receiver = MethodArg{Name: "self", Type: selfType, Kind: sem.ArgPos}
	}
	all := append([]MethodArg{receiver}, args...)

	sig := &sem.CallableType{
		Name:     name + " of " + info.Name,
		RetType:  retType,
		Fallback: functionType,
	}
	for _, a := range all {
		sig.ArgTypes = append(sig.ArgTypes, a.Type)
		sig.ArgKinds = append(sig.ArgKinds, a.Kind)
		sig.ArgNames = append(sig.ArgNames, a.Name)
	}
	if spec.TypeVar != nil {
		sig.Variables = []*sem.TypeVarType{spec.TypeVar}
	}

	fn := &syntax.FuncDef{
		Name:     name,
		FullName: info.FullName + "." + name,
		Info:     info,
		Type:     sig,
		IsClass:  spec.IsClassmethod,
	}
	fn.Pos = info.Span
	sig.Definition = fn
	for _, a := range all {
		fn.Params = append(fn.Params, &syntax.Param{
			Name:           a.Name,
			TypeAnnotation: a.Type,
			Kind:           a.Kind,
		})
	}
	fn.Body = []syntax.Statement{&syntax.PassStmt{NodeBase: syntax.NodeBase{Pos: info.Span}}}

	preserveUserDefinition(info, name)

	sym := sem.NewSymbol(sem.MDEF, fn)
	sym.PluginGenerated = true
	info.Names[name] = sym
	cls.Body = append(cls.Body, fn)
	return fn
}

// AddAttributeToClass installs a synthesized attribute. Only the symbol table
// entry is generated; there is no backing assignment statement.
func AddAttributeToClass(api SemanticAPI, cls *syntax.ClassDef, name string, typ sem.Type, isClassVar bool) *sem.Var {
	info := cls.Info

	preserveUserDefinition(info, name)

	v := sem.NewVar(name, typ)
	v.Info = info
	v.FullName = info.FullName + "." + name
	v.IsClassVar = isClassVar
	v.Span = info.Span

	sym := sem.NewSymbol(sem.MDEF, v)
	sym.PluginGenerated = true
	info.Names[name] = sym
	return v
}

// preserveUserDefinition moves an existing same-named entry to a redefinition
// alias so the synthesized node can dominate without losing the original.
func preserveUserDefinition(info *sem.TypeInfo, name string) {
	existing := info.Names[name]
	if existing == nil || existing.PluginGenerated {
		return
	}
	alias := util.UniqueRedefinitionName(name, func(candidate string) bool {
		return info.Names[candidate] != nil
	})
	info.Names[alias] = existing
}

func removeBodyStmt(cls *syntax.ClassDef, target syntax.Statement) {
	for i, stmt := range cls.Body {
		if stmt == target {
			cls.Body = append(cls.Body[:i], cls.Body[i+1:]...)
			return
		}
	}
}

// DeserializeAndFixupType rebuilds a persisted type, re-resolving class
// references through the analyzer's symbol universe.
func DeserializeAndFixupType(data sem.TypeData, api SemanticAPI) sem.Type {
	return sem.DeserializeType(data, func(fullname string) *sem.TypeInfo {
		sym := api.LookupFullyQualified(fullname)
		if sym == nil {
			return nil
		}
		info, _ := sym.Node.(*sem.TypeInfo)
		return info
	})
}

// DecoratorBoolArgument reads a bool keyword argument off the decorator
// expression, handling both @decorator and @decorator(...) forms.
func DecoratorBoolArgument(ctx ClassDefContext, name string, def bool) bool {
	call, ok := ctx.Reason.(*syntax.CallExpr)
	if !ok {
		return def
	}
	return CallBoolArgument(ctx.API, call, name, def)
}

// CallBoolArgument reads a named bool literal argument from a call,
// reporting non-literal values.
func CallBoolArgument(api SemanticAPI, call *syntax.CallExpr, name string, def bool) bool {
	idx := call.ArgByName(name)
	if idx < 0 {
		return def
	}
	value, ok := api.ParseBool(call.Args[idx])
	if !ok {
		api.Fail(`"`+name+`" argument must be True or False.`, call.Args[idx].Span(), false)
		return def
	}
	return value
}

// CalleeFullName resolves the fully qualified name of a call's target, or ""
// when the callee is not a resolved reference.
func CalleeFullName(expr syntax.Expression) string {
	call, ok := expr.(*syntax.CallExpr)
	if !ok {
		return ""
	}
	switch callee := call.Callee.(type) {
	case *syntax.NameExpr:
		return callee.FullName
	case *syntax.MemberExpr:
		return callee.FullName
	}
	return ""
}

// FirstArg returns the single actual mapped to the first formal, or nil.
func FirstArg[T any](args [][]T) (T, bool) {
	var zero T
	if len(args) > 0 && len(args[0]) > 0 {
		return args[0][0], true
	}
	return zero, false
}

// failAt reports at the definition's span when available, else at the call
// site. Synthesized callables may have no definition to point at.
func failAt(api CheckerAPI, msg string, def sem.Declaration, fallback diag.Span) {
	if def != nil {
		api.Fail(msg, def.DeclSpan())
		return
	}
	api.Fail(msg, fallback)
}
