package semanal

import (
	"strings"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
)

// analyzeType resolves an annotation into its analyzed form. ok is false
// when resolution must wait for a later pass; the caller records the
// deferral. On the final pass every unresolved reference becomes a hard
// error with an Any(from error) result instead.
func (a *Analyzer) analyzeType(t sem.Type, span diag.Span) (sem.Type, bool) {
	switch typ := t.(type) {
	case nil:
		return sem.AnyFromReason(sem.AnyUnannotated), true
	case *sem.UnboundType:
		return a.analyzeUnbound(typ, span)
	case *sem.TupleType:
		items := make([]sem.Type, len(typ.Items))
		for i, it := range typ.Items {
			analyzed, ok := a.analyzeType(it, span)
			if !ok {
				return nil, false
			}
			items[i] = analyzed
		}
		return &sem.TupleType{Items: items, Fallback: typ.Fallback}, true
	case *sem.UnionType:
		items := make([]sem.Type, len(typ.Items))
		for i, it := range typ.Items {
			analyzed, ok := a.analyzeType(it, span)
			if !ok {
				return nil, false
			}
			items[i] = analyzed
		}
		return sem.MakeSimplifiedUnion(items), true
	case *sem.TypeType:
		item, ok := a.analyzeType(typ.Item, span)
		if !ok {
			return nil, false
		}
		return &sem.TypeType{Item: item}, true
	default:
		return t, true
	}
}

func (a *Analyzer) analyzeUnbound(ub *sem.UnboundType, span diag.Span) (sem.Type, bool) {
	sym := a.lookupTypeName(ub.Name)
	fullname := ub.Name
	if sym != nil && sym.Node != nil {
		fullname = sym.Node.DeclFullName()
	}

	if special, handled, ok := a.analyzeSpecialForm(ub, fullname, span); handled {
		return special, ok
	}

	if hook := a.plugin.TypeAnalyzeHook(fullname); hook != nil {
		return hook(plugins.AnalyzeTypeContext{
			Type: ub,
			Span: span,
			API:  typeAnalyzerHandle{a: a, span: span},
		}), true
	}

	if sym == nil {
		if !a.finalPass {
			return nil, false
		}
		a.Fail("Name \""+ub.Name+"\" is not defined", span, false)
		return sem.AnyFromReason(sem.AnyFromError), true
	}

	switch node := sym.Node.(type) {
	case *sem.TypeVarExpr:
		if bound := a.tvarScope.Binding(node.FullName); bound != nil {
			return bound, true
		}
		if a.bindFuncTVars {
			tv := a.tvarScope.BindFunc(node.Name, node)
			a.boundTVars = append(a.boundTVars, tv)
			return tv, true
		}
		a.Fail("Type variable \""+node.Name+"\" is unbound", span, false)
		return sem.AnyFromReason(sem.AnyFromError), true
	case *sem.TypeInfo:
		if a.isIncomplete(node) {
			if !a.finalPass {
				return nil, false
			}
			// Final pass: accept the partial class rather than loop forever.
		}
		args, ok := a.analyzeTypeList(ub.Args, span)
		if !ok {
			return nil, false
		}
		if node.TupleType != nil && len(args) == 0 {
			// Named tuples are used nominally through their instance form.
			return &sem.Instance{Info: node}, true
		}
		return &sem.Instance{Info: node, Args: args}, true
	case *sem.TypeAlias:
		return node.Target, true
	case *sem.Var:
		if _, isAny := node.Type.(*sem.AnyType); isAny {
			return sem.AnyFromReason(sem.AnySpecialForm), true
		}
	}

	if a.finalPass {
		a.Fail("Variable \""+fullname+"\" is not valid as a type", span, false)
		return sem.AnyFromReason(sem.AnyFromError), true
	}
	return nil, false
}

// isIncomplete reports whether a user-defined class has not finished its own
// analysis yet. Referencing it must wait unless we are inside it.
func (a *Analyzer) isIncomplete(info *sem.TypeInfo) bool {
	return info.Defn != nil && len(info.MRO) == 0 && info != a.curInfo
}

// analyzeSpecialForm handles the typing constructs that are not classes.
// handled is false when the name is not a special form.
func (a *Analyzer) analyzeSpecialForm(ub *sem.UnboundType, fullname string, span diag.Span) (sem.Type, bool, bool) {
	switch fullname {
	case "None", "builtins.None":
		return &sem.NoneType{}, true, true
	case "typing.Any":
		return sem.AnyFromReason(sem.AnyExplicit), true, true
	case "typing.Optional":
		if len(ub.Args) != 1 {
			a.Fail("Optional[...] must have exactly one type argument", span, false)
			return sem.AnyFromReason(sem.AnyFromError), true, true
		}
		item, ok := a.analyzeType(ub.Args[0], span)
		if !ok {
			return nil, true, false
		}
		return sem.MakeSimplifiedUnion([]sem.Type{item, &sem.NoneType{}}), true, true
	case "typing.Union":
		items, ok := a.analyzeTypeList(ub.Args, span)
		if !ok {
			return nil, true, false
		}
		return sem.MakeSimplifiedUnion(items), true, true
	case "typing.Tuple", "builtins.tuple":
		if len(ub.Args) == 0 {
			return a.NamedType("builtins.tuple", nil), true, true
		}
		items, ok := a.analyzeTypeList(ub.Args, span)
		if !ok {
			return nil, true, false
		}
		return &sem.TupleType{Items: items, Fallback: a.NamedType("builtins.tuple", nil)}, true, true
	case "typing.List", "builtins.list":
		args, ok := a.analyzeTypeList(ub.Args, span)
		if !ok {
			return nil, true, false
		}
		return a.NamedType("builtins.list", args), true, true
	case "typing.Dict", "builtins.dict":
		args, ok := a.analyzeTypeList(ub.Args, span)
		if !ok {
			return nil, true, false
		}
		return a.NamedType("builtins.dict", args), true, true
	case "typing.Type", "builtins.type":
		if len(ub.Args) != 1 {
			return a.NamedType("builtins.type", nil), true, true
		}
		item, ok := a.analyzeType(ub.Args[0], span)
		if !ok {
			return nil, true, false
		}
		return &sem.TypeType{Item: item}, true, true
	case "typing.Callable":
		callable, ok := a.analyzeCallableForm(ub, span)
		if !ok {
			return nil, true, false
		}
		return callable, true, true
	case "typing.Final", "typing.ClassVar":
		if len(ub.Args) == 1 {
			item, ok := a.analyzeType(ub.Args[0], span)
			if !ok {
				return nil, true, false
			}
			return item, true, true
		}
		return sem.AnyFromReason(sem.AnySpecialForm), true, true
	case "typing.Generic", "typing.NamedTuple":
		return sem.AnyFromReason(sem.AnySpecialForm), true, true
	}
	return nil, false, false
}

// analyzeCallableForm builds a callable from Callable[[args...], ret] or
// Callable[..., ret].
func (a *Analyzer) analyzeCallableForm(ub *sem.UnboundType, span diag.Span) (sem.Type, bool) {
	fallback := a.NamedType("builtins.function", nil)
	if len(ub.Args) != 2 {
		if len(ub.Args) != 0 {
			a.Fail("Please use \"Callable[[<parameters>], <return type>]\" or \"Callable\"", span, false)
		}
		return &sem.CallableType{
			RetType:        sem.AnyFromReason(sem.AnySpecialForm),
			Fallback:       fallback,
			IsEllipsisArgs: true,
		}, true
	}
	ret, ok := a.analyzeType(ub.Args[1], span)
	if !ok {
		return nil, false
	}
	if anyArg, isAny := ub.Args[0].(*sem.AnyType); isAny && anyArg.Reason == sem.AnySpecialForm {
		return &sem.CallableType{
			RetType:        ret,
			Fallback:       fallback,
			IsEllipsisArgs: true,
		}, true
	}
	argList, isList := ub.Args[0].(*sem.UnboundType)
	if !isList || argList.Name != "" {
		a.Fail("The first argument to Callable must be a list of types or \"...\"", span, false)
		return sem.AnyFromReason(sem.AnyFromError), true
	}
	argTypes, ok := a.analyzeTypeList(argList.Args, span)
	if !ok {
		return nil, false
	}
	c := &sem.CallableType{
		ArgTypes: argTypes,
		RetType:  ret,
		Fallback: fallback,
	}
	for range argTypes {
		c.ArgKinds = append(c.ArgKinds, sem.ArgPos)
		c.ArgNames = append(c.ArgNames, "")
	}
	return c, true
}

func (a *Analyzer) analyzeTypeList(args []sem.Type, span diag.Span) ([]sem.Type, bool) {
	out := make([]sem.Type, len(args))
	for i, arg := range args {
		analyzed, ok := a.analyzeType(arg, span)
		if !ok {
			return nil, false
		}
		out[i] = analyzed
	}
	return out, true
}

// lookupTypeName resolves a possibly dotted annotation name through the
// lexical scopes.
func (a *Analyzer) lookupTypeName(name string) *sem.Symbol {
	if !strings.Contains(name, ".") {
		return a.lookupName(name)
	}
	parts := strings.Split(name, ".")
	sym := a.lookupName(parts[0])
	if sym == nil {
		return nil
	}
	for _, part := range parts[1:] {
		switch node := sym.Node.(type) {
		case *sem.ModuleRef:
			table := a.moduleNames(node.FullName)
			if table == nil {
				return nil
			}
			sym = table[part]
		case *sem.TypeInfo:
			sym = node.Get(part)
		default:
			return nil
		}
		if sym == nil {
			return nil
		}
	}
	return sym
}

// typeAnalyzerHandle adapts the analyzer to the hook-facing type analysis
// surface, pinning the span errors report at.
type typeAnalyzerHandle struct {
	a    *Analyzer
	span diag.Span
}

func (h typeAnalyzerHandle) NamedType(fullname string, args []sem.Type) *sem.Instance {
	return h.a.NamedType(fullname, args)
}

func (h typeAnalyzerHandle) AnalyzeType(typ sem.Type) sem.Type {
	analyzed, ok := h.a.analyzeType(typ, h.span)
	if !ok {
		h.a.defer_()
		return sem.AnyFromReason(sem.AnySpecialForm)
	}
	return analyzed
}

func (h typeAnalyzerHandle) Fail(msg string, span diag.Span) {
	h.a.Fail(msg, span, false)
}
