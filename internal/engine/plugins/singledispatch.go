package plugins

import (
	"fmt"

	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

// Singledispatch support. The dispatcher's state lives entirely in the type
// arguments of its synthetic generic instance: argument 0 is the fallback
// signature, followed by (dispatch type, registered function) pairs appended
// by register() call sites. No global side table is involved, so the known
// overload set narrows per dispatcher value as the checker threads the
// instance type through the program.

const (
	SingledispatchTypeName   = "functools._SingleDispatchCallable"
	singledispatchFunction   = "functools.singledispatch"
	registerMethodName       = SingledispatchTypeName + ".register"
	dispatcherCallMethodName = SingledispatchTypeName + ".__call__"

	registerReturnClass      = "_SingleDispatchRegisterCallable"
	registerCallableCallName = "functools." + registerReturnClass + ".__call__"
)

// DispatchedFallback decodes the fallback signature from a dispatcher
// instance; nil when the instance carries no singledispatch encoding.
func DispatchedFallback(inst *sem.Instance) *sem.CallableType {
	if len(inst.Args) == 0 {
		return nil
	}
	fallback, _ := inst.Args[0].(*sem.CallableType)
	return fallback
}

// RegisteredOverloads decodes the (dispatch type, registered function) pairs.
func RegisteredOverloads(inst *sem.Instance) []sem.Type {
	if len(inst.Args) <= 1 {
		return nil
	}
	return inst.Args[1:]
}

// singledispatchFunctionCallback handles a functools.singledispatch call:
// the fallback implementation being decorated becomes type argument 0 of the
// returned dispatcher instance.
func singledispatchFunctionCallback(ctx FunctionContext) sem.Type {
	first, ok := FirstArg(ctx.ArgTypes)
	if !ok {
		return ctx.DefaultReturnType
	}
	fallback, ok := first.(*sem.CallableType)
	if !ok {
		return ctx.DefaultReturnType
	}

	if len(fallback.ArgKinds) < 1 {
		failAt(ctx.API, "Singledispatch function requires at least one argument",
			fallback.Definition, ctx.Span)
		return ctx.DefaultReturnType
	}
	if !fallback.ArgKinds[0].IsPositional() {
		failAt(ctx.API, "First argument to singledispatch function must be a positional argument",
			fallback.Definition, ctx.Span)
		return ctx.DefaultReturnType
	}

	dispatcher, ok := ctx.DefaultReturnType.(*sem.Instance)
	if !ok || dispatcher.Info.FullName != SingledispatchTypeName {
		dispatcher = ctx.API.NamedGenericType(SingledispatchTypeName, nil)
	}
	return &sem.Instance{Info: dispatcher.Info, Args: []sem.Type{fallback}}
}

// registerCallback handles dispatcher.register(...). Two call shapes exist:
// register(SomeClass) returns a decorator that registers the decorated
// function for SomeClass, and register(func) registers func for the type of
// its first argument.
func registerCallback(ctx MethodContext) sem.Type {
	dispatcher, ok := ctx.Type.(*sem.Instance)
	if !ok {
		return ctx.DefaultReturnType
	}
	first, ok := FirstArg(ctx.ArgTypes)
	if !ok {
		return ctx.DefaultReturnType
	}

	if classRef, isType := first.(*sem.TypeType); isType {
		// The dispatch type was passed explicitly; the decorated function
		// arrives later via the returned register callable's __call__.
		return makeRegisterCallableInstance(ctx.API, classRef.Item, dispatcher)
	}

	if fn, isCallable := first.(*sem.CallableType); isCallable {
		if extended := registerFunction(ctx, dispatcher, fn, nil); extended != nil {
			return extended
		}
	}
	return ctx.DefaultReturnType
}

// registerCallableCallCallback fires when the decorator returned by
// register(SomeClass) is applied to the implementation function.
func registerCallableCallCallback(ctx MethodContext) sem.Type {
	wrapper, ok := ctx.Type.(*sem.Instance)
	if !ok || len(wrapper.Args) != 2 {
		return ctx.DefaultReturnType
	}
	registerType := wrapper.Args[0]
	dispatcher, ok := wrapper.Args[1].(*sem.Instance)
	if !ok {
		return ctx.DefaultReturnType
	}
	first, ok := FirstArg(ctx.ArgTypes)
	if !ok {
		return ctx.DefaultReturnType
	}
	fn, ok := first.(*sem.CallableType)
	if !ok {
		return ctx.DefaultReturnType
	}
	registerFunction(ctx, dispatcher, fn, registerType)
	return ctx.DefaultReturnType
}

// registerFunction validates a registration against the fallback and returns
// the dispatcher instance extended with the new (dispatch type, function)
// pair, or nil when the registration was rejected.
func registerFunction(ctx MethodContext, dispatcher *sem.Instance, fn *sem.CallableType, registerArg sem.Type) *sem.Instance {
	fallback := DispatchedFallback(dispatcher)
	if fallback == nil {
		return nil
	}
	dispatchType := registerArg
	if dispatchType == nil {
		if len(fn.ArgTypes) == 0 {
			return nil
		}
		dispatchType = fn.ArgTypes[0]
	}
	fallbackDispatchType := fallback.ArgTypes[0]
	if !sem.IsSubtype(dispatchType, fallbackDispatchType) {
		failAt(ctx.API,
			fmt.Sprintf("Dispatch type %q must be subtype of fallback function first argument %q",
				dispatchType.String(), fallbackDispatchType.String()),
			fn.Definition, ctx.Span)
		return nil
	}
	args := make([]sem.Type, 0, len(dispatcher.Args)+2)
	args = append(args, dispatcher.Args...)
	args = append(args, dispatchType, fn)
	return &sem.Instance{Info: dispatcher.Info, Args: args}
}

// dispatcherCallCallback exposes the fallback's signature for calls through
// the dispatcher. Dispatch-based overload resolution is deliberately not
// attempted.
func dispatcherCallCallback(ctx MethodSigContext) *sem.CallableType {
	dispatcher, ok := ctx.Type.(*sem.Instance)
	if !ok {
		return ctx.DefaultSignature
	}
	if fallback := DispatchedFallback(dispatcher); fallback != nil {
		return fallback
	}
	return ctx.DefaultSignature
}

// makeRegisterCallableInstance builds the synthetic class standing in for
// the decorator returned by register(SomeClass), carrying the dispatch type
// and the dispatcher as its two type arguments.
func makeRegisterCallableInstance(api CheckerAPI, registerType sem.Type, dispatcher *sem.Instance) *sem.Instance {
	objInfo := api.NamedGenericType("builtins.object", nil).Info

	defn := &syntax.ClassDef{Name: registerReturnClass, FullName: "functools." + registerReturnClass}
	info := sem.NewTypeInfo(make(sem.SymbolTable), defn, "functools")
	info.Bases = []*sem.Instance{{Info: objInfo}}
	info.SetMRO([]*sem.TypeInfo{info, objInfo})
	defn.Info = info

	fn := &syntax.FuncDef{
		Name:     "__call__",
		FullName: info.FullName + ".__call__",
		Info:     info,
	}
	anyArg := sem.AnyFromReason(sem.AnyImplementationArtifact)
	fn.Type = &sem.CallableType{
		Name:     "__call__ of " + registerReturnClass,
		ArgTypes: []sem.Type{&sem.Instance{Info: info}, anyArg},
		ArgKinds: []sem.ArgKind{sem.ArgPos, sem.ArgPos},
		ArgNames: []string{"self", "name"},
		RetType:  &sem.NoneType{},
		Fallback: api.NamedGenericType("builtins.function", nil),
	}
	sym := sem.NewSymbol(sem.MDEF, fn)
	sym.PluginGenerated = true
	info.Names["__call__"] = sym

	return &sem.Instance{Info: info, Args: []sem.Type{registerType, dispatcher}}
}
