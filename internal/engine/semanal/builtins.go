package semanal

import (
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
)

// The analyzer runs against a synthetic universe of builtin and library
// symbols instead of parsing real stubs. Only the names the engine touches
// are modeled; everything else resolves through normal imports or fails.

type builtinUniverse struct {
	modules map[string]sem.SymbolTable
}

func newBuiltinUniverse() *builtinUniverse {
	u := &builtinUniverse{modules: make(map[string]sem.SymbolTable)}
	u.seedBuiltins()
	u.seedTyping()
	u.seedDataclasses()
	u.seedFunctools()
	u.seedContextlib()
	u.seedCollections()
	return u
}

func (u *builtinUniverse) module(name string) sem.SymbolTable {
	table := u.modules[name]
	if table == nil {
		table = make(sem.SymbolTable)
		u.modules[name] = table
	}
	return table
}

// newClass creates a class symbol in a synthetic module. Bases are applied
// later by linkBases once every class exists.
func (u *builtinUniverse) newClass(module, name string) *sem.TypeInfo {
	info := sem.NewTypeInfo(make(sem.SymbolTable), nil, module)
	info.Name = name
	info.FullName = module + "." + name
	info.Span = diag.Span{Path: "<" + module + ">"}
	u.module(module)[name] = sem.NewSymbol(sem.GDEF, info)
	return info
}

func (u *builtinUniverse) newFunction(module, name string, sig *sem.CallableType) *sem.Var {
	v := sem.NewVar(name, sig)
	v.FullName = module + "." + name
	v.Span = diag.Span{Path: "<" + module + ">"}
	u.module(module)[name] = sem.NewSymbol(sem.GDEF, v)
	return v
}

func (u *builtinUniverse) class(fullname string) *sem.TypeInfo {
	for module, table := range u.modules {
		if len(fullname) > len(module) && fullname[:len(module)] == module && fullname[len(module)] == '.' {
			if sym := table[fullname[len(module)+1:]]; sym != nil {
				if info, ok := sym.Node.(*sem.TypeInfo); ok {
					return info
				}
			}
		}
	}
	return nil
}

func (u *builtinUniverse) seedBuiltins() {
	object := u.newClass("builtins", "object")
	object.SetMRO([]*sem.TypeInfo{object})

	derived := func(name string) *sem.TypeInfo {
		info := u.newClass("builtins", name)
		info.Bases = []*sem.Instance{{Info: object}}
		info.SetMRO([]*sem.TypeInfo{info, object})
		return info
	}

	derived("type")
	derived("tuple")
	str := derived("str")
	intInfo := derived("int")
	derived("float")
	boolInfo := u.newClass("builtins", "bool")
	boolInfo.Bases = []*sem.Instance{{Info: intInfo}}
	boolInfo.SetMRO([]*sem.TypeInfo{boolInfo, intInfo, object})
	derived("dict")
	derived("list")
	derived("set")
	derived("bytes")
	derived("function")
	derived("property")
	exc := derived("BaseException")
	exception := u.newClass("builtins", "Exception")
	exception.Bases = []*sem.Instance{{Info: exc}}
	exception.SetMRO([]*sem.TypeInfo{exception, exc, object})

	anyType := sem.AnyFromReason(sem.AnySpecialForm)
	method := func(info *sem.TypeInfo, name string, sig *sem.CallableType) {
		v := sem.NewVar(name, sig)
		v.FullName = info.FullName + "." + name
		info.Names[name] = sem.NewSymbol(sem.MDEF, v)
	}
	method(str, "__mod__", &sem.CallableType{
		Name:     "__mod__ of str",
		ArgTypes: []sem.Type{&sem.Instance{Info: str}, anyType},
		ArgKinds: []sem.ArgKind{sem.ArgPos, sem.ArgPos},
		ArgNames: []string{"self", "value"},
		RetType:  &sem.Instance{Info: str},
	})
	method(str, "format", &sem.CallableType{
		Name:     "format of str",
		ArgTypes: []sem.Type{&sem.Instance{Info: str}, anyType, anyType},
		ArgKinds: []sem.ArgKind{sem.ArgPos, sem.ArgStar, sem.ArgStar2},
		ArgNames: []string{"self", "args", "kwargs"},
		RetType:  &sem.Instance{Info: str},
	})
	method(intInfo, "__pow__", &sem.CallableType{
		Name:     "__pow__ of int",
		ArgTypes: []sem.Type{&sem.Instance{Info: intInfo}, anyType},
		ArgKinds: []sem.ArgKind{sem.ArgPos, sem.ArgPos},
		ArgNames: []string{"self", "exponent"},
		RetType:  &sem.Instance{Info: intInfo},
	})
	u.newFunction("builtins", "open", &sem.CallableType{
		Name:     "open",
		ArgTypes: []sem.Type{&sem.Instance{Info: str}, &sem.Instance{Info: str}},
		ArgKinds: []sem.ArgKind{sem.ArgPos, sem.ArgOpt},
		ArgNames: []string{"file", "mode"},
		RetType:  sem.AnyFromReason(sem.AnySpecialForm),
	})
	u.newFunction("builtins", "len", &sem.CallableType{
		Name:     "len",
		ArgTypes: []sem.Type{sem.AnyFromReason(sem.AnySpecialForm)},
		ArgKinds: []sem.ArgKind{sem.ArgPos},
		ArgNames: []string{"obj"},
		RetType:  &sem.Instance{Info: intInfo},
	})
}

func (u *builtinUniverse) seedTyping() {
	object := u.class("builtins.object")
	derived := func(name string) *sem.TypeInfo {
		info := u.newClass("typing", name)
		info.Bases = []*sem.Instance{{Info: object}}
		info.SetMRO([]*sem.TypeInfo{info, object})
		return info
	}
	derived("Iterable")
	derived("Mapping")
	derived("BinaryIO")
	derived("TextIO")
	// NamedTuple, TypeVar and the special forms are handled by name in the
	// type analyzer; they still need symbols so references resolve.
	for _, name := range []string{"NamedTuple", "TypeVar", "Generic", "Optional", "Union", "Any", "ClassVar", "Final", "Tuple", "List", "Dict", "Callable", "Type"} {
		v := sem.NewVar(name, sem.AnyFromReason(sem.AnySpecialForm))
		v.FullName = "typing." + name
		v.Span = diag.Span{Path: "<typing>"}
		u.module("typing")[name] = sem.NewSymbol(sem.GDEF, v)
	}
}

func (u *builtinUniverse) seedDataclasses() {
	object := u.class("builtins.object")
	for _, name := range []string{"InitVar", "KW_ONLY", "Field"} {
		info := u.newClass("dataclasses", name)
		info.Bases = []*sem.Instance{{Info: object}}
		info.SetMRO([]*sem.TypeInfo{info, object})
	}
	anyType := sem.AnyFromReason(sem.AnySpecialForm)
	u.newFunction("dataclasses", "dataclass", &sem.CallableType{
		Name:     "dataclass",
		ArgTypes: []sem.Type{anyType},
		ArgKinds: []sem.ArgKind{sem.ArgOpt},
		ArgNames: []string{"cls"},
		RetType:  anyType,
	})
	fieldInfo := u.class("dataclasses.Field")
	u.newFunction("dataclasses", "field", &sem.CallableType{
		Name:     "field",
		ArgTypes: []sem.Type{anyType, anyType, anyType, anyType},
		ArgKinds: []sem.ArgKind{sem.ArgNamedOpt, sem.ArgNamedOpt, sem.ArgNamedOpt, sem.ArgNamedOpt},
		ArgNames: []string{"default", "default_factory", "init", "kw_only"},
		RetType:  &sem.Instance{Info: fieldInfo},
	})
}

func (u *builtinUniverse) seedFunctools() {
	object := u.class("builtins.object")
	dispatcher := u.newClass("functools", "_SingleDispatchCallable")
	dispatcher.Bases = []*sem.Instance{{Info: object}}
	dispatcher.SetMRO([]*sem.TypeInfo{dispatcher, object})

	anyType := sem.AnyFromReason(sem.AnySpecialForm)
	registerSig := &sem.CallableType{
		Name:     "register of _SingleDispatchCallable",
		ArgTypes: []sem.Type{&sem.Instance{Info: dispatcher}, anyType},
		ArgKinds: []sem.ArgKind{sem.ArgPos, sem.ArgPos},
		ArgNames: []string{"self", "cls"},
		RetType:  anyType,
	}
	register := sem.NewVar("register", registerSig)
	register.FullName = dispatcher.FullName + ".register"
	dispatcher.Names["register"] = sem.NewSymbol(sem.MDEF, register)

	callSig := &sem.CallableType{
		Name:           "__call__ of _SingleDispatchCallable",
		ArgTypes:       []sem.Type{&sem.Instance{Info: dispatcher}, anyType},
		ArgKinds:       []sem.ArgKind{sem.ArgPos, sem.ArgStar},
		ArgNames:       []string{"self", "args"},
		RetType:        anyType,
		IsEllipsisArgs: true,
	}
	call := sem.NewVar("__call__", callSig)
	call.FullName = dispatcher.FullName + ".__call__"
	dispatcher.Names["__call__"] = sem.NewSymbol(sem.MDEF, call)

	u.newFunction("functools", "singledispatch", &sem.CallableType{
		Name:     "singledispatch",
		ArgTypes: []sem.Type{anyType},
		ArgKinds: []sem.ArgKind{sem.ArgPos},
		ArgNames: []string{"func"},
		RetType:  &sem.Instance{Info: dispatcher},
	})
}

func (u *builtinUniverse) seedContextlib() {
	anyType := sem.AnyFromReason(sem.AnySpecialForm)
	u.newFunction("contextlib", "contextmanager", &sem.CallableType{
		Name:           "contextmanager",
		ArgTypes:       []sem.Type{anyType},
		ArgKinds:       []sem.ArgKind{sem.ArgPos},
		ArgNames:       []string{"func"},
		RetType:        &sem.CallableType{Name: "", RetType: anyType, IsEllipsisArgs: true},
		IsEllipsisArgs: false,
	})
}

func (u *builtinUniverse) seedCollections() {
	anyType := sem.AnyFromReason(sem.AnySpecialForm)
	v := sem.NewVar("namedtuple", anyType)
	v.FullName = "collections.namedtuple"
	v.Span = diag.Span{Path: "<collections>"}
	u.module("collections")["namedtuple"] = sem.NewSymbol(sem.GDEF, v)
}
