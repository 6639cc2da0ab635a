package plugins

import (
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

// Default is the built-in plugin registered at the end of every chain, so
// user plugins can shadow any of its hooks by fullname.
type Default struct {
	Base
}

func NewDefault(opts sem.Options) *Default {
	return &Default{Base{Opts: opts}}
}

func (p *Default) FunctionHook(fullname string) FunctionHook {
	switch fullname {
	case "contextlib.contextmanager":
		return contextmanagerCallback
	case "builtins.open":
		if p.Opts.PythonVersion[0] == 3 {
			return openCallback
		}
	case singledispatchFunction:
		return singledispatchFunctionCallback
	}
	return nil
}

func (p *Default) MethodSignatureHook(fullname string) MethodSigHook {
	if fullname == dispatcherCallMethodName {
		return dispatcherCallCallback
	}
	return nil
}

func (p *Default) MethodHook(fullname string) MethodHook {
	switch fullname {
	case registerMethodName:
		return registerCallback
	case registerCallableCallName:
		return registerCallableCallCallback
	case "builtins.str.__mod__":
		return strModCallback
	case "builtins.str.format":
		return strFormatCallback
	case "builtins.int.__pow__":
		return intPowCallback
	}
	return nil
}

func (p *Default) ClassDecoratorHook(fullname string) ClassDefHook {
	if DataclassMakers[fullname] {
		return DataclassMakerCallback
	}
	return nil
}

// openCallback disambiguates the return type of open() when the mode
// argument is absent or a string literal.
func openCallback(ctx FunctionContext) sem.Type {
	mode := ""
	known := false
	if len(ctx.Args) < 2 || len(ctx.Args[1]) == 0 {
		mode = "r"
		known = true
	} else if len(ctx.Args[1]) == 1 {
		if str, ok := ctx.Args[1][0].(*syntax.StrExpr); ok {
			mode = str.Value
			known = true
		}
	}
	if !known {
		return ctx.DefaultReturnType
	}
	if containsByte(mode) {
		return ctx.API.NamedGenericType("typing.BinaryIO", nil)
	}
	return ctx.API.NamedGenericType("typing.TextIO", nil)
}

func containsByte(mode string) bool {
	for _, r := range mode {
		if r == 'b' {
			return true
		}
	}
	return false
}

// contextmanagerCallback restores the decorated function's argument
// information, which the declared return type of the decorator does not
// preserve.
func contextmanagerCallback(ctx FunctionContext) sem.Type {
	first, ok := FirstArg(ctx.ArgTypes)
	if !ok {
		return ctx.DefaultReturnType
	}
	argType, ok := first.(*sem.CallableType)
	if !ok {
		return ctx.DefaultReturnType
	}
	ret, ok := ctx.DefaultReturnType.(*sem.CallableType)
	if !ok {
		return ctx.DefaultReturnType
	}
	return ret.CopyModified(func(c *sem.CallableType) {
		c.ArgTypes = argType.ArgTypes
		c.ArgKinds = argType.ArgKinds
		c.ArgNames = argType.ArgNames
		c.Variables = argType.Variables
		c.IsEllipsisArgs = argType.IsEllipsisArgs
	})
}

// intPowCallback narrows int.__pow__ by the sign of a literal exponent.
func intPowCallback(ctx MethodContext) sem.Type {
	first, ok := FirstArg(ctx.Args)
	if !ok {
		return ctx.DefaultReturnType
	}
	var exponent int64
	switch arg := first.(type) {
	case *syntax.IntExpr:
		exponent = arg.Value
	case *syntax.UnaryExpr:
		inner, isInt := arg.Expr.(*syntax.IntExpr)
		if !isInt || arg.Op != "-" {
			return ctx.DefaultReturnType
		}
		exponent = -inner.Value
	default:
		return ctx.DefaultReturnType
	}
	if exponent >= 0 {
		return ctx.API.NamedGenericType("builtins.int", nil)
	}
	return ctx.API.NamedGenericType("builtins.float", nil)
}
