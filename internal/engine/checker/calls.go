package checker

import (
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

// checkCall types a call expression: it resolves the callee into a
// signature, maps actuals onto formals, validates arity and dispatches the
// signature and return-type hooks.
func (c *Checker) checkCall(call *syntax.CallExpr) sem.Type {
	argTypes := make([]sem.Type, len(call.Args))
	for i, arg := range call.Args {
		argTypes[i] = c.ExprType(arg)
	}

	if member, ok := call.Callee.(*syntax.MemberExpr); ok {
		if recv := instanceOf(c.ExprType(member.Expr)); recv != nil {
			return c.checkMethodCall(call, member, recv, argTypes)
		}
	}

	calleeType := c.ExprType(call.Callee)
	switch callee := calleeType.(type) {
	case *sem.CallableType:
		return c.checkFunctionCall(call, callee, argTypes)
	case *sem.Instance:
		return c.checkDunderCall(call, callee, argTypes)
	case *sem.TypeType:
		if inst, ok := callee.Item.(*sem.Instance); ok {
			return c.checkConstructorCall(call, inst.Info, argTypes)
		}
	}
	return sem.AnyFromReason(sem.AnySpecialForm)
}

func (c *Checker) checkMethodCall(call *syntax.CallExpr, member *syntax.MemberExpr, recv *sem.Instance, argTypes []sem.Type) sem.Type {
	sym := recv.Info.Get(member.Name)
	if sym == nil {
		return sem.AnyFromReason(sem.AnySpecialForm)
	}
	sig, _ := sym.Type().(*sem.CallableType)
	fullname := ""
	if sym.Node != nil {
		fullname = sym.Node.DeclFullName()
	}
	recvType := c.ExprType(member.Expr)
	return c.dispatchMethod(call, fullname, recvType, sig, argTypes)
}

// checkDunderCall handles calling an instance directly through its __call__
// method.
func (c *Checker) checkDunderCall(call *syntax.CallExpr, recv *sem.Instance, argTypes []sem.Type) sem.Type {
	sym := recv.Info.Get("__call__")
	if sym == nil {
		return sem.AnyFromReason(sem.AnySpecialForm)
	}
	sig, _ := sym.Type().(*sem.CallableType)
	fullname := ""
	if sym.Node != nil {
		fullname = sym.Node.DeclFullName()
	}
	return c.dispatchMethod(call, fullname, recv, sig, argTypes)
}

func (c *Checker) dispatchMethod(call *syntax.CallExpr, fullname string, recvType sem.Type, sig *sem.CallableType, argTypes []sem.Type) sem.Type {
	if sig != nil {
		sig = dropReceiver(sig)
	}

	mappedExprs := mapActuals(sig, call, call.Args)
	if hook := c.plugin.MethodSignatureHook(fullname); hook != nil && fullname != "" {
		replacement := hook(plugins.MethodSigContext{
			Type:             recvType,
			Args:             mappedExprs,
			DefaultSignature: sig,
			Span:             call.Pos,
			API:              c,
		})
		if replacement != nil {
			sig = replacement
			mappedExprs = mapActuals(sig, call, call.Args)
		}
	}

	ret := sem.Type(sem.AnyFromReason(sem.AnySpecialForm))
	if sig != nil {
		c.checkArgCount(sig, call)
		ret = sig.RetType
	}

	if hook := c.plugin.MethodHook(fullname); hook != nil && fullname != "" {
		mappedTypes := mapActuals(sig, call, argTypes)
		return hook(plugins.MethodContext{
			Type:              recvType,
			ArgTypes:          mappedTypes,
			Args:              mappedExprs,
			DefaultReturnType: ret,
			Span:              call.Pos,
			API:               c,
		})
	}
	return ret
}

func (c *Checker) checkFunctionCall(call *syntax.CallExpr, sig *sem.CallableType, argTypes []sem.Type) sem.Type {
	c.checkArgCount(sig, call)
	fullname := refName(call.Callee)
	if hook := c.plugin.FunctionHook(fullname); hook != nil && fullname != "" {
		return hook(plugins.FunctionContext{
			ArgTypes:          mapActuals(sig, call, argTypes),
			Args:              mapActuals(sig, call, call.Args),
			DefaultReturnType: sig.RetType,
			Span:              call.Pos,
			API:               c,
		})
	}
	return sig.RetType
}

// checkConstructorCall validates instantiation against the synthesized or
// declared __new__/__init__ signature when one exists.
func (c *Checker) checkConstructorCall(call *syntax.CallExpr, info *sem.TypeInfo, argTypes []sem.Type) sem.Type {
	ret := &sem.Instance{Info: info}
	ctor := info.Get("__new__")
	if ctor == nil {
		ctor = info.Get("__init__")
	}
	if ctor != nil {
		if sig, ok := ctor.Type().(*sem.CallableType); ok {
			c.checkArgCount(dropReceiver(sig), call)
		}
	}
	return ret
}

// applyValue applies a value to one argument, as when a decorator factory
// result wraps a function. Instances route through their __call__ hook so
// chained registration APIs keep working.
func (c *Checker) applyValue(value sem.Type, fullname string, arg sem.Type, span diag.Span) sem.Type {
	switch v := value.(type) {
	case *sem.CallableType:
		if hook := c.plugin.FunctionHook(fullname); hook != nil && fullname != "" {
			return hook(plugins.FunctionContext{
				ArgTypes:          [][]sem.Type{{arg}},
				Args:              [][]syntax.Expression{nil},
				DefaultReturnType: v.RetType,
				Span:              span,
				API:               c,
			})
		}
		return v.RetType
	case *sem.Instance:
		sym := v.Info.Get("__call__")
		if sym == nil || sym.Node == nil {
			return sem.AnyFromReason(sem.AnySpecialForm)
		}
		ret := sem.Type(sem.AnyFromReason(sem.AnySpecialForm))
		if sig, ok := sym.Type().(*sem.CallableType); ok {
			ret = sig.RetType
		}
		if hook := c.plugin.MethodHook(sym.Node.DeclFullName()); hook != nil {
			return hook(plugins.MethodContext{
				Type:              v,
				ArgTypes:          [][]sem.Type{{arg}},
				Args:              [][]syntax.Expression{nil},
				DefaultReturnType: ret,
				Span:              span,
				API:               c,
			})
		}
		return ret
	}
	return sem.AnyFromReason(sem.AnySpecialForm)
}

// applyMethodValue applies a bound method to one argument, used when a
// decorator expression like f.register wraps a function directly.
func (c *Checker) applyMethodValue(recv *sem.Instance, name string, arg sem.Type, span diag.Span) sem.Type {
	sym := recv.Info.Get(name)
	if sym == nil || sym.Node == nil {
		return sem.AnyFromReason(sem.AnySpecialForm)
	}
	ret := sem.Type(sem.AnyFromReason(sem.AnySpecialForm))
	if sig, ok := sym.Type().(*sem.CallableType); ok {
		ret = sig.RetType
	}
	if hook := c.plugin.MethodHook(sym.Node.DeclFullName()); hook != nil {
		return hook(plugins.MethodContext{
			Type:              recv,
			ArgTypes:          [][]sem.Type{{arg}},
			Args:              [][]syntax.Expression{nil},
			DefaultReturnType: ret,
			Span:              span,
			API:               c,
		})
	}
	return ret
}

// dropReceiver removes the bound first argument from a method signature.
func dropReceiver(sig *sem.CallableType) *sem.CallableType {
	if len(sig.ArgTypes) == 0 {
		return sig
	}
	return sig.CopyModified(func(c *sem.CallableType) {
		c.ArgTypes = c.ArgTypes[1:]
		c.ArgKinds = c.ArgKinds[1:]
		c.ArgNames = c.ArgNames[1:]
	})
}

// mapActuals distributes call actuals over the signature's formals. Star
// formals absorb overflow positionals, double-star formals absorb unmatched
// keywords. A nil signature maps every actual to a single pseudo-formal.
func mapActuals[T any](sig *sem.CallableType, call *syntax.CallExpr, actuals []T) [][]T {
	if sig == nil {
		out := make([][]T, 1)
		out[0] = append(out[0], actuals...)
		return out
	}
	out := make([][]T, len(sig.ArgTypes))
	starIdx, star2Idx := -1, -1
	var posFormals []int
	named := make(map[string]int)
	for i, kind := range sig.ArgKinds {
		switch {
		case kind == sem.ArgStar:
			starIdx = i
		case kind == sem.ArgStar2:
			star2Idx = i
		case kind.IsPositional():
			posFormals = append(posFormals, i)
		default:
			named[sig.ArgNames[i]] = i
		}
		if kind != sem.ArgStar && kind != sem.ArgStar2 && sig.ArgNames[i] != "" {
			named[sig.ArgNames[i]] = i
		}
	}

	nextPos := 0
	for i, actual := range actuals {
		if i >= len(call.ArgKinds) {
			break
		}
		switch kind := call.ArgKinds[i]; {
		case kind == sem.ArgStar:
			if starIdx >= 0 {
				out[starIdx] = append(out[starIdx], actual)
			}
		case kind == sem.ArgStar2:
			if star2Idx >= 0 {
				out[star2Idx] = append(out[star2Idx], actual)
			}
		case kind.IsNamed():
			if idx, ok := named[call.ArgNames[i]]; ok {
				out[idx] = append(out[idx], actual)
			} else if star2Idx >= 0 {
				out[star2Idx] = append(out[star2Idx], actual)
			}
		default:
			if nextPos < len(posFormals) {
				out[posFormals[nextPos]] = append(out[posFormals[nextPos]], actual)
				nextPos++
			} else if starIdx >= 0 {
				out[starIdx] = append(out[starIdx], actual)
			}
		}
	}
	return out
}

// checkArgCount enforces arity. Star actuals make the count statically
// unknown, so they suppress the strict checks.
func (c *Checker) checkArgCount(sig *sem.CallableType, call *syntax.CallExpr) {
	if sig.IsEllipsisArgs {
		return
	}
	target := ""
	if sig.Name != "" {
		target = " for \"" + sig.Name + "\""
	}

	nPos := 0
	namedActuals := make(map[string]bool)
	for i, kind := range call.ArgKinds {
		switch {
		case kind.IsStar():
			return
		case kind.IsNamed():
			namedActuals[call.ArgNames[i]] = true
		default:
			nPos++
		}
	}

	if maxPos := sig.MaxPositionalArgs(); maxPos >= 0 && nPos > maxPos {
		c.Fail("Too many arguments"+target, call.Pos)
		return
	}

	hasStar2 := false
	formalNames := make(map[string]bool)
	for i, kind := range sig.ArgKinds {
		if kind == sem.ArgStar2 {
			hasStar2 = true
		}
		if !kind.IsStar() && sig.ArgNames[i] != "" {
			formalNames[sig.ArgNames[i]] = true
		}
	}
	for name := range namedActuals {
		if !formalNames[name] && !hasStar2 {
			c.Fail("Unexpected keyword argument \""+name+"\""+target, call.Pos)
		}
	}

	filled := 0
	for i, kind := range sig.ArgKinds {
		if kind.IsStar() || kind.IsOptional() {
			continue
		}
		if kind == sem.ArgPos {
			if filled < nPos || namedActuals[sig.ArgNames[i]] {
				filled++
				continue
			}
			c.Fail("Too few arguments"+target, call.Pos)
			return
		}
		if kind == sem.ArgNamed && !namedActuals[sig.ArgNames[i]] {
			c.Fail("Missing named argument \""+sig.ArgNames[i]+"\""+target, call.Pos)
		}
	}
}
