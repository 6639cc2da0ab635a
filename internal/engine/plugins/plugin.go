// Package plugins implements the hook dispatch chain that lets extensions
// refine inferred types at named call, attribute and class-definition sites.
package plugins

import (
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

// SemanticAPI is the capability handle passed to analysis-phase hooks. It
// exposes only what those hooks are allowed to do: request named types with
// explicit arguments, register symbols through the class mutation helpers,
// and report diagnostics.
type SemanticAPI interface {
	// NamedType resolves a fully qualified class name to an instance type.
	// Unknown builtins are a programming error and panic.
	NamedType(fullname string, args []sem.Type) *sem.Instance
	// NamedTypeOrNone is the tolerant variant; nil when unknown.
	NamedTypeOrNone(fullname string, args []sem.Type) *sem.Instance
	LookupFullyQualified(fullname string) *sem.Symbol
	// ParseBool extracts a bool literal from an expression; ok is false when
	// the expression is not True or False.
	ParseBool(expr syntax.Expression) (value, ok bool)
	Fail(msg string, span diag.Span, blocking bool)
	Options() sem.Options
}

// CheckerAPI is the capability handle passed to checking-phase hooks. Unlike
// SemanticAPI it may hand out fully instantiated generic types, but it grants
// no symbol registration.
type CheckerAPI interface {
	NamedGenericType(fullname string, args []sem.Type) *sem.Instance
	Fail(msg string, span diag.Span)
}

// TypeAnalyzerAPI is the handle for type-expression analysis hooks.
type TypeAnalyzerAPI interface {
	NamedType(fullname string, args []sem.Type) *sem.Instance
	AnalyzeType(typ sem.Type) sem.Type
	Fail(msg string, span diag.Span)
}

// AnalyzeTypeContext is passed to a type-expression analysis hook.
type AnalyzeTypeContext struct {
	Type *sem.UnboundType
	Span diag.Span
	API  TypeAnalyzerAPI
}

// FunctionContext is passed to a free-function call hook. ArgTypes and Args
// hold the actuals mapped per formal argument, so star arguments can carry
// several actuals for one formal.
type FunctionContext struct {
	ArgTypes          [][]sem.Type
	Args              [][]syntax.Expression
	DefaultReturnType sem.Type
	Span              diag.Span
	API               CheckerAPI
}

// MethodSigContext is passed to a method signature hook. Argument types are
// not available yet at this phase; hooks needing them use a method hook.
type MethodSigContext struct {
	Type             sem.Type
	Args             [][]syntax.Expression
	DefaultSignature *sem.CallableType
	Span             diag.Span
	API              CheckerAPI
}

// MethodContext is passed to a method call hook.
type MethodContext struct {
	Type              sem.Type
	ArgTypes          [][]sem.Type
	Args              [][]syntax.Expression
	DefaultReturnType sem.Type
	Span              diag.Span
	API               CheckerAPI
}

// AttributeContext is passed to an attribute access hook.
type AttributeContext struct {
	Type            sem.Type
	DefaultAttrType sem.Type
	Span            diag.Span
	API             CheckerAPI
}

// ClassDefContext is passed to class decorator, metaclass and base class
// hooks. Reason is the expression that triggered the hook (the decorator,
// metaclass or base expression).
type ClassDefContext struct {
	Cls    *syntax.ClassDef
	Reason syntax.Expression
	API    SemanticAPI
}

// Hook signatures, one per extension point. A class-definition hook reports
// false to request deferral to a later pass; every other hook returns its
// replacement type (never nil).
type (
	AnalyzeTypeHook func(AnalyzeTypeContext) sem.Type
	FunctionHook    func(FunctionContext) sem.Type
	MethodSigHook   func(MethodSigContext) *sem.CallableType
	MethodHook      func(MethodContext) sem.Type
	AttributeHook   func(AttributeContext) sem.Type
	ClassDefHook    func(ClassDefContext) bool
)

// Plugin is the hook lookup surface. Each method returns the hook registered
// for the given fully qualified name, or nil when the plugin has nothing to
// say about it. Lookups are pure functions; results may be cached.
type Plugin interface {
	TypeAnalyzeHook(fullname string) AnalyzeTypeHook
	FunctionHook(fullname string) FunctionHook
	MethodSignatureHook(fullname string) MethodSigHook
	MethodHook(fullname string) MethodHook
	AttributeHook(fullname string) AttributeHook
	ClassDecoratorHook(fullname string) ClassDefHook
	MetaclassHook(fullname string) ClassDefHook
	BaseClassHook(fullname string) ClassDefHook
}

// Base is the no-op plugin. Concrete plugins embed it and override the
// lookups they implement; a bare Base instance also serves as the final
// fallback in every chain.
type Base struct {
	Opts sem.Options
}

func NewBase(opts sem.Options) *Base { return &Base{Opts: opts} }

func (*Base) TypeAnalyzeHook(string) AnalyzeTypeHook   { return nil }
func (*Base) FunctionHook(string) FunctionHook         { return nil }
func (*Base) MethodSignatureHook(string) MethodSigHook { return nil }
func (*Base) MethodHook(string) MethodHook             { return nil }
func (*Base) AttributeHook(string) AttributeHook       { return nil }
func (*Base) ClassDecoratorHook(string) ClassDefHook   { return nil }
func (*Base) MetaclassHook(string) ClassDefHook        { return nil }
func (*Base) BaseClassHook(string) ClassDefHook        { return nil }

// Chain queries a fixed sequence of plugins in registration order; the first
// non-nil hook for a fullname wins and the rest are not consulted. The child
// plugins must not be mutated after construction.
type Chain struct {
	plugins []Plugin
}

// NewChain builds the dispatch chain. A no-op Base is appended as the final
// fallback so every lookup has a defined miss behavior.
func NewChain(opts sem.Options, plugins []Plugin) *Chain {
	all := make([]Plugin, 0, len(plugins)+1)
	all = append(all, plugins...)
	all = append(all, NewBase(opts))
	return &Chain{plugins: all}
}

func (c *Chain) TypeAnalyzeHook(fullname string) AnalyzeTypeHook {
	for _, p := range c.plugins {
		if hook := p.TypeAnalyzeHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

func (c *Chain) FunctionHook(fullname string) FunctionHook {
	for _, p := range c.plugins {
		if hook := p.FunctionHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

func (c *Chain) MethodSignatureHook(fullname string) MethodSigHook {
	for _, p := range c.plugins {
		if hook := p.MethodSignatureHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

func (c *Chain) MethodHook(fullname string) MethodHook {
	for _, p := range c.plugins {
		if hook := p.MethodHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

func (c *Chain) AttributeHook(fullname string) AttributeHook {
	for _, p := range c.plugins {
		if hook := p.AttributeHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

func (c *Chain) ClassDecoratorHook(fullname string) ClassDefHook {
	for _, p := range c.plugins {
		if hook := p.ClassDecoratorHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

func (c *Chain) MetaclassHook(fullname string) ClassDefHook {
	for _, p := range c.plugins {
		if hook := p.MetaclassHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}

func (c *Chain) BaseClassHook(fullname string) ClassDefHook {
	for _, p := range c.plugins {
		if hook := p.BaseClassHook(fullname); hook != nil {
			return hook
		}
	}
	return nil
}
