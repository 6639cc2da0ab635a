package plugins

import (
	"testing"

	"typewatch/internal/engine/sem"
)

type stubPlugin struct {
	Base
}

func (p *stubPlugin) FunctionHook(fullname string) FunctionHook {
	if fullname == "contextlib.contextmanager" {
		return func(FunctionContext) sem.Type { return &sem.NoneType{} }
	}
	return nil
}

func TestChainFirstNonNilWins(t *testing.T) {
	opts := sem.DefaultOptions()
	chain := NewChain(opts, []Plugin{&stubPlugin{}, NewDefault(opts)})

	hook := chain.FunctionHook("contextlib.contextmanager")
	if hook == nil {
		t.Fatal("hook not found")
	}
	if _, ok := hook(FunctionContext{}).(*sem.NoneType); !ok {
		t.Fatal("earlier plugin did not shadow the default hook")
	}
}

func TestChainFallsThroughToDefault(t *testing.T) {
	opts := sem.DefaultOptions()
	chain := NewChain(opts, []Plugin{&stubPlugin{}, NewDefault(opts)})

	if chain.MethodHook("builtins.str.__mod__") == nil {
		t.Fatal("default method hook lost in the chain")
	}
}

func TestChainUnknownNameIsNil(t *testing.T) {
	opts := sem.DefaultOptions()
	chain := NewChain(opts, []Plugin{NewDefault(opts)})

	if chain.FunctionHook("no.such.function") != nil {
		t.Fatal("unknown fullname should have no hook")
	}
	if chain.AttributeHook("no.such.attr") != nil {
		t.Fatal("unknown fullname should have no attribute hook")
	}
}
