package sem

import (
	"fmt"
	"strings"
)

// TypeVarScope holds type variable bindings for one binding context. Child
// scopes share (do not own) their parent; lookups read through the chain but
// never mutate an ancestor. Function-bound ids are negative and decrease;
// class-bound ids are positive and increase.
type TypeVarScope struct {
	parent   *TypeVarScope
	bindings map[string]*TypeVarType
	funcID   int
	classID  int
}

func NewTypeVarScope(parent *TypeVarScope) *TypeVarScope {
	s := &TypeVarScope{
		parent:   parent,
		bindings: make(map[string]*TypeVarType),
	}
	if parent != nil {
		s.funcID = parent.funcID
		s.classID = parent.classID
	}
	return s
}

func (s *TypeVarScope) Parent() *TypeVarScope { return s.parent }

// BindFunc binds a function-scoped type variable to a fresh negative id.
func (s *TypeVarScope) BindFunc(name string, expr *TypeVarExpr) *TypeVarType {
	s.funcID--
	return s.bind(name, expr, s.funcID)
}

// BindClass binds a class-scoped type variable to a fresh positive id.
func (s *TypeVarScope) BindClass(name string, expr *TypeVarExpr) *TypeVarType {
	s.classID++
	return s.bind(name, expr, s.classID)
}

func (s *TypeVarScope) bind(name string, expr *TypeVarExpr, id int) *TypeVarType {
	tv := &TypeVarType{
		Name:       name,
		FullName:   expr.FullName,
		ID:         id,
		Values:     expr.Values,
		UpperBound: expr.UpperBound,
		Variance:   expr.Variance,
	}
	s.bindings[expr.FullName] = tv
	return tv
}

// Binding resolves a type variable by fullname, falling back through the
// parent chain.
func (s *TypeVarScope) Binding(fullname string) *TypeVarType {
	if tv, ok := s.bindings[fullname]; ok {
		return tv
	}
	if s.parent != nil {
		return s.parent.Binding(fullname)
	}
	return nil
}

func (s *TypeVarScope) String() string {
	parts := make([]string, 0, len(s.bindings))
	for k, v := range s.bindings {
		parts = append(parts, fmt.Sprintf("%s: %s`%d", k, v.Name, v.ID))
	}
	me := strings.Join(parts, ", ")
	if s.parent == nil {
		return me
	}
	return s.parent.String() + " <- " + me
}
