package syntax

import (
	"strings"

	"typewatch/internal/engine/sem"
)

// ExprToType converts an annotation expression into its unanalyzed type
// form. Everything name-shaped becomes an UnboundType; resolution happens
// during semantic analysis, never here.
func ExprToType(e Expression) sem.Type {
	switch expr := e.(type) {
	case *NameExpr:
		return &sem.UnboundType{Name: expr.Name}
	case *MemberExpr:
		if name, ok := DottedName(expr); ok {
			return &sem.UnboundType{Name: name}
		}
	case *StrExpr:
		// A string annotation is a forward reference to the quoted name.
		return &sem.UnboundType{Name: strings.TrimSpace(expr.Value)}
	case *IndexExpr:
		base := ExprToType(expr.Base)
		unbound, ok := base.(*sem.UnboundType)
		if !ok {
			return sem.AnyFromReason(sem.AnyFromError)
		}
		args := indexArgs(expr.Index)
		return &sem.UnboundType{Name: unbound.Name, Args: args}
	case *TupleExpr:
		items := make([]sem.Type, 0, len(expr.Items))
		for _, it := range expr.Items {
			items = append(items, ExprToType(it))
		}
		return &sem.UnboundType{Name: "tuple", Args: items}
	case *ListExpr:
		// Bare lists appear only inside Callable[[...], R]; represent them as
		// an argument-list pseudo type.
		items := make([]sem.Type, 0, len(expr.Items))
		for _, it := range expr.Items {
			items = append(items, ExprToType(it))
		}
		return &sem.UnboundType{Name: "", Args: items}
	case *EllipsisExpr:
		return sem.AnyFromReason(sem.AnySpecialForm)
	case *TempNode:
		if expr.TypeOf != nil {
			return expr.TypeOf
		}
	}
	return sem.AnyFromReason(sem.AnyFromError)
}

func indexArgs(index Expression) []sem.Type {
	if tup, ok := index.(*TupleExpr); ok {
		args := make([]sem.Type, 0, len(tup.Items))
		for _, it := range tup.Items {
			args = append(args, ExprToType(it))
		}
		return args
	}
	return []sem.Type{ExprToType(index)}
}

// DottedName flattens a member access chain like a.b.c into "a.b.c". The
// second result is false when the chain bottoms out in something other than
// a name.
func DottedName(e Expression) (string, bool) {
	switch expr := e.(type) {
	case *NameExpr:
		return expr.Name, true
	case *MemberExpr:
		base, ok := DottedName(expr.Expr)
		if !ok {
			return "", false
		}
		return base + "." + expr.Name, true
	}
	return "", false
}
