// Package checker is the expression checker that runs after semantic
// analysis: it types expressions bottom-up, validates call arity against
// resolved signatures, enforces read-only property assignments and drives
// the call-site plugin hooks.
package checker

import (
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/semanal"
	"typewatch/internal/engine/syntax"
)

type Checker struct {
	opts     sem.Options
	reporter *diag.Reporter
	plugin   plugins.Plugin
	sema     *semanal.Analyzer
}

func New(opts sem.Options, reporter *diag.Reporter, plugin plugins.Plugin, sema *semanal.Analyzer) *Checker {
	return &Checker{opts: opts, reporter: reporter, plugin: plugin, sema: sema}
}

// --- plugins.CheckerAPI ---

func (c *Checker) NamedGenericType(fullname string, args []sem.Type) *sem.Instance {
	return c.sema.NamedType(fullname, args)
}

func (c *Checker) Fail(msg string, span diag.Span) {
	c.reporter.Fail(msg, span, false)
}

// CheckFile walks the analyzed module in source order.
func (c *Checker) CheckFile(file *syntax.File) {
	for _, stmt := range file.Defs {
		c.checkStmt(stmt)
	}
}

func (c *Checker) checkStmt(stmt syntax.Statement) {
	switch s := stmt.(type) {
	case *syntax.AssignmentStmt:
		c.checkAssignment(s)
	case *syntax.ExpressionStmt:
		c.ExprType(s.Expr)
	case *syntax.ReturnStmt:
		if s.Expr != nil {
			c.ExprType(s.Expr)
		}
	case *syntax.ClassDef:
		for _, body := range s.Body {
			c.checkStmt(body)
		}
	case *syntax.FuncDef:
		for _, body := range s.Body {
			c.checkStmt(body)
		}
	case *syntax.Decorator:
		c.checkDecorator(s)
	case *syntax.OverloadedFuncDef:
		for _, item := range s.Items {
			c.checkStmt(item)
		}
		if s.Impl != nil {
			c.checkStmt(s.Impl)
		}
	}
}

func (c *Checker) checkAssignment(stmt *syntax.AssignmentStmt) {
	c.ExprType(stmt.Rvalue)
	for _, lv := range stmt.Lvalues {
		member, ok := lv.(*syntax.MemberExpr)
		if !ok {
			continue
		}
		recv := instanceOf(c.ExprType(member.Expr))
		if recv == nil {
			continue
		}
		sym := recv.Info.Get(member.Name)
		if sym == nil {
			continue
		}
		v, isVar := sym.Node.(*sem.Var)
		if !isVar || !v.IsProperty || v.IsSettableProperty {
			continue
		}
		owner := recv.Info.Name
		if v.Info != nil {
			owner = v.Info.Name
		}
		c.Fail("Property \""+member.Name+"\" defined in \""+owner+"\" is read-only", member.Pos)
	}
}

// checkDecorator types the decorated definition by applying each decorator
// value innermost-first, so chained factories like f.register(int) flow
// through the method hooks.
func (c *Checker) checkDecorator(dec *syntax.Decorator) {
	for _, body := range dec.Func.Body {
		c.checkStmt(body)
	}
	current := dec.Func.Type
	if current == nil {
		current = sem.AnyFromReason(sem.AnyUnannotated)
	}
	for i := len(dec.Decorators) - 1; i >= 0; i-- {
		d := dec.Decorators[i]
		if isTransparentDecorator(d) {
			continue
		}
		if member, ok := d.(*syntax.MemberExpr); ok && member.Node == nil {
			if recv := instanceOf(c.ExprType(member.Expr)); recv != nil {
				current = c.applyMethodValue(recv, member.Name, current, dec.Pos)
				continue
			}
		}
		value := c.ExprType(d)
		current = c.applyValue(value, refName(d), current, dec.Pos)
	}
	if dec.Var != nil {
		dec.Var.Type = current
	}
}

func isTransparentDecorator(e syntax.Expression) bool {
	switch refName(e) {
	case "builtins.property", "builtins.classmethod", "builtins.staticmethod":
		return true
	}
	return false
}

// ExprType types a single expression, dispatching call-site hooks on the
// way.
func (c *Checker) ExprType(e syntax.Expression) sem.Type {
	switch expr := e.(type) {
	case *syntax.StrExpr:
		return &sem.LiteralType{Value: expr.Value, Fallback: c.NamedGenericType("builtins.str", nil)}
	case *syntax.IntExpr:
		return &sem.LiteralType{Value: expr.Value, Fallback: c.NamedGenericType("builtins.int", nil)}
	case *syntax.FloatExpr:
		return c.NamedGenericType("builtins.float", nil)
	case *syntax.EllipsisExpr:
		return sem.AnyFromReason(sem.AnySpecialForm)
	case *syntax.NameExpr:
		return c.nameType(expr)
	case *syntax.MemberExpr:
		return c.memberType(expr)
	case *syntax.CallExpr:
		return c.checkCall(expr)
	case *syntax.TupleExpr:
		items := make([]sem.Type, 0, len(expr.Items))
		for _, it := range expr.Items {
			items = append(items, c.ExprType(it))
		}
		return &sem.TupleType{Items: items, Fallback: c.NamedGenericType("builtins.tuple", nil)}
	case *syntax.ListExpr:
		for _, it := range expr.Items {
			c.ExprType(it)
		}
		return c.NamedGenericType("builtins.list", nil)
	case *syntax.UnaryExpr:
		return c.ExprType(expr.Expr)
	case *syntax.IndexExpr:
		if expr.AnalyzedAlias != nil {
			return sem.AnyFromReason(sem.AnySpecialForm)
		}
		c.ExprType(expr.Base)
		c.ExprType(expr.Index)
		return sem.AnyFromReason(sem.AnySpecialForm)
	}
	return sem.AnyFromReason(sem.AnySpecialForm)
}

func (c *Checker) nameType(expr *syntax.NameExpr) sem.Type {
	switch node := expr.Node.(type) {
	case *sem.Var:
		if node.Type != nil {
			return node.Type
		}
	case *sem.TypeInfo:
		return &sem.TypeType{Item: &sem.Instance{Info: node}}
	case *syntax.FuncDef:
		if node.Type != nil {
			return node.Type
		}
	case *syntax.Decorator:
		if node.Var != nil && node.Var.Type != nil {
			return node.Var.Type
		}
	case *syntax.OverloadedFuncDef:
		if node.Type != nil {
			return node.Type
		}
	}
	switch expr.Name {
	case "None":
		return &sem.NoneType{}
	case "True", "False":
		return c.NamedGenericType("builtins.bool", nil)
	}
	return sem.AnyFromReason(sem.AnySpecialForm)
}

func (c *Checker) memberType(expr *syntax.MemberExpr) sem.Type {
	if expr.Node != nil {
		if typ := expr.Node.DeclType(); typ != nil {
			return typ
		}
	}
	recvType := c.ExprType(expr.Expr)
	recv := instanceOf(recvType)
	if recv == nil {
		return sem.AnyFromReason(sem.AnySpecialForm)
	}
	sym := recv.Info.Get(expr.Name)
	if sym == nil {
		return sem.AnyFromReason(sem.AnySpecialForm)
	}
	attrType := sym.Type()
	if attrType == nil {
		attrType = sem.AnyFromReason(sem.AnySpecialForm)
	}
	if sym.Node != nil {
		if hook := c.plugin.AttributeHook(sym.Node.DeclFullName()); hook != nil {
			return hook(plugins.AttributeContext{
				Type:            recvType,
				DefaultAttrType: attrType,
				Span:            expr.Pos,
				API:             c,
			})
		}
	}
	return attrType
}

// instanceOf projects a type onto its nominal instance: literals fall back
// to their base class, named tuples already are instances.
func instanceOf(t sem.Type) *sem.Instance {
	switch typ := t.(type) {
	case *sem.Instance:
		return typ
	case *sem.LiteralType:
		return typ.Fallback
	case *sem.TupleType:
		return typ.Fallback
	}
	return nil
}

func refName(e syntax.Expression) string {
	switch expr := e.(type) {
	case *syntax.NameExpr:
		return expr.FullName
	case *syntax.MemberExpr:
		return expr.FullName
	}
	return ""
}
