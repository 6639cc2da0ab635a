package syntax

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
)

// Parser turns Python source into the AST consumed by semantic analysis.
// Safe for sequential reuse; each Parse call creates its own tree-sitter
// parser.
type Parser struct {
	language *sitter.Language
}

func NewParser() *Parser {
	return &Parser{language: sitter.NewLanguage(tree_sitter_python.Language())}
}

// Parse builds a File from source. Parse errors surface as a Go error; the
// caller decides whether they block the module.
func (p *Parser) Parse(content []byte, path, moduleName string) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("set grammar: %w", err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errors.New("parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			return nil, fmt.Errorf("syntax error at %s:%d:%d",
				path, int(bad.StartPosition().Row)+1, int(bad.StartPosition().Column))
		}
		return nil, errors.New("syntax error")
	}

	b := &builder{source: content, path: path}
	file := &File{
		Path:       path,
		ModuleName: moduleName,
		IsStub:     strings.HasSuffix(path, ".pyi"),
	}
	file.Pos = diag.Span{Path: path, Line: 1}
	file.Defs = b.statements(root)
	return file, nil
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

type builder struct {
	source []byte
	path   string
}

func (b *builder) span(node *sitter.Node) diag.Span {
	return diag.Span{
		Path:   b.path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column),
	}
}

func (b *builder) text(node *sitter.Node) string {
	return string(b.source[node.StartByte():node.EndByte()])
}

// statements converts the named children of a module or block node.
func (b *builder) statements(node *sitter.Node) []Statement {
	var out []Statement
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if stmt := b.statement(child); stmt != nil {
			out = append(out, stmt)
		}
	}
	return out
}

func (b *builder) statement(node *sitter.Node) Statement {
	switch node.Kind() {
	case "import_statement":
		return b.importStmt(node)
	case "import_from_statement":
		return b.importFromStmt(node)
	case "function_definition":
		return b.funcDef(node)
	case "class_definition":
		return b.classDef(node, nil)
	case "decorated_definition":
		return b.decoratedDef(node)
	case "expression_statement":
		return b.expressionStmt(node)
	case "pass_statement":
		return &PassStmt{NodeBase: NodeBase{Pos: b.span(node)}}
	case "return_statement":
		ret := &ReturnStmt{NodeBase: NodeBase{Pos: b.span(node)}}
		if node.NamedChildCount() > 0 {
			ret.Expr = b.expression(node.NamedChild(0))
		}
		return ret
	case "comment":
		return nil
	}
	// Statements outside the analyzed subset (loops, with, try) still have
	// their top-level expressions visible to reference stripping, but the
	// analyzer does not descend into them. Represent them by their span only.
	return &PassStmt{NodeBase: NodeBase{Pos: b.span(node)}}
}

func (b *builder) expressionStmt(node *sitter.Node) Statement {
	if node.NamedChildCount() == 0 {
		return nil
	}
	inner := node.NamedChild(0)
	switch inner.Kind() {
	case "assignment":
		return b.assignment(inner)
	case "augmented_assignment":
		// Augmented assignment never defines a new name; treat as a plain
		// expression statement.
	}
	return &ExpressionStmt{
		NodeBase: NodeBase{Pos: b.span(node)},
		Expr:     b.expression(inner),
	}
}

func (b *builder) assignment(node *sitter.Node) Statement {
	stmt := &AssignmentStmt{NodeBase: NodeBase{Pos: b.span(node)}}

	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	typeNode := node.ChildByFieldName("type")

	if left != nil {
		stmt.Lvalues = append(stmt.Lvalues, b.expression(left))
	}

	// Chained assignment a = b = v nests a second assignment on the right.
	for right != nil && right.Kind() == "assignment" {
		if l := right.ChildByFieldName("left"); l != nil {
			stmt.Lvalues = append(stmt.Lvalues, b.expression(l))
		}
		right = right.ChildByFieldName("right")
	}

	if right != nil {
		stmt.Rvalue = b.expression(right)
	} else {
		// Bare annotation "x: T" has no right-hand side.
		stmt.Rvalue = &TempNode{NodeBase: NodeBase{Pos: b.span(node)}}
	}

	if typeNode != nil {
		stmt.NewSyntax = true
		ann := b.expression(typeNode)
		stmt.UnanalyzedType = ExprToType(ann)
		stmt.Type = stmt.UnanalyzedType
	}
	return stmt
}

func (b *builder) importStmt(node *sitter.Node) Statement {
	stmt := &ImportStmt{NodeBase: NodeBase{Pos: b.span(node)}}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "dotted_name", "identifier":
			stmt.IDs = append(stmt.IDs, ImportedName{Name: b.text(child)})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			id := ImportedName{}
			if name != nil {
				id.Name = b.text(name)
			}
			if alias != nil {
				id.As = b.text(alias)
			}
			stmt.IDs = append(stmt.IDs, id)
		}
	}
	return stmt
}

func (b *builder) importFromStmt(node *sitter.Node) Statement {
	span := b.span(node)
	moduleID := ""
	relative := 0
	var names []ImportedName
	wildcard := false

	if mod := node.ChildByFieldName("module_name"); mod != nil {
		if mod.Kind() == "relative_import" {
			raw := b.text(mod)
			trimmed := strings.TrimLeft(raw, ".")
			relative = len(raw) - len(trimmed)
			moduleID = trimmed
		} else {
			moduleID = b.text(mod)
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "wildcard_import":
			wildcard = true
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			id := ImportedName{}
			if name != nil {
				id.Name = b.text(name)
			}
			if alias != nil {
				id.As = b.text(alias)
			}
			names = append(names, id)
		case "dotted_name", "identifier":
			if mod := node.ChildByFieldName("module_name"); mod != nil && mod.Id() == child.Id() {
				continue
			}
			names = append(names, ImportedName{Name: b.text(child)})
		}
	}

	if wildcard {
		return &ImportAllStmt{NodeBase: NodeBase{Pos: span}, ModuleID: moduleID}
	}
	return &ImportFromStmt{
		NodeBase: NodeBase{Pos: span},
		ModuleID: moduleID,
		Relative: relative,
		Names:    names,
	}
}

func (b *builder) decoratedDef(node *sitter.Node) Statement {
	var decorators []Expression
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "decorator" && child.NamedChildCount() > 0 {
			decorators = append(decorators, b.expression(child.NamedChild(0)))
		}
	}

	def := node.ChildByFieldName("definition")
	if def == nil {
		return nil
	}
	switch def.Kind() {
	case "class_definition":
		return b.classDef(def, decorators)
	case "function_definition":
		fn, ok := b.funcDef(def).(*FuncDef)
		if !ok {
			return nil
		}
		fn.IsDecorated = true
		return &Decorator{
			NodeBase:   NodeBase{Pos: b.span(node)},
			Func:       fn,
			Decorators: decorators,
		}
	}
	return nil
}

func (b *builder) classDef(node *sitter.Node, decorators []Expression) Statement {
	name := node.ChildByFieldName("name")
	if name == nil {
		return nil
	}
	cls := &ClassDef{
		NodeBase:   NodeBase{Pos: b.span(node)},
		Name:       b.text(name),
		Decorators: decorators,
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			arg := supers.NamedChild(i)
			if arg.Kind() == "keyword_argument" {
				key := arg.ChildByFieldName("name")
				value := arg.ChildByFieldName("value")
				if key == nil || value == nil {
					continue
				}
				expr := b.expression(value)
				if b.text(key) == "metaclass" {
					cls.Metaclass = expr
				} else {
					if cls.Keywords == nil {
						cls.Keywords = make(map[string]Expression)
					}
					cls.Keywords[b.text(key)] = expr
				}
				continue
			}
			cls.BaseTypeExprs = append(cls.BaseTypeExprs, b.expression(arg))
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		cls.Body = b.statements(body)
	}
	return cls
}

func (b *builder) funcDef(node *sitter.Node) Statement {
	name := node.ChildByFieldName("name")
	if name == nil {
		return nil
	}
	fn := &FuncDef{
		NodeBase: NodeBase{Pos: b.span(node)},
		Name:     b.text(name),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Params = b.params(params)
	}

	var retType sem.Type
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		retType = ExprToType(b.expression(ret))
	} else {
		retType = sem.AnyFromReason(sem.AnyUnannotated)
	}

	if body := node.ChildByFieldName("body"); body != nil {
		fn.Body = b.statements(body)
	}

	fn.UnanalyzedType = signature(fn.Name, fn.Params, retType)
	fn.Type = fn.UnanalyzedType
	return fn
}

// signature builds the declared callable type of a function from its
// parameter list. Unannotated parameters contribute unannotated Any.
func signature(name string, params []*Param, retType sem.Type) *sem.CallableType {
	sig := &sem.CallableType{Name: name, RetType: retType}
	for _, p := range params {
		t := p.TypeAnnotation
		if t == nil {
			t = sem.AnyFromReason(sem.AnyUnannotated)
		}
		sig.ArgTypes = append(sig.ArgTypes, t)
		sig.ArgKinds = append(sig.ArgKinds, p.Kind)
		sig.ArgNames = append(sig.ArgNames, p.Name)
	}
	return sig
}

func (b *builder) params(node *sitter.Node) []*Param {
	var out []*Param
	seenStar := false
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		p := &Param{}
		switch child.Kind() {
		case "identifier":
			p.Name = b.text(child)
			p.Kind = sem.ArgPos
		case "typed_parameter":
			if inner := child.NamedChild(0); inner != nil {
				switch inner.Kind() {
				case "identifier":
					p.Name = b.text(inner)
					p.Kind = sem.ArgPos
				case "list_splat_pattern":
					p.Name = b.patternName(inner)
					p.Kind = sem.ArgStar
					seenStar = true
				case "dictionary_splat_pattern":
					p.Name = b.patternName(inner)
					p.Kind = sem.ArgStar2
				}
			}
			if typ := child.ChildByFieldName("type"); typ != nil {
				p.TypeAnnotation = ExprToType(b.expression(typ))
			}
		case "default_parameter", "typed_default_parameter":
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = b.text(n)
			}
			if typ := child.ChildByFieldName("type"); typ != nil {
				p.TypeAnnotation = ExprToType(b.expression(typ))
			}
			if val := child.ChildByFieldName("value"); val != nil {
				p.DefaultValue = b.expression(val)
			}
			p.Kind = sem.ArgOpt
		case "list_splat_pattern":
			p.Name = b.patternName(child)
			p.Kind = sem.ArgStar
			seenStar = true
		case "dictionary_splat_pattern":
			p.Name = b.patternName(child)
			p.Kind = sem.ArgStar2
		case "keyword_separator":
			seenStar = true
			continue
		case "positional_separator":
			continue
		default:
			continue
		}
		if seenStar && (p.Kind == sem.ArgPos || p.Kind == sem.ArgOpt) {
			if p.Kind == sem.ArgOpt {
				p.Kind = sem.ArgNamedOpt
			} else {
				p.Kind = sem.ArgNamed
			}
		}
		out = append(out, p)
	}
	return out
}

func (b *builder) patternName(node *sitter.Node) string {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if node.NamedChild(i).Kind() == "identifier" {
			return b.text(node.NamedChild(i))
		}
	}
	return ""
}

func (b *builder) expression(node *sitter.Node) Expression {
	span := b.span(node)
	switch node.Kind() {
	case "identifier":
		return &NameExpr{NodeBase: NodeBase{Pos: span}, Name: b.text(node)}
	case "none":
		return &NameExpr{NodeBase: NodeBase{Pos: span}, Name: "None"}
	case "true":
		return &NameExpr{NodeBase: NodeBase{Pos: span}, Name: "True"}
	case "false":
		return &NameExpr{NodeBase: NodeBase{Pos: span}, Name: "False"}
	case "attribute":
		obj := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			break
		}
		return &MemberExpr{
			NodeBase: NodeBase{Pos: span},
			Expr:     b.expression(obj),
			Name:     b.text(attr),
		}
	case "call":
		return b.call(node)
	case "subscript":
		value := node.ChildByFieldName("value")
		if value == nil {
			break
		}
		idx := &IndexExpr{NodeBase: NodeBase{Pos: span}, Base: b.expression(value)}
		var subs []Expression
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Id() == value.Id() {
				continue
			}
			subs = append(subs, b.expression(child))
		}
		if len(subs) == 1 {
			idx.Index = subs[0]
		} else {
			idx.Index = &TupleExpr{NodeBase: NodeBase{Pos: span}, Items: subs}
		}
		return idx
	case "string", "concatenated_string":
		return &StrExpr{NodeBase: NodeBase{Pos: span}, Value: b.stringValue(node)}
	case "integer":
		v, err := strconv.ParseInt(strings.ReplaceAll(b.text(node), "_", ""), 0, 64)
		if err == nil {
			return &IntExpr{NodeBase: NodeBase{Pos: span}, Value: v}
		}
	case "float":
		v, err := strconv.ParseFloat(strings.ReplaceAll(b.text(node), "_", ""), 64)
		if err == nil {
			return &FloatExpr{NodeBase: NodeBase{Pos: span}, Value: v}
		}
	case "tuple", "expression_list":
		tup := &TupleExpr{NodeBase: NodeBase{Pos: span}}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			tup.Items = append(tup.Items, b.expression(node.NamedChild(i)))
		}
		return tup
	case "list":
		lst := &ListExpr{NodeBase: NodeBase{Pos: span}}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			lst.Items = append(lst.Items, b.expression(node.NamedChild(i)))
		}
		return lst
	case "ellipsis":
		return &EllipsisExpr{NodeBase: NodeBase{Pos: span}}
	case "unary_operator":
		if arg := node.ChildByFieldName("argument"); arg != nil {
			op := strings.TrimSpace(strings.TrimSuffix(b.text(node), b.text(arg)))
			return &UnaryExpr{NodeBase: NodeBase{Pos: span}, Op: op, Expr: b.expression(arg)}
		}
	case "binary_operator":
		// X | Y annotations arrive as binary_operator; keep both operands as
		// a tuple under a synthetic name the type converter understands.
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		op := node.ChildByFieldName("operator")
		if left != nil && right != nil && op != nil {
			if b.text(op) == "|" {
				return &IndexExpr{
					NodeBase: NodeBase{Pos: span},
					Base:     &NameExpr{NodeBase: NodeBase{Pos: span}, Name: "typing.Union"},
					Index: &TupleExpr{NodeBase: NodeBase{Pos: span}, Items: []Expression{
						b.expression(left), b.expression(right),
					}},
				}
			}
			if method, ok := binaryMethods[b.text(op)]; ok {
				// Lower the operator to its dunder method call so the
				// checker dispatches it like any other method.
				return &CallExpr{
					NodeBase: NodeBase{Pos: span},
					Callee: &MemberExpr{
						NodeBase: NodeBase{Pos: span},
						Expr:     b.expression(left),
						Name:     method,
					},
					Args:     []Expression{b.expression(right)},
					ArgKinds: []sem.ArgKind{sem.ArgPos},
					ArgNames: []string{""},
				}
			}
		}
	case "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			return b.expression(node.NamedChild(0))
		}
	}
	// Anything else is irrelevant to this analysis layer.
	return &TempNode{NodeBase: NodeBase{Pos: span}}
}

var binaryMethods = map[string]string{
	"+":  "__add__",
	"-":  "__sub__",
	"*":  "__mul__",
	"/":  "__truediv__",
	"//": "__floordiv__",
	"%":  "__mod__",
	"**": "__pow__",
	"&":  "__and__",
	"^":  "__xor__",
	"<<": "__lshift__",
	">>": "__rshift__",
	"@":  "__matmul__",
}

func (b *builder) call(node *sitter.Node) Expression {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if fn == nil {
		return &TempNode{NodeBase: NodeBase{Pos: b.span(node)}}
	}
	call := &CallExpr{
		NodeBase: NodeBase{Pos: b.span(node)},
		Callee:   b.expression(fn),
	}
	if args == nil {
		return call
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		switch arg.Kind() {
		case "keyword_argument":
			key := arg.ChildByFieldName("name")
			value := arg.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}
			call.Args = append(call.Args, b.expression(value))
			call.ArgKinds = append(call.ArgKinds, sem.ArgNamed)
			call.ArgNames = append(call.ArgNames, b.text(key))
		case "list_splat":
			if arg.NamedChildCount() > 0 {
				call.Args = append(call.Args, b.expression(arg.NamedChild(0)))
				call.ArgKinds = append(call.ArgKinds, sem.ArgStar)
				call.ArgNames = append(call.ArgNames, "")
			}
		case "dictionary_splat":
			if arg.NamedChildCount() > 0 {
				call.Args = append(call.Args, b.expression(arg.NamedChild(0)))
				call.ArgKinds = append(call.ArgKinds, sem.ArgStar2)
				call.ArgNames = append(call.ArgNames, "")
			}
		case "comment":
		default:
			call.Args = append(call.Args, b.expression(arg))
			call.ArgKinds = append(call.ArgKinds, sem.ArgPos)
			call.ArgNames = append(call.ArgNames, "")
		}
	}
	return call
}

// stringValue extracts the unquoted content of a string literal, including
// concatenated parts.
func (b *builder) stringValue(node *sitter.Node) string {
	if node.Kind() == "concatenated_string" {
		var sb strings.Builder
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() == "string" {
				sb.WriteString(b.stringValue(child))
			}
		}
		return sb.String()
	}
	var sb strings.Builder
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "string_content" {
			sb.WriteString(b.text(child))
		}
	}
	return sb.String()
}
