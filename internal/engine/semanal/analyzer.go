package semanal

import (
	"strings"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

// Analyzer binds names and types for a set of modules. It is driven in
// passes: PassOne gets top level names into scope, PassTwo performs the full
// analysis and reports Deferred when a definition needs a later pass.
//
// Single-threaded by design. A TypeInfo's symbol table is mutated only by
// the pass currently owning that class.
type Analyzer struct {
	opts     sem.Options
	reporter *diag.Reporter
	plugin   plugins.Plugin
	universe *builtinUniverse
	files    map[string]*syntax.File

	curFile   *syntax.File
	curInfo   *sem.TypeInfo
	curFunc   *syntax.FuncDef
	locals    sem.SymbolTable
	tvarScope *sem.TypeVarScope

	// bindFuncTVars is set while a function signature is being analyzed, so
	// type variable references bind fresh function-scoped ids.
	bindFuncTVars bool
	boundTVars    []*sem.TypeVarType

	deferred  bool
	failed    bool
	finalPass bool

	namedtuple *namedTupleAnalyzer
}

func New(opts sem.Options, reporter *diag.Reporter, plugin plugins.Plugin) *Analyzer {
	a := &Analyzer{
		opts:     opts,
		reporter: reporter,
		plugin:   plugin,
		universe: newBuiltinUniverse(),
		files:    make(map[string]*syntax.File),
	}
	a.namedtuple = &namedTupleAnalyzer{api: a}
	return a
}

func (a *Analyzer) AddFile(file *syntax.File) {
	if file.Names == nil {
		file.Names = make(sem.SymbolTable)
	}
	a.files[file.ModuleName] = file
}

func (a *Analyzer) Files() map[string]*syntax.File { return a.files }

// --- plugins.SemanticAPI ---

func (a *Analyzer) Options() sem.Options { return a.opts }

func (a *Analyzer) Fail(msg string, span diag.Span, blocking bool) {
	a.reporter.Fail(msg, span, blocking)
	if blocking {
		a.failed = true
	}
}

func (a *Analyzer) NamedType(fullname string, args []sem.Type) *sem.Instance {
	inst := a.NamedTypeOrNone(fullname, args)
	if inst == nil {
		panic("unknown type in synthetic universe: " + fullname)
	}
	return inst
}

func (a *Analyzer) NamedTypeOrNone(fullname string, args []sem.Type) *sem.Instance {
	sym := a.LookupFullyQualified(fullname)
	if sym == nil {
		return nil
	}
	info, ok := sym.Node.(*sem.TypeInfo)
	if !ok {
		return nil
	}
	return &sem.Instance{Info: info, Args: args}
}

// LookupFullyQualified resolves a dotted path: the longest module prefix is
// matched first, remaining components walk class member tables.
func (a *Analyzer) LookupFullyQualified(fullname string) *sem.Symbol {
	parts := strings.Split(fullname, ".")
	for cut := len(parts) - 1; cut > 0; cut-- {
		module := strings.Join(parts[:cut], ".")
		table := a.moduleNames(module)
		if table == nil {
			continue
		}
		sym := table[parts[cut]]
		for _, member := range parts[cut+1:] {
			if sym == nil {
				break
			}
			info, ok := sym.Node.(*sem.TypeInfo)
			if !ok {
				sym = nil
				break
			}
			sym = info.Get(member)
		}
		if sym != nil {
			return sym
		}
	}
	return nil
}

func (a *Analyzer) ParseBool(expr syntax.Expression) (bool, bool) {
	if name, ok := expr.(*syntax.NameExpr); ok {
		switch name.Name {
		case "True":
			return true, true
		case "False":
			return false, true
		}
	}
	return false, false
}

func (a *Analyzer) moduleNames(module string) sem.SymbolTable {
	if file, ok := a.files[module]; ok {
		return file.Names
	}
	return a.universe.modules[module]
}

// defer_ records that the current definition needs another pass.
func (a *Analyzer) defer_() {
	a.deferred = true
}

// --- Pass 1: get names into scope ---

// PassOne binds every top level definition of the file into its global
// table. The bindings it creates are idempotent; the stripping engine leaves
// them untouched.
func (a *Analyzer) PassOne(file *syntax.File) {
	a.curFile = file
	defer func() { a.curFile = nil }()

	for _, stmt := range file.Defs {
		switch s := stmt.(type) {
		case *syntax.FuncDef:
			s.SetDeclFullName(file.FullName(s.Name))
			a.addGlobal(file, s.Name, s)
		case *syntax.Decorator:
			s.SetDeclFullName(file.FullName(s.Func.Name))
			a.addGlobal(file, s.Func.Name, s)
		case *syntax.OverloadedFuncDef:
			s.SetDeclFullName(file.FullName(s.Name))
			a.addGlobal(file, s.Name, s)
		case *syntax.ClassDef:
			if s.Info == nil {
				s.SetDeclFullName(file.FullName(s.Name))
				info := sem.NewTypeInfo(make(sem.SymbolTable), s, file.ModuleName)
				s.Info = info
			}
			a.addGlobal(file, s.Name, s.Info)
		case *syntax.AssignmentStmt:
			for _, lv := range s.Lvalues {
				name, ok := lv.(*syntax.NameExpr)
				if !ok {
					continue
				}
				if existing := file.Names[name.Name]; existing != nil {
					continue
				}
				v := sem.NewVar(name.Name, nil)
				v.FullName = file.FullName(name.Name)
				v.Span = name.Pos
				v.IsInferred = s.UnanalyzedType == nil
				sym := sem.NewSymbol(sem.GDEF, v)
				sym.IsNewDef = true
				file.Names[name.Name] = sym
				name.Kind = sem.GDEF
				name.Node = v
				name.FullName = v.FullName
			}
		}
	}
}

func (a *Analyzer) addGlobal(file *syntax.File, name string, node sem.Declaration) {
	sym := sem.NewSymbol(sem.GDEF, node)
	sym.IsNewDef = true
	file.Names[name] = sym
}

// --- Pass 2: full analysis ---

// PassTwo runs the full analysis over the file in source order. The final
// flag makes unresolved references hard errors instead of deferrals.
func (a *Analyzer) PassTwo(file *syntax.File, final bool) Status {
	a.curFile = file
	a.curInfo = nil
	a.curFunc = nil
	a.locals = nil
	a.tvarScope = sem.NewTypeVarScope(nil)
	a.deferred = false
	a.failed = false
	a.finalPass = final
	defer func() { a.curFile = nil }()

	for _, stmt := range file.Defs {
		a.visitStmt(stmt)
		if a.reporter.IsBlocked(file.Path) {
			break
		}
	}

	switch {
	case a.failed:
		return Failed
	case a.deferred:
		return Deferred
	}
	return Resolved
}

func (a *Analyzer) visitStmt(stmt syntax.Statement) {
	switch s := stmt.(type) {
	case *syntax.ImportStmt:
		a.visitImport(s)
	case *syntax.ImportFromStmt:
		a.visitImportFrom(s)
	case *syntax.ImportAllStmt:
		a.visitImportAll(s)
	case *syntax.AssignmentStmt:
		a.visitAssignment(s)
	case *syntax.ClassDef:
		a.visitClassDef(s)
	case *syntax.FuncDef:
		a.visitFuncDef(s)
	case *syntax.Decorator:
		a.visitDecorator(s)
	case *syntax.OverloadedFuncDef:
		a.visitOverloaded(s)
	case *syntax.ExpressionStmt:
		a.resolveExpr(s.Expr)
	case *syntax.ReturnStmt:
		if s.Expr != nil {
			a.resolveExpr(s.Expr)
		}
	}
}

// --- Imports ---

func (a *Analyzer) moduleNotFound(name string, span diag.Span) {
	a.Fail("Cannot find module named \""+name+"\"", span, false)
	a.reporter.Note(`(Perhaps setting MYPYPATH or using the "--ignore-missing-imports" flag would help)`, span)
}

func (a *Analyzer) visitImport(stmt *syntax.ImportStmt) {
	if stmt.IsUnreachable {
		return
	}
	stmt.Assignments = stmt.Assignments[:0]
	for _, id := range stmt.IDs {
		bound := id.Bound()
		if id.As == "" {
			// "import a.b" binds "a".
			bound = strings.SplitN(id.Name, ".", 2)[0]
		}
		target := id.Name
		if id.As == "" {
			target = bound
		}
		if a.moduleNames(target) == nil {
			a.moduleNotFound(target, stmt.Pos)
			continue
		}
		ref := &sem.ModuleRef{Name: bound, FullName: target, Span: stmt.Pos}
		a.bindName(bound, ref, sem.GDEF)
		stmt.Assignments = append(stmt.Assignments, bound)
	}
}

func (a *Analyzer) visitImportFrom(stmt *syntax.ImportFromStmt) {
	if stmt.IsUnreachable {
		return
	}
	stmt.Assignments = stmt.Assignments[:0]
	table := a.moduleNames(stmt.ModuleID)
	if table == nil {
		a.moduleNotFound(stmt.ModuleID, stmt.Pos)
		return
	}
	for _, id := range stmt.Names {
		sym := table[id.Name]
		if sym == nil {
			a.Fail("Module \""+stmt.ModuleID+"\" has no attribute \""+id.Name+"\"", stmt.Pos, false)
			continue
		}
		bound := id.Bound()
		alias := sem.NewSymbol(sem.GDEF, sym.Node)
		alias.IsNewDef = true
		a.currentNames()[bound] = alias
		stmt.Assignments = append(stmt.Assignments, bound)
	}
}

func (a *Analyzer) visitImportAll(stmt *syntax.ImportAllStmt) {
	if stmt.IsUnreachable {
		return
	}
	table := a.moduleNames(stmt.ModuleID)
	if table == nil {
		a.moduleNotFound(stmt.ModuleID, stmt.Pos)
		return
	}
	stmt.ImportedNames = stmt.ImportedNames[:0]
	for _, name := range table.SortedNames() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if a.currentNames()[name] != nil && !a.currentNames()[name].IsNewDef {
			continue
		}
		alias := sem.NewSymbol(sem.GDEF, table[name].Node)
		alias.IsNewDef = true
		a.currentNames()[name] = alias
		stmt.ImportedNames = append(stmt.ImportedNames, name)
	}
}

// --- Scope helpers ---

func (a *Analyzer) currentNames() sem.SymbolTable {
	if a.locals != nil {
		return a.locals
	}
	if a.curInfo != nil {
		return a.curInfo.Names
	}
	return a.curFile.Names
}

func (a *Analyzer) currentKind() sem.SymbolKind {
	if a.locals != nil {
		return sem.LDEF
	}
	if a.curInfo != nil {
		return sem.MDEF
	}
	return sem.GDEF
}

func (a *Analyzer) qualify(name string) string {
	if a.locals != nil {
		return name
	}
	if a.curInfo != nil {
		return a.curInfo.FullName + "." + name
	}
	return a.curFile.FullName(name)
}

func (a *Analyzer) bindName(name string, node sem.Declaration, kind sem.SymbolKind) *sem.Symbol {
	sym := sem.NewSymbol(kind, node)
	sym.IsNewDef = true
	a.currentNames()[name] = sym
	return sym
}

// lookupName resolves an unqualified name through the lexical scopes:
// locals, enclosing class body, module globals, builtins.
func (a *Analyzer) lookupName(name string) *sem.Symbol {
	if a.locals != nil {
		if sym := a.locals[name]; sym != nil {
			return sym
		}
	}
	if a.curInfo != nil && a.locals == nil {
		if sym := a.curInfo.Names[name]; sym != nil {
			return sym
		}
	}
	if sym := a.curFile.Names[name]; sym != nil {
		return sym
	}
	if sym := a.universe.module("builtins")[name]; sym != nil {
		return sym
	}
	return nil
}

// --- Reference resolution ---

// resolveExpr resolves name and attribute bindings inside an expression.
func (a *Analyzer) resolveExpr(e syntax.Expression) {
	switch expr := e.(type) {
	case *syntax.NameExpr:
		a.resolveName(expr)
	case *syntax.MemberExpr:
		a.resolveMember(expr)
	case *syntax.CallExpr:
		a.resolveExpr(expr.Callee)
		for _, arg := range expr.Args {
			a.resolveExpr(arg)
		}
	case *syntax.IndexExpr:
		a.resolveExpr(expr.Base)
		a.resolveExpr(expr.Index)
	case *syntax.TupleExpr:
		for _, it := range expr.Items {
			a.resolveExpr(it)
		}
	case *syntax.ListExpr:
		for _, it := range expr.Items {
			a.resolveExpr(it)
		}
	case *syntax.UnaryExpr:
		a.resolveExpr(expr.Expr)
	}
}

func (a *Analyzer) resolveName(expr *syntax.NameExpr) *sem.Symbol {
	sym := a.lookupName(expr.Name)
	if sym == nil {
		return nil
	}
	expr.Kind = sym.Kind
	expr.Node = sym.Node
	if sym.Node != nil {
		expr.FullName = sym.Node.DeclFullName()
	}
	return sym
}

func (a *Analyzer) resolveMember(expr *syntax.MemberExpr) *sem.Symbol {
	a.resolveExpr(expr.Expr)
	base, ok := expr.Expr.(*syntax.NameExpr)
	if !ok {
		return nil
	}
	switch node := base.Node.(type) {
	case *sem.ModuleRef:
		table := a.moduleNames(node.FullName)
		if table == nil {
			return nil
		}
		sym := table[expr.Name]
		if sym == nil {
			return nil
		}
		expr.Kind = sym.Kind
		expr.Node = sym.Node
		if sym.Node != nil {
			expr.FullName = sym.Node.DeclFullName()
		}
		return sym
	case *sem.TypeInfo:
		sym := node.Get(expr.Name)
		if sym == nil {
			return nil
		}
		expr.Kind = sym.Kind
		expr.Node = sym.Node
		if sym.Node != nil {
			expr.FullName = sym.Node.DeclFullName()
		}
		return sym
	}
	return nil
}

// refFullName is the resolved fullname of a plain or called reference, used
// for hook lookups.
func refFullName(e syntax.Expression) string {
	switch expr := e.(type) {
	case *syntax.NameExpr:
		return expr.FullName
	case *syntax.MemberExpr:
		return expr.FullName
	case *syntax.CallExpr:
		return refFullName(expr.Callee)
	}
	return ""
}

// --- Assignments ---

func (a *Analyzer) visitAssignment(stmt *syntax.AssignmentStmt) {
	a.resolveExpr(stmt.Rvalue)

	if len(stmt.Lvalues) == 1 {
		if lhs, ok := stmt.Lvalues[0].(*syntax.NameExpr); ok {
			if a.visitTypeVarDecl(stmt, lhs) {
				return
			}
			if a.visitNamedTupleDecl(stmt, lhs) {
				return
			}
			if stmt.UnanalyzedType == nil && a.visitTypeAliasDecl(stmt, lhs) {
				return
			}
		}
	}

	var declared sem.Type
	isClassVar := false
	if stmt.UnanalyzedType != nil {
		unwrapped, classVar := unwrapClassVar(stmt.UnanalyzedType)
		isClassVar = classVar
		analyzed, ok := a.analyzeType(unwrapped, stmt.Pos)
		if !ok {
			a.defer_()
			return
		}
		declared = analyzed
		stmt.Type = analyzed
	}

	for _, lv := range stmt.Lvalues {
		switch lhs := lv.(type) {
		case *syntax.NameExpr:
			a.bindAssignedName(stmt, lhs, declared, isClassVar)
		case *syntax.MemberExpr:
			a.bindSelfAttribute(stmt, lhs, declared)
		default:
			a.resolveExpr(lv)
		}
	}
}

func (a *Analyzer) bindAssignedName(stmt *syntax.AssignmentStmt, lhs *syntax.NameExpr, declared sem.Type, isClassVar bool) {
	var v *sem.Var
	if existing := a.currentNames()[lhs.Name]; existing != nil {
		if ev, ok := existing.Node.(*sem.Var); ok {
			v = ev
		}
	}
	fresh := v == nil
	if fresh {
		v = sem.NewVar(lhs.Name, nil)
		v.FullName = a.qualify(lhs.Name)
		v.Span = lhs.Pos
	}
	if declared != nil {
		v.Type = declared
		v.IsInferred = false
	} else if v.Type == nil {
		v.Type = a.inferRvalueType(stmt.Rvalue)
		v.IsInferred = true
	}
	v.IsClassVar = isClassVar
	if a.curInfo != nil && a.locals == nil {
		v.Info = a.curInfo
		v.IsInitializedInClass = true
	}
	kind := a.currentKind()
	if fresh {
		a.bindName(lhs.Name, v, kind)
	}
	lhs.Kind = kind
	lhs.Node = v
	lhs.FullName = v.FullName
	lhs.IsNewDef = true
}

// bindSelfAttribute handles "self.attr = value" inside a method: it defines
// an instance attribute on the enclosing class unless a base class already
// provides one.
func (a *Analyzer) bindSelfAttribute(stmt *syntax.AssignmentStmt, lhs *syntax.MemberExpr, declared sem.Type) {
	a.resolveExpr(lhs.Expr)
	base, ok := lhs.Expr.(*syntax.NameExpr)
	if !ok || a.curFunc == nil || a.curInfo == nil {
		return
	}
	self, isVar := base.Node.(*sem.Var)
	if !isVar || !self.IsSelf {
		return
	}

	info := a.curInfo
	if own := info.GetOwn(lhs.Name); own != nil {
		// Already defined in this class; re-point the reference.
		lhs.Kind = sem.MDEF
		lhs.Node = own.Node
		if own.Node != nil {
			lhs.FullName = own.Node.DeclFullName()
		}
		return
	}
	if inherited := info.Get(lhs.Name); inherited != nil {
		// A base class defines it; do not shadow with a local definition.
		return
	}

	v := sem.NewVar(lhs.Name, declared)
	if declared == nil {
		v.Type = a.inferRvalueType(stmt.Rvalue)
		v.IsInferred = true
	}
	v.FullName = info.FullName + "." + lhs.Name
	v.Info = info
	v.Span = lhs.Pos
	sym := sem.NewSymbol(sem.MDEF, v)
	sym.IsNewDef = true
	sym.Implicit = true
	info.Names[lhs.Name] = sym

	lhs.Kind = sem.MDEF
	lhs.Node = v
	lhs.FullName = v.FullName
	lhs.IsNewDef = true
	lhs.IsInferredDef = true
	lhs.DefVar = v
}

// visitTypeVarDecl recognizes "T = TypeVar('T', ...)" and binds a type
// variable declaration.
func (a *Analyzer) visitTypeVarDecl(stmt *syntax.AssignmentStmt, lhs *syntax.NameExpr) bool {
	call, ok := stmt.Rvalue.(*syntax.CallExpr)
	if !ok {
		return false
	}
	fullname := refFullName(call.Callee)
	if fullname != "typing.TypeVar" {
		return false
	}
	if len(call.Args) == 0 {
		a.Fail("Too few arguments for TypeVar()", call.Pos, false)
		return true
	}
	nameArg, ok := call.Args[0].(*syntax.StrExpr)
	if !ok || !call.ArgKinds[0].IsPositional() {
		a.Fail("TypeVar() expects a string literal as first argument", call.Pos, false)
		return true
	}
	if nameArg.Value != lhs.Name {
		a.Fail("String argument 1 \""+nameArg.Value+"\" to TypeVar(...) does not match variable name \""+lhs.Name+"\"", call.Pos, false)
		return true
	}

	expr := &sem.TypeVarExpr{
		Name:     lhs.Name,
		FullName: a.qualify(lhs.Name),
		Span:     stmt.Pos,
	}
	for i := 1; i < len(call.Args); i++ {
		switch {
		case call.ArgKinds[i].IsPositional():
			if value, ok := a.analyzeType(syntax.ExprToType(call.Args[i]), call.Pos); ok {
				expr.Values = append(expr.Values, value)
			}
		case call.ArgNames[i] == "bound":
			if bound, ok := a.analyzeType(syntax.ExprToType(call.Args[i]), call.Pos); ok {
				expr.UpperBound = bound
			}
		case call.ArgNames[i] == "covariant":
			if value, ok := a.ParseBool(call.Args[i]); ok && value {
				expr.Variance = 1
			}
		case call.ArgNames[i] == "contravariant":
			if value, ok := a.ParseBool(call.Args[i]); ok && value {
				expr.Variance = -1
			}
		}
	}
	if expr.UpperBound == nil {
		expr.UpperBound = &sem.Instance{Info: a.universe.class("builtins.object")}
	}

	a.bindName(lhs.Name, expr, a.currentKind())
	lhs.Kind = a.currentKind()
	lhs.Node = expr
	lhs.FullName = expr.FullName
	lhs.IsNewDef = true
	return true
}

// visitNamedTupleDecl recognizes call-style named tuple definitions.
func (a *Analyzer) visitNamedTupleDecl(stmt *syntax.AssignmentStmt, lhs *syntax.NameExpr) bool {
	matched, info, deferred := a.namedtuple.checkNamedTuple(stmt.Rvalue, lhs.Name, a.locals != nil)
	if !matched {
		return false
	}
	if deferred {
		a.defer_()
		return true
	}
	if info != nil {
		a.bindName(lhs.Name, info, a.currentKind())
		lhs.Kind = a.currentKind()
		lhs.Node = info
		lhs.FullName = info.FullName
		lhs.IsNewDef = true
	}
	return true
}

// visitTypeAliasDecl recognizes "Alias = SomeType[...]" at module level and
// binds a type alias. The resolution result is cached on the index
// expression; stripping clears it.
func (a *Analyzer) visitTypeAliasDecl(stmt *syntax.AssignmentStmt, lhs *syntax.NameExpr) bool {
	if a.curInfo != nil || a.locals != nil {
		return false
	}
	idx, ok := stmt.Rvalue.(*syntax.IndexExpr)
	if !ok {
		return false
	}
	baseName := refFullName(idx.Base)
	if baseName == "" {
		return false
	}
	if !isTypeRef(idx.Base) {
		return false
	}
	target, resolved := a.analyzeType(syntax.ExprToType(stmt.Rvalue), stmt.Pos)
	if !resolved {
		a.defer_()
		return true
	}
	idx.AnalyzedAlias = target

	alias := &sem.TypeAlias{
		Name:     lhs.Name,
		FullName: a.curFile.FullName(lhs.Name),
		Target:   target,
		Span:     stmt.Pos,
	}
	a.bindName(lhs.Name, alias, sem.GDEF)
	lhs.Kind = sem.GDEF
	lhs.Node = alias
	lhs.FullName = alias.FullName
	lhs.IsNewDef = true
	return true
}

// isTypeRef reports whether the expression resolves to something usable as
// an alias base: a class or a typing special form.
func isTypeRef(e syntax.Expression) bool {
	switch expr := e.(type) {
	case *syntax.NameExpr:
		if _, ok := expr.Node.(*sem.TypeInfo); ok {
			return true
		}
		return strings.HasPrefix(expr.FullName, "typing.")
	case *syntax.MemberExpr:
		if _, ok := expr.Node.(*sem.TypeInfo); ok {
			return true
		}
		return strings.HasPrefix(expr.FullName, "typing.")
	}
	return false
}

// inferRvalueType gives unannotated assignments a best-effort type from
// literal shapes. Strings keep their literal value so format-string hooks
// can see it.
func (a *Analyzer) inferRvalueType(rvalue syntax.Expression) sem.Type {
	switch expr := rvalue.(type) {
	case *syntax.IntExpr:
		return &sem.Instance{Info: a.universe.class("builtins.int")}
	case *syntax.FloatExpr:
		return &sem.Instance{Info: a.universe.class("builtins.float")}
	case *syntax.StrExpr:
		return &sem.LiteralType{
			Value:    expr.Value,
			Fallback: &sem.Instance{Info: a.universe.class("builtins.str")},
		}
	case *syntax.NameExpr:
		switch expr.Name {
		case "True", "False":
			return &sem.Instance{Info: a.universe.class("builtins.bool")}
		case "None":
			return &sem.NoneType{}
		}
		if node, ok := expr.Node.(*sem.Var); ok && node.Type != nil {
			return node.Type
		}
	case *syntax.CallExpr:
		if info, ok := calleeClass(expr); ok {
			return &sem.Instance{Info: info}
		}
	case *syntax.TupleExpr:
		items := make([]sem.Type, 0, len(expr.Items))
		for _, it := range expr.Items {
			items = append(items, a.inferRvalueType(it))
		}
		return &sem.TupleType{
			Items:    items,
			Fallback: &sem.Instance{Info: a.universe.class("builtins.tuple")},
		}
	}
	return sem.AnyFromReason(sem.AnyUnannotated)
}

func calleeClass(call *syntax.CallExpr) (*sem.TypeInfo, bool) {
	switch callee := call.Callee.(type) {
	case *syntax.NameExpr:
		info, ok := callee.Node.(*sem.TypeInfo)
		return info, ok
	case *syntax.MemberExpr:
		info, ok := callee.Node.(*sem.TypeInfo)
		return info, ok
	}
	return nil, false
}

func unwrapClassVar(t sem.Type) (sem.Type, bool) {
	unbound, ok := t.(*sem.UnboundType)
	if !ok {
		return t, false
	}
	if unbound.Name != "ClassVar" && unbound.Name != "typing.ClassVar" {
		return t, false
	}
	if len(unbound.Args) == 1 {
		return unbound.Args[0], true
	}
	return sem.AnyFromReason(sem.AnySpecialForm), true
}
