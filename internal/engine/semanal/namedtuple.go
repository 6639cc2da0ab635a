package semanal

import (
	"fmt"
	"strings"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
	"typewatch/internal/shared/util"
)

// Matches the runtime's prohibited attribute list, plus __annotations__
// which works at runtime but cannot be supported statically.
var namedTupleProhibitedNames = []string{
	"__new__",
	"__init__",
	"__slots__",
	"__getnewargs__",
	"_fields",
	"_field_defaults",
	"_field_types",
	"_make",
	"_replace",
	"_asdict",
	"_source",
	"__annotations__",
}

const namedTupleClassError = "Invalid statement in NamedTuple definition; " +
	`expected "field_name: field_type [= default]"`

const namedTupleSelfTVar = "_NT"

// namedTupleAnalyzer synthesizes tuple-backed classes from both named tuple
// dialects: collections.namedtuple() calls and typing.NamedTuple in call or
// class form.
type namedTupleAnalyzer struct {
	api *Analyzer
}

// isNamedTupleClassDef reports whether the class uses the typing.NamedTuple
// base, resolving base references as a side effect.
func (n *namedTupleAnalyzer) isNamedTupleClassDef(defn *syntax.ClassDef) bool {
	for _, base := range defn.BaseTypeExprs {
		n.api.resolveExpr(base)
		if refFullName(base) == "typing.NamedTuple" {
			return true
		}
	}
	return false
}

// analyzeClassDef handles the class-form dialect. Deferred means a field
// type is not ready yet.
func (n *namedTupleAnalyzer) analyzeClassDef(defn *syntax.ClassDef) Status {
	a := n.api
	items, types, defaultItems, ok := n.checkClassDef(defn)
	if !ok {
		return Deferred
	}
	info := n.buildTypeInfo(defn.Name, items, types, defaultItems, defn.Pos)
	info.Defn = defn
	defn.Info = info
	defn.Analyzed = &syntax.NamedTupleExpr{Info: info, IsTyped: true}
	a.bindName(defn.Name, info, a.currentKind())
	return Resolved
}

// checkClassDef parses and validates the fields of a class-form definition.
// Errors are collected; only an unready type aborts with ok=false.
func (n *namedTupleAnalyzer) checkClassDef(defn *syntax.ClassDef) (items []string, types []sem.Type, defaultItems map[string]syntax.Expression, ok bool) {
	a := n.api
	if len(defn.BaseTypeExprs) > 1 {
		a.Fail("NamedTuple should be a single base", defn.Pos, false)
	}
	defaultItems = make(map[string]syntax.Expression)
	for _, stmt := range defn.Body {
		assign, isAssign := stmt.(*syntax.AssignmentStmt)
		if !isAssign {
			switch s := stmt.(type) {
			case *syntax.PassStmt, *syntax.FuncDef, *syntax.Decorator, *syntax.OverloadedFuncDef:
				continue
			case *syntax.ExpressionStmt:
				switch s.Expr.(type) {
				case *syntax.EllipsisExpr, *syntax.StrExpr:
					continue
				}
			}
			a.Fail(namedTupleClassError, stmt.Span(), false)
			continue
		}
		lhs, isName := singleNameLvalue(assign)
		if !isName {
			a.Fail(namedTupleClassError, assign.Pos, false)
			continue
		}
		name := lhs.Name
		items = append(items, name)
		if assign.UnanalyzedType == nil {
			types = append(types, sem.AnyFromReason(sem.AnyUnannotated))
		} else {
			analyzed, ready := a.analyzeType(assign.UnanalyzedType, assign.Pos)
			if !ready {
				return nil, nil, nil, false
			}
			types = append(types, analyzed)
		}
		if strings.HasPrefix(name, "_") {
			a.Fail("NamedTuple field name cannot start with an underscore: "+name, assign.Pos, false)
		}
		if !assign.NewSyntax {
			a.Fail(namedTupleClassError, assign.Pos, false)
		} else if _, isTemp := assign.Rvalue.(*syntax.TempNode); isTemp {
			if len(defaultItems) > 0 {
				a.Fail("Non-default NamedTuple fields cannot follow default fields", assign.Pos, false)
			}
		} else {
			defaultItems[name] = assign.Rvalue
		}
	}
	return items, types, defaultItems, true
}

func singleNameLvalue(assign *syntax.AssignmentStmt) (*syntax.NameExpr, bool) {
	if len(assign.Lvalues) != 1 {
		return nil, false
	}
	name, ok := assign.Lvalues[0].(*syntax.NameExpr)
	return name, ok
}

// checkNamedTuple recognizes call-form definitions. varName is the assigned
// variable, empty for base class expressions. An invalid but recognizable
// call still produces a dummy TypeInfo so downstream analysis continues.
func (n *namedTupleAnalyzer) checkNamedTuple(rvalue syntax.Expression, varName string, isFuncScope bool) (matched bool, info *sem.TypeInfo, deferred bool) {
	a := n.api
	call, ok := rvalue.(*syntax.CallExpr)
	if !ok {
		return false, nil, false
	}
	var typed bool
	switch refFullName(call.Callee) {
	case "collections.namedtuple":
		typed = false
	case "typing.NamedTuple":
		typed = true
	default:
		return false, nil, false
	}

	parsed := n.parseArgs(call, typed, varName)
	if parsed == nil {
		name := varName
		if name == "" {
			name = fmt.Sprintf("namedtuple@%d", call.Pos.Line)
		}
		info = n.buildTypeInfo(name, nil, nil, nil, call.Pos)
		call.Analyzed = &syntax.NamedTupleExpr{Info: info, IsTyped: typed}
		return true, info, false
	}
	if !parsed.ready {
		return true, nil, true
	}

	name := varName
	if name == "" {
		name = parsed.typename
	}
	if varName == "" || isFuncScope {
		// Base class expressions and function-local definitions get a
		// line-derived name so they cannot collide.
		name = fmt.Sprintf("%s@%d", name, call.Pos.Line)
	}
	defaultItems := make(map[string]syntax.Expression)
	if len(parsed.defaults) > 0 {
		offset := len(parsed.items) - len(parsed.defaults)
		for i, def := range parsed.defaults {
			defaultItems[parsed.items[offset+i]] = def
		}
	}
	info = n.buildTypeInfo(name, parsed.items, parsed.types, defaultItems, call.Pos)
	call.Analyzed = &syntax.NamedTupleExpr{Info: info, IsTyped: typed}
	if name != varName || isFuncScope {
		// Keep a module-level entry too: the class may outlive the local
		// scope it was defined in.
		a.curFile.Names[name] = sem.NewSymbol(sem.GDEF, info)
	}
	return true, info, false
}

// namedTupleStructure is the parsed shape of a call-form definition. ready
// is false when a field type needs a later pass.
type namedTupleStructure struct {
	items    []string
	types    []sem.Type
	defaults []syntax.Expression
	typename string
	ready    bool
}

func (n *namedTupleAnalyzer) parseArgs(call *syntax.CallExpr, typed bool, varName string) *namedTupleStructure {
	p := &namedTupleParser{api: n.api, call: call, varName: varName}
	if typed {
		p.shortname = "NamedTuple"
		return p.parseTyped()
	}
	p.shortname = "namedtuple"
	return p.parseUntyped()
}

type namedTupleParser struct {
	api       *Analyzer
	call      *syntax.CallExpr
	shortname string
	varName   string
}

func (p *namedTupleParser) fail(msg string, span diag.Span) {
	p.api.Fail(msg, span, false)
}

func (p *namedTupleParser) argByName(name string) int {
	idx := p.call.ArgByName(name)
	if idx >= 0 && !p.call.ArgKinds[idx].IsNamed() {
		return -1
	}
	return idx
}

// parseTypename extracts and validates the first argument. The name must
// match the assignment target when there is one.
func (p *namedTupleParser) parseTypename() (string, bool) {
	var arg syntax.Expression
	if idx := p.argByName("typename"); idx >= 0 {
		arg = p.call.Args[idx]
	} else if len(p.call.Args) > 0 && p.call.ArgKinds[0].IsPositional() {
		arg = p.call.Args[0]
	}
	str, ok := arg.(*syntax.StrExpr)
	if !ok {
		p.fail(fmt.Sprintf("%q expects a string literal as the typename argument", p.shortname+"()"), p.call.Pos)
		return "", false
	}
	if p.varName != "" && str.Value != p.varName {
		p.fail(fmt.Sprintf("First argument to %q should be %q, not %q", p.shortname+"()", p.varName, str.Value), p.call.Pos)
		// Keep going; there may be more errors worth reporting.
	}
	return str.Value, true
}

func (p *namedTupleParser) parseTyped() *namedTupleStructure {
	typename, ok := p.parseTypename()
	if !ok {
		return nil
	}
	fieldsIdx := p.argByName("fields")
	fieldsNamed := fieldsIdx >= 0
	if fieldsIdx < 0 && len(p.call.Args) > 1 && p.call.ArgKinds[1].IsPositional() {
		fieldsIdx = 1
	}
	if fieldsIdx < 0 {
		return p.typedFromKwargs(typename)
	}
	fieldsArg := p.call.Args[fieldsIdx]
	if name, isName := fieldsArg.(*syntax.NameExpr); isName && name.Name == "None" {
		if fieldsNamed || p.call.ArgKinds[fieldsIdx].IsPositional() {
			return p.typedFromKwargs(typename)
		}
	}
	items := literalItems(fieldsArg)
	if items == nil {
		p.fail(fmt.Sprintf("List or tuple literal expected as the fields argument to %q", p.shortname+"()"), fieldsArg.Span())
		return nil
	}
	if len(p.call.Args) > 2 {
		return nil
	}

	var names []string
	var types []sem.Type
	for _, item := range items {
		pair, isPair := item.(*syntax.TupleExpr)
		if !isPair || len(pair.Items) != 2 {
			p.fail(fmt.Sprintf("Invalid %q field definition", p.shortname), item.Span())
			return nil
		}
		nameExpr, isStr := pair.Items[0].(*syntax.StrExpr)
		if !isStr {
			p.fail(fmt.Sprintf("Invalid %q field name", p.shortname), item.Span())
			return nil
		}
		names = append(names, nameExpr.Value)
		fieldType, ready := p.analyzeFieldType(pair.Items[1])
		if !ready {
			return &namedTupleStructure{typename: typename, ready: false}
		}
		types = append(types, fieldType)
	}
	return p.validateFields(names, types, nil, typename, false)
}

// typedFromKwargs handles NamedTuple('N', a=int, b=str).
func (p *namedTupleParser) typedFromKwargs(typename string) *namedTupleStructure {
	var names []string
	var types []sem.Type
	for i, kind := range p.call.ArgKinds {
		if !kind.IsNamed() {
			continue
		}
		argName := p.call.ArgNames[i]
		if argName == "typename" || argName == "fields" {
			continue
		}
		names = append(names, argName)
		fieldType, ready := p.analyzeFieldType(p.call.Args[i])
		if !ready {
			return &namedTupleStructure{typename: typename, ready: false}
		}
		types = append(types, fieldType)
	}
	return p.validateFields(names, types, nil, typename, false)
}

func (p *namedTupleParser) parseUntyped() *namedTupleStructure {
	typename, ok := p.parseTypename()
	if !ok {
		return nil
	}
	fieldsIdx := p.argByName("field_names")
	if fieldsIdx < 0 && len(p.call.Args) > 1 && p.call.ArgKinds[1].IsPositional() {
		fieldsIdx = 1
	}
	if fieldsIdx < 0 {
		return nil
	}
	fieldsArg := p.call.Args[fieldsIdx]

	var names []string
	if items := literalItems(fieldsArg); items != nil {
		for _, item := range items {
			str, isStr := item.(*syntax.StrExpr)
			if !isStr {
				p.fail(fmt.Sprintf("String literal expected as %q field", p.shortname+"()"), item.Span())
				return nil
			}
			names = append(names, str.Value)
		}
	} else if str, isStr := fieldsArg.(*syntax.StrExpr); isStr {
		names = strings.Fields(strings.ReplaceAll(str.Value, ",", " "))
	} else {
		p.fail(fmt.Sprintf("String, list or tuple literal expected as the field_names argument to %q", p.shortname+"()"), fieldsArg.Span())
		return nil
	}

	types := make([]sem.Type, len(names))
	for i := range types {
		types[i] = sem.AnyFromReason(sem.AnyImplementationArtifact)
	}

	var defaults []syntax.Expression
	if idx := p.argByName("defaults"); idx >= 0 {
		defaults = literalItems(p.call.Args[idx])
		if defaults == nil {
			p.fail(fmt.Sprintf("List or tuple literal expected as the defaults argument to %q", p.shortname+"()"), p.call.Args[idx].Span())
			return nil
		}
	}

	rename := false
	if idx := p.argByName("rename"); idx >= 0 {
		value, isBool := p.api.ParseBool(p.call.Args[idx])
		if !isBool {
			p.fail(fmt.Sprintf("Bool literal expected as the rename argument to %q", p.shortname+"()"), p.call.Args[idx].Span())
			return nil
		}
		rename = value
	}
	return p.validateFields(names, types, defaults, typename, rename)
}

// validateFields mirrors the runtime's own validation order and messages,
// but reports as many errors as it can instead of stopping at the first.
func (p *namedTupleParser) validateFields(names []string, types []sem.Type, defaults []syntax.Expression, typename string, rename bool) *namedTupleStructure {
	valid := true
	span := p.call.Pos

	if rename {
		seen := make(map[string]bool)
		for i, name := range names {
			if !util.IsIdentifier(name) || util.IsPythonKeyword(name) ||
				strings.HasPrefix(name, "_") || seen[name] {
				names[i] = fmt.Sprintf("_%d", i)
			}
			seen[name] = true
		}
	}

	for _, name := range append([]string{typename}, names...) {
		if !util.IsIdentifier(name) {
			p.fail("Type names and field names must be valid identifiers: '"+name+"'", span)
			valid = false
		}
		if util.IsPythonKeyword(name) {
			p.fail("Type names and field names cannot be a keyword: '"+name+"'", span)
			valid = false
		}
	}
	seen := make(map[string]bool)
	for _, name := range names {
		if strings.HasPrefix(name, "_") && !rename {
			p.fail("Field names cannot start with an underscore: '"+name+"'", span)
			valid = false
		}
		if seen[name] {
			p.fail("Encountered duplicate field name: '"+name+"'", span)
			valid = false
		}
		seen[name] = true
	}
	if len(defaults) > len(names) {
		p.fail("Got more default values than field names", span)
		valid = false
	}
	if !valid {
		return nil
	}
	return &namedTupleStructure{
		items:    names,
		types:    types,
		defaults: defaults,
		typename: typename,
		ready:    true,
	}
}

func (p *namedTupleParser) analyzeFieldType(expr syntax.Expression) (sem.Type, bool) {
	analyzed, ok := p.api.analyzeType(syntax.ExprToType(expr), expr.Span())
	if !ok {
		return nil, false
	}
	if _, unbound := analyzed.(*sem.UnboundType); unbound {
		analyzed = sem.AnyFromReason(sem.AnyFromError)
	}
	return analyzed, true
}

func literalItems(e syntax.Expression) []syntax.Expression {
	switch expr := e.(type) {
	case *syntax.TupleExpr:
		return expr.Items
	case *syntax.ListExpr:
		return expr.Items
	}
	return nil
}

// buildTypeInfo synthesizes the tuple-backed class: field properties, the
// introspection attributes and the _replace/__new__/_asdict/_make methods,
// all typed against a self type variable bounded by the tuple shape.
func (n *namedTupleAnalyzer) buildTypeInfo(name string, items []string, types []sem.Type, defaultItems map[string]syntax.Expression, span diag.Span) *sem.TypeInfo {
	a := n.api
	strType := sem.Type(a.NamedType("builtins.str", nil))
	implicitAny := sem.Type(sem.AnyFromReason(sem.AnySpecialForm))
	baseTuple := a.NamedType("builtins.tuple", []sem.Type{implicitAny})
	dictType := a.NamedTypeOrNone("builtins.dict", []sem.Type{strType, implicitAny})
	if dictType == nil {
		dictType = a.NamedType("builtins.object", nil)
	}
	iterableType := a.NamedTypeOrNone("typing.Iterable", []sem.Type{implicitAny})
	functionType := a.NamedType("builtins.function", nil)
	objectInfo := a.universe.class("builtins.object")
	tupleInfo := baseTuple.Info

	info := sem.NewTypeInfo(make(sem.SymbolTable), nil, a.curFile.ModuleName)
	info.Name = name
	info.FullName = a.curFile.FullName(name)
	info.Span = span
	info.IsNamedTuple = true
	info.Bases = []*sem.Instance{baseTuple}
	info.SetMRO([]*sem.TypeInfo{info, tupleInfo, objectInfo})
	info.TupleType = &sem.TupleType{Items: types, Fallback: baseTuple}
	info.Metadata.NamedTuple = &sem.NamedTupleMeta{Fields: append([]string(nil), items...)}

	addField := func(v *sem.Var, initializedInClass, isProperty bool) {
		v.Info = info
		v.IsInitializedInClass = initializedInClass
		v.IsProperty = isProperty
		v.FullName = info.FullName + "." + v.Name
		v.Span = span
		info.Names[v.Name] = sem.NewSymbol(sem.MDEF, v)
	}
	for i, item := range items {
		addField(sem.NewVar(item, types[i]), false, true)
	}

	strItems := make([]sem.Type, len(items))
	for i := range strItems {
		strItems[i] = strType
	}
	addField(sem.NewVar("_fields", &sem.TupleType{Items: strItems, Fallback: baseTuple}), true, false)
	addField(sem.NewVar("_field_types", dictType), true, false)
	addField(sem.NewVar("_field_defaults", dictType), true, false)
	addField(sem.NewVar("_source", strType), true, false)
	addField(sem.NewVar("__annotations__", dictType), true, false)
	addField(sem.NewVar("__doc__", strType), true, false)

	selfTVar := &sem.TypeVarType{
		Name:       namedTupleSelfTVar,
		FullName:   info.FullName + "." + namedTupleSelfTVar,
		ID:         -1,
		UpperBound: info.TupleType,
	}

	type methodArg struct {
		name string
		typ  sem.Type
		kind sem.ArgKind
	}
	addMethod := func(funcName string, ret sem.Type, args []methodArg, isClassmethod bool) {
		receiver := methodArg{name: "_self", typ: selfTVar, kind: sem.ArgPos}
		if isClassmethod || funcName == "__new__" {
			receiver = methodArg{name: "_cls", typ: &sem.TypeType{Item: selfTVar}, kind: sem.ArgPos}
		}
		all := append([]methodArg{receiver}, args...)
		sig := &sem.CallableType{
			Name:      funcName + " of " + name,
			RetType:   ret,
			Fallback:  functionType,
			Variables: []*sem.TypeVarType{selfTVar},
		}
		for _, arg := range all {
			sig.ArgTypes = append(sig.ArgTypes, arg.typ)
			sig.ArgKinds = append(sig.ArgKinds, arg.kind)
			sig.ArgNames = append(sig.ArgNames, arg.name)
		}
		fn := &syntax.FuncDef{
			Name:     funcName,
			FullName: info.FullName + "." + funcName,
			Info:     info,
			Type:     sig,
			IsClass:  isClassmethod,
		}
		fn.Pos = span
		sig.Definition = fn
		var sym *sem.Symbol
		if isClassmethod {
			v := sem.NewVar(funcName, sig)
			v.IsClassmethod = true
			v.Info = info
			v.FullName = fn.FullName
			fn.IsDecorated = true
			dec := &syntax.Decorator{
				Func:       fn,
				Decorators: []syntax.Expression{&syntax.NameExpr{Name: "classmethod"}},
				Var:        v,
			}
			dec.Pos = span
			sym = sem.NewSymbol(sem.MDEF, dec)
		} else {
			sym = sem.NewSymbol(sem.MDEF, fn)
		}
		sym.PluginGenerated = true
		info.Names[funcName] = sym
	}

	var replaceArgs []methodArg
	var newArgs []methodArg
	for i, item := range items {
		replaceArgs = append(replaceArgs, methodArg{name: item, typ: types[i], kind: sem.ArgNamedOpt})
		kind := sem.ArgPos
		if _, hasDefault := defaultItems[item]; hasDefault {
			kind = sem.ArgOpt
		}
		newArgs = append(newArgs, methodArg{name: item, typ: types[i], kind: kind})
	}
	addMethod("_replace", selfTVar, replaceArgs, false)
	addMethod("__new__", selfTVar, newArgs, false)
	addMethod("_asdict", dictType, nil, false)
	makeArgs := []methodArg{
		{name: "iterable", typ: orObject(a, iterableType), kind: sem.ArgPos},
		{name: "new", typ: implicitAny, kind: sem.ArgNamedOpt},
		{name: "len", typ: implicitAny, kind: sem.ArgNamedOpt},
	}
	addMethod("_make", selfTVar, makeArgs, true)

	tvarExpr := &sem.TypeVarExpr{
		Name:       namedTupleSelfTVar,
		FullName:   info.FullName + "." + namedTupleSelfTVar,
		UpperBound: info.TupleType,
		Span:       span,
	}
	info.Names[namedTupleSelfTVar] = sem.NewSymbol(sem.MDEF, tvarExpr)
	return info
}

func orObject(a *Analyzer, inst *sem.Instance) sem.Type {
	if inst != nil {
		return inst
	}
	return a.NamedType("builtins.object", nil)
}

// analyzeBody analyzes the user-written body of a class-form named tuple.
// The synthesized members are set aside so body definitions do not trip
// duplicate checks, then restored on top: synthesized fields win, user
// methods are kept, prohibited overwrites are rejected.
func (n *namedTupleAnalyzer) analyzeBody(defn *syntax.ClassDef) {
	a := n.api
	info := defn.Info
	saved := info.Names
	info.Names = make(sem.SymbolTable)

	for _, stmt := range defn.Body {
		a.visitStmt(stmt)
	}

	for _, prohibited := range namedTupleProhibitedNames {
		sym := info.Names[prohibited]
		if sym == nil || sym == saved[prohibited] {
			continue
		}
		span := defn.Pos
		if sym.Node != nil {
			span = sym.Node.DeclSpan()
		}
		a.Fail("Cannot overwrite NamedTuple attribute \""+prohibited+"\"", span, false)
	}

	for _, key := range saved.SortedNames() {
		value := saved[key]
		if existing := info.Names[key]; existing != nil {
			if key == "__doc__" {
				continue
			}
			switch existing.Node.(type) {
			case *syntax.FuncDef, *syntax.Decorator, *syntax.OverloadedFuncDef:
				if !existing.PluginGenerated {
					// Keep user-defined methods as is.
					continue
				}
			}
			alias := util.UniqueRedefinitionName(key, func(candidate string) bool {
				return info.Names[candidate] != nil
			})
			info.Names[alias] = existing
		}
		info.Names[key] = value
	}
}
