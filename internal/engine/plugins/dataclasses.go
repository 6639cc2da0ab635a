package plugins

import (
	"fmt"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

// DataclassMakers are the decorator fullnames that trigger the dataclass
// transform.
var DataclassMakers = map[string]bool{
	"dataclass":             true,
	"dataclasses.dataclass": true,
}

// selfTVarName is the synthetic type variable used as the "other" argument
// type of generated comparison methods.
const selfTVarName = "_DT"

// TransformSpec parameterizes the dataclass transform: the default values of
// the behavior flags and the set of field-marker call names.
type TransformSpec struct {
	EqDefault       bool
	OrderDefault    bool
	KwOnlyDefault   bool
	FrozenDefault   bool
	FieldSpecifiers []string
}

// StandardDataclassSpec matches the stdlib dataclass decorator.
func StandardDataclassSpec() TransformSpec {
	return TransformSpec{
		EqDefault:       true,
		FieldSpecifiers: []string{"dataclasses.Field", "dataclasses.field"},
	}
}

// DataclassAttribute is one collected field of a dataclass, either declared
// in the class body or inherited through ancestor metadata.
type DataclassAttribute struct {
	Name       string
	Alias      string
	IsInInit   bool
	IsInitVar  bool
	HasDefault bool
	KwOnly     bool
	Span       diag.Span
	Type       sem.Type
	Info       *sem.TypeInfo
}

func (a *DataclassAttribute) argKind() sem.ArgKind {
	switch {
	case a.KwOnly && a.HasDefault:
		return sem.ArgNamedOpt
	case a.KwOnly:
		return sem.ArgNamed
	case a.HasDefault:
		return sem.ArgOpt
	}
	return sem.ArgPos
}

func (a *DataclassAttribute) toArgument() MethodArg {
	name := a.Name
	if a.Alias != "" {
		name = a.Alias
	}
	return MethodArg{Name: name, Type: a.Type, Kind: a.argKind()}
}

func (a *DataclassAttribute) toVar(info *sem.TypeInfo) *sem.Var {
	name := a.Name
	if a.Alias != "" {
		name = a.Alias
	}
	v := sem.NewVar(name, a.Type)
	v.Info = info
	v.Span = a.Span
	return v
}

func (a *DataclassAttribute) serialize() sem.DataclassAttributeData {
	return sem.DataclassAttributeData{
		Name:       a.Name,
		Alias:      a.Alias,
		IsInInit:   a.IsInInit,
		IsInitVar:  a.IsInitVar,
		HasDefault: a.HasDefault,
		KwOnly:     a.KwOnly,
		Line:       a.Span.Line,
		Column:     a.Span.Column,
		Type:       sem.SerializeType(a.Type),
	}
}

func deserializeAttribute(data sem.DataclassAttributeData, info *sem.TypeInfo, api SemanticAPI) *DataclassAttribute {
	return &DataclassAttribute{
		Name:       data.Name,
		Alias:      data.Alias,
		IsInInit:   data.IsInInit,
		IsInitVar:  data.IsInitVar,
		HasDefault: data.HasDefault,
		KwOnly:     data.KwOnly,
		Span:       diag.Span{Path: info.Span.Path, Line: data.Line, Column: data.Column},
		Type:       DeserializeAndFixupType(data.Type, api),
		Info:       info,
	}
}

// DataclassTagCallback records in the main analysis pass that a class is a
// dataclass, before the transformer has run. The transformer uses the tag to
// detect unprocessed base classes.
func DataclassTagCallback(ctx ClassDefContext) bool {
	ctx.Cls.Info.Metadata.DataclassTag = true
	return true
}

// DataclassMakerCallback runs the full transform. It reports false when a
// base class is not ready yet, requesting another pass. The tag is recorded
// up front so subclasses transformed in the same pass defer correctly even
// when this transform itself defers.
func DataclassMakerCallback(ctx ClassDefContext) bool {
	DataclassTagCallback(ctx)
	t := &dataclassTransformer{
		cls:    ctx.Cls,
		reason: ctx.Reason,
		spec:   StandardDataclassSpec(),
		api:    ctx.API,
	}
	return t.transform()
}

// dataclassTransformer synthesizes the members a record-type decorator
// implies. It may run multiple times on the same class, so every step is
// idempotent.
type dataclassTransformer struct {
	cls    *syntax.ClassDef
	reason syntax.Expression
	spec   TransformSpec
	api    SemanticAPI
}

func (t *dataclassTransformer) transform() bool {
	info := t.cls.Info
	attributes, ready := t.collectAttributes()
	if !ready {
		return false
	}
	for _, attr := range attributes {
		if attr.Type == nil {
			return false
		}
	}

	init := t.boolArg("init", true)
	eq := t.boolArg("eq", t.spec.EqDefault)
	order := t.boolArg("order", t.spec.OrderDefault)
	frozen := t.boolArg("frozen", t.spec.FrozenDefault)
	slots := t.boolArg("slots", false)

	// With no attributes the inherited no-argument constructor is already
	// right, so nothing to synthesize.
	if init && t.canAddInit(info) && len(attributes) > 0 {
		var args []MethodArg
		for _, attr := range attributes {
			if attr.IsInInit && !t.isKwOnlyType(attr.Type) {
				args = append(args, attr.toArgument())
			}
		}
		AddMethodToClass(t.api, t.cls, "__init__", args, &sem.NoneType{}, MethodSpec{})
	}

	if eq && info.GetOwn("__eq__") == nil || order {
		objType := t.api.NamedType("builtins.object", nil)
		tvarExpr := &sem.TypeVarExpr{
			Name:       selfTVarName,
			FullName:   info.FullName + "." + selfTVarName,
			UpperBound: objType,
			Span:       info.Span,
		}
		info.Names[selfTVarName] = sem.NewSymbol(sem.MDEF, tvarExpr)
	}

	if order {
		if !eq {
			t.api.Fail(`"eq" must be True if "order" is True`, t.reason.Span(), false)
		}
		t.addOrderMethods(info)
	}

	var parentMeta []*sem.DataclassMeta
	for _, parent := range ancestors(info) {
		if parent.Metadata.Dataclass != nil {
			parentMeta = append(parentMeta, parent.Metadata.Dataclass)
		}
	}

	if frozen {
		for _, parent := range parentMeta {
			if !parent.Frozen {
				t.api.Fail("Cannot inherit frozen dataclass from a non-frozen one", info.Span, false)
				break
			}
		}
		t.propertizeCallables(attributes, false)
		t.freeze(attributes)
	} else {
		for _, parent := range parentMeta {
			if parent.Frozen {
				t.api.Fail("Cannot inherit non-frozen dataclass from a frozen one", info.Span, false)
				break
			}
		}
		t.propertizeCallables(attributes, true)
	}

	if slots {
		t.addSlots(info, attributes)
	}

	t.resetInitOnlyVars(info, attributes)

	meta := &sem.DataclassMeta{Frozen: frozen}
	for _, attr := range attributes {
		meta.Attributes = append(meta.Attributes, attr.serialize())
	}
	info.Metadata.Dataclass = meta
	return true
}

// addSlots generates the __slots__ layout from the collected fields. A class
// that spells out its own __slots__ next to slots=True raises TypeError at
// runtime, so that combination is rejected.
func (t *dataclassTransformer) addSlots(info *sem.TypeInfo, attributes []*DataclassAttribute) {
	if !t.api.Options().VersionAtLeast(3, 10) {
		t.api.Fail(`Keyword argument "slots" for "dataclass" is only valid in Python 3.10 and higher`,
			t.reason.Span(), false)
		return
	}

	generated := make([]string, 0, len(attributes))
	for _, attr := range attributes {
		generated = append(generated, attr.Name)
	}
	userSlots := info.GetOwn("__slots__")
	if userSlots != nil && userSlots.PluginGenerated {
		userSlots = nil
	}
	if userSlots != nil || (info.Slots != nil && !sameNames(info.Slots, generated)) {
		t.api.Fail(`"`+t.cls.Name+`" both defines "__slots__" and is used with "slots=True"`,
			info.Span, false)
		return
	}
	info.Slots = generated

	strType := t.api.NamedType("builtins.str", nil)
	AddAttributeToClass(t.api, t.cls, "__slots__",
		t.api.NamedType("builtins.tuple", []sem.Type{strType}), true)
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// canAddInit reports whether __init__ may be synthesized: either no
// constructor exists yet or the existing one is our own previous output.
func (t *dataclassTransformer) canAddInit(info *sem.TypeInfo) bool {
	existing := info.Names["__init__"]
	return existing == nil || existing.PluginGenerated
}

func (t *dataclassTransformer) addOrderMethods(info *sem.TypeInfo) {
	objType := t.api.NamedType("builtins.object", nil)
	boolType := t.api.NamedType("builtins.bool", nil)
	for _, method := range []string{"__lt__", "__gt__", "__le__", "__ge__"} {
		orderTVar := &sem.TypeVarType{
			Name:       selfTVarName,
			FullName:   info.FullName + "." + selfTVarName,
			ID:         -1,
			UpperBound: objType,
		}
		if existing := info.Get(method); existing != nil && !existing.PluginGenerated {
			t.api.Fail(
				fmt.Sprintf(`You may not have a custom %q method when "order" is True`, method),
				existing.Node.DeclSpan(), false)
		}
		AddMethodToClass(t.api, t.cls, method,
			[]MethodArg{{Name: "other", Type: orderTVar, Kind: sem.ArgPos}},
			boolType,
			MethodSpec{SelfType: orderTVar, TypeVar: orderTVar})
	}
}

// collectAttributes gathers fields in MRO order, ancestors first, so subclass
// declarations override same-named ancestor fields in place. The second
// result is false when an ancestor dataclass has not been transformed yet.
func (t *dataclassTransformer) collectAttributes() ([]*DataclassAttribute, bool) {
	cls := t.cls
	info := cls.Info

	var order []string
	found := make(map[string]*DataclassAttribute)
	foundSupertype := false

	ancs := ancestors(info)
	for i := len(ancs) - 1; i >= 0; i-- {
		parent := ancs[i]
		if parent.Metadata.DataclassTag && parent.Metadata.Dataclass == nil {
			// The base class is a dataclass but its transform has not run.
			return nil, false
		}
		if parent.Metadata.Dataclass == nil {
			continue
		}
		foundSupertype = true
		for _, data := range parent.Metadata.Dataclass.Attributes {
			attr := deserializeAttribute(data, parent, t.api)
			if _, seen := found[attr.Name]; !seen {
				order = append(order, attr.Name)
			}
			found[attr.Name] = attr

			if sym := info.GetOwn(attr.Name); sym != nil && sym.Node != nil {
				if _, isVar := sym.Node.(*sem.Var); !isVar {
					t.api.Fail("Dataclass attribute may only be overridden by another attribute",
						sym.Node.DeclSpan(), false)
				}
			}
		}
	}

	currentNames := make(map[string]bool)
	kwOnly := t.boolArg("kw_only", t.spec.KwOnlyDefault)
	for _, stmt := range cls.Body {
		assign, ok := stmt.(*syntax.AssignmentStmt)
		if !ok || !assign.NewSyntax || len(assign.Lvalues) == 0 {
			continue
		}
		lhs, ok := assign.Lvalues[0].(*syntax.NameExpr)
		if !ok {
			continue
		}
		sym := info.GetOwn(lhs.Name)
		if sym == nil {
			// There was probably an analysis error on this statement.
			continue
		}
		if _, isAlias := sym.Node.(*sem.TypeAlias); isAlias {
			t.api.Fail("Type aliases inside dataclass definitions are not supported at runtime",
				sym.Node.DeclSpan(), false)
			continue
		}
		node, ok := sym.Node.(*sem.Var)
		if !ok {
			continue
		}
		if node.IsClassVar {
			continue
		}

		// x: InitVar[T] contributes T to the constructor and is removed from
		// the class.
		isInitVar := false
		if inst, ok := node.Type.(*sem.Instance); ok && inst.Info.FullName == "dataclasses.InitVar" {
			isInitVar = true
			if len(inst.Args) > 0 {
				node.Type = inst.Args[0]
			} else {
				node.Type = sem.AnyFromReason(sem.AnyFromError)
			}
		}

		if t.isKwOnlyType(node.Type) {
			kwOnly = true
		}

		hasFieldCall, fieldArgs := t.collectFieldArgs(assign.Rvalue)

		isInInit := true
		if expr, ok := fieldArgs["init"]; ok {
			value, valid := t.api.ParseBool(expr)
			isInInit = valid && value
		}

		hasDefault := false
		if hasFieldCall {
			_, hasDefault = fieldArgs["default"]
			if !hasDefault {
				_, hasDefault = fieldArgs["default_factory"]
			}
			if !hasDefault {
				_, hasDefault = fieldArgs["factory"]
			}
		} else if _, isTemp := assign.Rvalue.(*syntax.TempNode); !isTemp {
			hasDefault = true
		}

		if !hasDefault {
			// Non-default attributes are set on self in the generated
			// constructor, not in the class body.
			sym.Implicit = true
		}

		isKwOnly := kwOnly
		if expr, ok := fieldArgs["kw_only"]; ok {
			value, valid := t.api.ParseBool(expr)
			if valid {
				isKwOnly = value
			} else {
				t.api.Fail(`"kw_only" argument must be True or False.`, assign.Rvalue.Span(), false)
			}
		}

		alias := ""
		if expr, ok := fieldArgs["alias"]; ok {
			if str, isStr := expr.(*syntax.StrExpr); isStr {
				alias = str.Value
			} else {
				t.api.Fail(`"alias" argument to dataclass field must be a string literal`,
					assign.Rvalue.Span(), false)
			}
		}

		currentNames[lhs.Name] = true
		if _, seen := found[lhs.Name]; !seen {
			order = append(order, lhs.Name)
		}
		found[lhs.Name] = &DataclassAttribute{
			Name:       lhs.Name,
			Alias:      alias,
			IsInInit:   isInInit,
			IsInitVar:  isInitVar,
			HasDefault: hasDefault,
			KwOnly:     isKwOnly,
			Span:       assign.Pos,
			Type:       node.Type,
			Info:       info,
		}
	}

	all := make([]*DataclassAttribute, 0, len(order))
	for _, name := range order {
		all = append(all, found[name])
	}
	if foundSupertype {
		// Stable partition: keyword-only fields move after positional ones.
		partitioned := make([]*DataclassAttribute, 0, len(all))
		for _, attr := range all {
			if !attr.KwOnly {
				partitioned = append(partitioned, attr)
			}
		}
		for _, attr := range all {
			if attr.KwOnly {
				partitioned = append(partitioned, attr)
			}
		}
		all = partitioned
	}

	// Required fields must not follow defaulted ones, and the KW_ONLY
	// sentinel may appear at most once.
	foundDefault := false
	foundKwSentinel := false
	for _, attr := range all {
		if foundDefault && attr.IsInInit && !attr.HasDefault && !attr.KwOnly {
			span := info.Span
			if currentNames[attr.Name] {
				span = attr.Span
			}
			t.api.Fail("Attributes without a default cannot follow attributes with one", span, false)
		}
		foundDefault = foundDefault || (attr.HasDefault && attr.IsInInit)

		if foundKwSentinel && t.isKwOnlyType(attr.Type) {
			span := info.Span
			if currentNames[attr.Name] {
				span = attr.Span
			}
			t.api.Fail("There may not be more than one field with the KW_ONLY type", span, false)
		}
		foundKwSentinel = foundKwSentinel || t.isKwOnlyType(attr.Type)
	}
	return all, true
}

// freeze converts every field to a read-only property, emulating a frozen
// class.
func (t *dataclassTransformer) freeze(attributes []*DataclassAttribute) {
	info := t.cls.Info
	for _, attr := range attributes {
		if sym := info.Names[attr.Name]; sym != nil {
			if v, ok := sym.Node.(*sem.Var); ok {
				v.IsProperty = true
			}
			continue
		}
		v := attr.toVar(info)
		v.IsProperty = true
		v.FullName = info.FullName + "." + v.Name
		info.Names[v.Name] = sem.NewSymbol(sem.MDEF, v)
	}
}

// propertizeCallables turns callable-typed fields into properties so access
// through an instance is not mistaken for a bound method call.
func (t *dataclassTransformer) propertizeCallables(attributes []*DataclassAttribute, settable bool) {
	info := t.cls.Info
	for _, attr := range attributes {
		if _, ok := attr.Type.(*sem.CallableType); !ok {
			continue
		}
		v := attr.toVar(info)
		v.IsProperty = true
		v.IsSettableProperty = settable
		v.FullName = info.FullName + "." + v.Name
		info.Names[v.Name] = sem.NewSymbol(sem.MDEF, v)
	}
}

// resetInitOnlyVars removes init-only fields from the class and resets their
// declarations so a later pass can rediscover them.
func (t *dataclassTransformer) resetInitOnlyVars(info *sem.TypeInfo, attributes []*DataclassAttribute) {
	for _, attr := range attributes {
		if !attr.IsInitVar {
			continue
		}
		delete(info.Names, attr.Name)
		for _, stmt := range t.cls.Body {
			assign, ok := stmt.(*syntax.AssignmentStmt)
			if !ok || assign.UnanalyzedType == nil || len(assign.Lvalues) == 0 {
				continue
			}
			if lhs, ok := assign.Lvalues[0].(*syntax.NameExpr); ok && lhs.Name == attr.Name {
				lhs.Node = nil
			}
		}
	}
}

func (t *dataclassTransformer) isKwOnlyType(typ sem.Type) bool {
	inst, ok := typ.(*sem.Instance)
	return ok && inst.Info.FullName == "dataclasses.KW_ONLY"
}

// collectFieldArgs reports whether the expression is a field-marker call and
// extracts its keyword arguments.
func (t *dataclassTransformer) collectFieldArgs(expr syntax.Expression) (bool, map[string]syntax.Expression) {
	call, ok := expr.(*syntax.CallExpr)
	if !ok {
		return false, nil
	}
	fullname := CalleeFullName(expr)
	matched := false
	for _, specifier := range t.spec.FieldSpecifiers {
		if fullname == specifier {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	args := make(map[string]syntax.Expression)
	for i, kind := range call.ArgKinds {
		if kind == sem.ArgStar2 {
			t.api.Fail(`Unpacking **kwargs in "field()" is not supported`, call.Pos, false)
			return true, map[string]syntax.Expression{}
		}
		if !kind.IsNamed() {
			t.api.Fail(`"field()" does not accept positional arguments`, call.Pos, false)
			return true, map[string]syntax.Expression{}
		}
		args[call.ArgNames[i]] = call.Args[i]
	}
	return true, args
}

func (t *dataclassTransformer) boolArg(name string, def bool) bool {
	return DecoratorBoolArgument(ClassDefContext{Cls: t.cls, Reason: t.reason, API: t.api}, name, def)
}

// ancestors is the proper MRO slice: everything strictly between the class
// itself and object.
func ancestors(info *sem.TypeInfo) []*sem.TypeInfo {
	if len(info.MRO) <= 2 {
		return nil
	}
	return info.MRO[1 : len(info.MRO)-1]
}
