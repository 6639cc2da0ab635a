package sem

import (
	"typewatch/internal/engine/diag"
)

// TypeVarCarrier is implemented by class definitions that declare their own
// type variables, so DeriveTypeVars can re-read them after a strip without
// this package depending on the AST.
type TypeVarCarrier interface {
	DeclaredTypeVars() []string
}

// TypeInfo represents a class. It exclusively owns its member symbol table;
// the Defn reference is weak.
type TypeInfo struct {
	Name     string
	FullName string
	Module   string
	Defn     Declaration

	// Bases are the direct base classes as computed by analysis. MRO is the
	// linearized ancestor list, self first and object last; it is transiently
	// empty while the class is being stripped.
	Bases []*Instance
	MRO   []*TypeInfo

	Names    SymbolTable
	Metadata Metadata

	TypeVars           []string
	TupleType          *TupleType
	AbstractAttributes []string
	DeclaredMetaclass  string
	MetaclassType      *Instance

	// Slots is the generated __slots__ layout of a slots=True dataclass.
	Slots []string

	IsNamedTuple  bool
	FallbackToAny bool

	Span diag.Span

	subtypeCache map[string]bool
}

func NewTypeInfo(names SymbolTable, defn Declaration, module string) *TypeInfo {
	info := &TypeInfo{
		Names:  names,
		Defn:   defn,
		Module: module,
	}
	if defn != nil {
		info.Name = defn.DeclName()
		info.FullName = defn.DeclFullName()
		info.Span = defn.DeclSpan()
	}
	return info
}

func (i *TypeInfo) DeclName() string                { return i.Name }
func (i *TypeInfo) DeclFullName() string            { return i.FullName }
func (i *TypeInfo) SetDeclFullName(fullname string) { i.FullName = fullname }
func (i *TypeInfo) DeclSpan() diag.Span             { return i.Span }

// DeclType of a class reference is the type object for the class.
func (i *TypeInfo) DeclType() Type {
	return &TypeType{Item: &Instance{Info: i}}
}

// GetOwn looks a member up in this class only.
func (i *TypeInfo) GetOwn(name string) *Symbol {
	return i.Names[name]
}

// Get looks a member up through the MRO.
func (i *TypeInfo) Get(name string) *Symbol {
	for _, anc := range i.MRO {
		if sym := anc.Names[name]; sym != nil {
			return sym
		}
	}
	// Before the MRO is computed fall back to the class itself.
	if len(i.MRO) == 0 {
		return i.Names[name]
	}
	return nil
}

// HasBase reports whether fullname occurs in the MRO.
func (i *TypeInfo) HasBase(fullname string) bool {
	for _, anc := range i.MRO {
		if anc.FullName == fullname {
			return true
		}
	}
	return false
}

// SetMRO installs a freshly computed linearization and invalidates the
// subtype caches, keeping them consistent with the new ancestry.
func (i *TypeInfo) SetMRO(mro []*TypeInfo) {
	i.MRO = mro
	i.ResetSubtypeCaches()
}

func (i *TypeInfo) ResetSubtypeCaches() {
	i.subtypeCache = nil
}

func (i *TypeInfo) cacheSubtype(fullname string, result bool) {
	if i.subtypeCache == nil {
		i.subtypeCache = make(map[string]bool)
	}
	i.subtypeCache[fullname] = result
}

func (i *TypeInfo) cachedSubtype(fullname string) (bool, bool) {
	v, ok := i.subtypeCache[fullname]
	return v, ok
}

// SubtypeCacheLen exists for the stripping engine's tests; the cache itself
// stays private.
func (i *TypeInfo) SubtypeCacheLen() int { return len(i.subtypeCache) }

// DeriveTypeVars re-reads the class's own type variable list from its
// declaration. Called after the computed list was cleared by stripping.
func (i *TypeInfo) DeriveTypeVars() {
	if carrier, ok := i.Defn.(TypeVarCarrier); ok {
		declared := carrier.DeclaredTypeVars()
		if len(declared) > 0 {
			i.TypeVars = append([]string(nil), declared...)
		}
	}
}
