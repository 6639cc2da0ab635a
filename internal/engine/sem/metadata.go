package sem

import (
	"encoding/json"
	"fmt"
)

// Feature tags for TypeInfo metadata. Metadata is a closed, typed registry
// rather than an open string-keyed blob: each tag carries its own payload
// struct and the whole value round-trips through JSON for the incremental
// metadata store.
const (
	FeatureDataclass    = "dataclass"
	FeatureDataclassTag = "dataclass_tag"
	FeatureNamedTuple   = "namedtuple"
)

type Metadata struct {
	// Dataclass carries the synthesized attribute list and frozen flag so
	// subclasses compiled in separate units see inherited fields without
	// re-parsing source.
	Dataclass *DataclassMeta `json:"dataclass,omitempty"`
	// DataclassTag marks a class seen by the main analysis pass before the
	// transformer has produced Dataclass. A tagged base without metadata
	// forces the subclass transform to defer.
	DataclassTag bool `json:"dataclass_tag,omitempty"`
	// NamedTuple records the synthesized field list.
	NamedTuple *NamedTupleMeta `json:"namedtuple,omitempty"`
}

func (m *Metadata) IsEmpty() bool {
	return m.Dataclass == nil && !m.DataclassTag && m.NamedTuple == nil
}

type DataclassMeta struct {
	Attributes []DataclassAttributeData `json:"attributes"`
	Frozen     bool                     `json:"frozen"`
}

// DataclassAttributeData is the serialized form of a collected dataclass
// attribute.
type DataclassAttributeData struct {
	Name       string   `json:"name"`
	Alias      string   `json:"alias,omitempty"`
	IsInInit   bool     `json:"is_in_init"`
	IsInitVar  bool     `json:"is_init_var"`
	HasDefault bool     `json:"has_default"`
	KwOnly     bool     `json:"kw_only"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Type       TypeData `json:"type"`
}

type NamedTupleMeta struct {
	Fields []string `json:"fields"`
}

// TypeData is a serializable type reference: nested maps of strings, numbers
// and lists only. Deserialization re-resolves embedded class references
// against the then-current symbol universe.
type TypeData struct {
	Kind     string     `json:"kind"`
	FullName string     `json:"fullname,omitempty"`
	Items    []TypeData `json:"items,omitempty"`
	AnyOf    int        `json:"any_of,omitempty"`
	ID       int        `json:"id,omitempty"`
}

const (
	typeDataInstance = "instance"
	typeDataAny      = "any"
	typeDataNone     = "none"
	typeDataTuple    = "tuple"
	typeDataUnion    = "union"
	typeDataTypeVar  = "typevar"
	typeDataTypeType = "type"
)

// SerializeType lowers a type into TypeData. Unsupported shapes degrade to
// Any rather than failing, since metadata reuse is best-effort.
func SerializeType(t Type) TypeData {
	switch typ := t.(type) {
	case *Instance:
		items := make([]TypeData, 0, len(typ.Args))
		for _, arg := range typ.Args {
			items = append(items, SerializeType(arg))
		}
		return TypeData{Kind: typeDataInstance, FullName: typ.Info.FullName, Items: items}
	case *NoneType:
		return TypeData{Kind: typeDataNone}
	case *TupleType:
		items := make([]TypeData, 0, len(typ.Items))
		for _, it := range typ.Items {
			items = append(items, SerializeType(it))
		}
		return TypeData{Kind: typeDataTuple, Items: items}
	case *UnionType:
		items := make([]TypeData, 0, len(typ.Items))
		for _, it := range typ.Items {
			items = append(items, SerializeType(it))
		}
		return TypeData{Kind: typeDataUnion, Items: items}
	case *TypeVarType:
		return TypeData{Kind: typeDataTypeVar, FullName: typ.FullName, ID: typ.ID}
	case *TypeType:
		return TypeData{Kind: typeDataTypeType, Items: []TypeData{SerializeType(typ.Item)}}
	case *AnyType:
		return TypeData{Kind: typeDataAny, AnyOf: int(typ.Reason)}
	}
	return TypeData{Kind: typeDataAny, AnyOf: int(AnyImplementationArtifact)}
}

// ClassResolver resolves a class fullname in the current symbol universe.
// It returns nil when the class is unknown.
type ClassResolver func(fullname string) *TypeInfo

// DeserializeType rebuilds a type from TypeData, re-resolving class
// references through resolve. Unknown references degrade to Any.
func DeserializeType(data TypeData, resolve ClassResolver) Type {
	switch data.Kind {
	case typeDataInstance:
		info := resolve(data.FullName)
		if info == nil {
			return AnyFromReason(AnyFromError)
		}
		args := make([]Type, 0, len(data.Items))
		for _, it := range data.Items {
			args = append(args, DeserializeType(it, resolve))
		}
		return &Instance{Info: info, Args: args}
	case typeDataNone:
		return &NoneType{}
	case typeDataTuple:
		items := make([]Type, 0, len(data.Items))
		for _, it := range data.Items {
			items = append(items, DeserializeType(it, resolve))
		}
		var fallback *Instance
		if info := resolve("builtins.tuple"); info != nil {
			fallback = &Instance{Info: info, Args: []Type{AnyFromReason(AnySpecialForm)}}
		}
		return &TupleType{Items: items, Fallback: fallback}
	case typeDataUnion:
		items := make([]Type, 0, len(data.Items))
		for _, it := range data.Items {
			items = append(items, DeserializeType(it, resolve))
		}
		return &UnionType{Items: items}
	case typeDataTypeVar:
		return &TypeVarType{Name: data.FullName, FullName: data.FullName, ID: data.ID}
	case typeDataTypeType:
		if len(data.Items) == 1 {
			return &TypeType{Item: DeserializeType(data.Items[0], resolve)}
		}
		return AnyFromReason(AnyFromError)
	case typeDataAny:
		return AnyFromReason(AnyReason(data.AnyOf))
	}
	return AnyFromReason(AnyFromError)
}

// MarshalMetadata encodes metadata for persistence.
func MarshalMetadata(m Metadata) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal class metadata: %w", err)
	}
	return payload, nil
}

func UnmarshalMetadata(payload []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(payload, &m); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal class metadata: %w", err)
	}
	return m, nil
}
