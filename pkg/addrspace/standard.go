package addrspace

import "github.com/carverauto/opcua-aggregator/pkg/nodeid"

// Well-known namespace 0 nodes.
//
//nolint:gochecknoglobals // constant node ids
var (
	References                = nodeid.NewNumeric(0, 31)
	NonHierarchicalReferences = nodeid.NewNumeric(0, 32)
	HierarchicalReferences    = nodeid.NewNumeric(0, 33)
	HasChild                  = nodeid.NewNumeric(0, 34)
	Organizes                 = nodeid.NewNumeric(0, 35)
	HasModellingRule          = nodeid.NewNumeric(0, 37)
	HasTypeDefinition         = nodeid.NewNumeric(0, 40)
	GeneratesEvent            = nodeid.NewNumeric(0, 41)
	Aggregates                = nodeid.NewNumeric(0, 44)
	HasSubtype                = nodeid.NewNumeric(0, 45)
	HasProperty               = nodeid.NewNumeric(0, 46)
	HasComponent              = nodeid.NewNumeric(0, 47)
	HasOrderedComponent       = nodeid.NewNumeric(0, 49)

	BaseObjectType       = nodeid.NewNumeric(0, 58)
	FolderType           = nodeid.NewNumeric(0, 61)
	BaseVariableType     = nodeid.NewNumeric(0, 62)
	BaseDataVariableType = nodeid.NewNumeric(0, 63)
	PropertyType         = nodeid.NewNumeric(0, 68)

	RootFolder           = nodeid.NewNumeric(0, 84)
	ObjectsFolder        = nodeid.NewNumeric(0, 85)
	TypesFolder          = nodeid.NewNumeric(0, 86)
	ObjectTypesFolder    = nodeid.NewNumeric(0, 88)
	VariableTypesFolder  = nodeid.NewNumeric(0, 89)
	ReferenceTypesFolder = nodeid.NewNumeric(0, 91)
)

//nolint:gochecknoglobals // name lookup used by the model loader
var referenceTypeNames = map[string]nodeid.NodeID{
	"References":                References,
	"NonHierarchicalReferences": NonHierarchicalReferences,
	"HierarchicalReferences":    HierarchicalReferences,
	"HasChild":                  HasChild,
	"Organizes":                 Organizes,
	"HasModellingRule":          HasModellingRule,
	"HasTypeDefinition":         HasTypeDefinition,
	"GeneratesEvent":            GeneratesEvent,
	"Aggregates":                Aggregates,
	"HasSubtype":                HasSubtype,
	"HasProperty":               HasProperty,
	"HasComponent":              HasComponent,
	"HasOrderedComponent":       HasOrderedComponent,
}

type seedNode struct {
	id     nodeid.NodeID
	class  NodeClass
	name   string
	parent nodeid.NodeID
	ref    nodeid.NodeID
}

// standardNodes is the slice of namespace 0 that browsing and path resolution
// depend on: the reference type tree, the folder skeleton and base types.
func standardNodes() []seedNode {
	null := nodeid.NodeID{}

	return []seedNode{
		{References, ClassReferenceType, "References", null, null},
		{HierarchicalReferences, ClassReferenceType, "HierarchicalReferences", References, HasSubtype},
		{NonHierarchicalReferences, ClassReferenceType, "NonHierarchicalReferences", References, HasSubtype},
		{HasChild, ClassReferenceType, "HasChild", HierarchicalReferences, HasSubtype},
		{Organizes, ClassReferenceType, "Organizes", HierarchicalReferences, HasSubtype},
		{Aggregates, ClassReferenceType, "Aggregates", HasChild, HasSubtype},
		{HasSubtype, ClassReferenceType, "HasSubtype", HasChild, HasSubtype},
		{HasProperty, ClassReferenceType, "HasProperty", Aggregates, HasSubtype},
		{HasComponent, ClassReferenceType, "HasComponent", Aggregates, HasSubtype},
		{HasOrderedComponent, ClassReferenceType, "HasOrderedComponent", HasComponent, HasSubtype},
		{HasTypeDefinition, ClassReferenceType, "HasTypeDefinition", NonHierarchicalReferences, HasSubtype},
		{HasModellingRule, ClassReferenceType, "HasModellingRule", NonHierarchicalReferences, HasSubtype},
		{GeneratesEvent, ClassReferenceType, "GeneratesEvent", NonHierarchicalReferences, HasSubtype},

		{BaseObjectType, ClassObjectType, "BaseObjectType", null, null},
		{FolderType, ClassObjectType, "FolderType", BaseObjectType, HasSubtype},
		{BaseVariableType, ClassVariableType, "BaseVariableType", null, null},
		{BaseDataVariableType, ClassVariableType, "BaseDataVariableType", BaseVariableType, HasSubtype},
		{PropertyType, ClassVariableType, "PropertyType", BaseVariableType, HasSubtype},

		{RootFolder, ClassObject, "Root", null, null},
		{ObjectsFolder, ClassObject, "Objects", RootFolder, Organizes},
		{TypesFolder, ClassObject, "Types", RootFolder, Organizes},
		{ObjectTypesFolder, ClassObject, "ObjectTypes", TypesFolder, Organizes},
		{VariableTypesFolder, ClassObject, "VariableTypes", TypesFolder, Organizes},
		{ReferenceTypesFolder, ClassObject, "ReferenceTypes", TypesFolder, Organizes},
	}
}
