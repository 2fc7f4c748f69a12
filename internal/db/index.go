package db

import "strings"

// IndexFieldType is the FT field type.
type IndexFieldType string

// Supported field types.
const (
	IndexFieldTag    IndexFieldType = "TAG"
	IndexFieldVector IndexFieldType = "VECTOR"
)

// VectorAlgorithm selects the vector index algorithm.
type VectorAlgorithm string

// Supported vector algorithms.
const (
	VectorFlat VectorAlgorithm = "FLAT"
	VectorHNSW VectorAlgorithm = "HNSW"
)

// DistanceMetric selects the vector distance metric.
type DistanceMetric string

// Supported distance metrics.
const (
	DistanceCosine DistanceMetric = "COSINE"
	DistanceL2     DistanceMetric = "L2"
)

// IndexField describes a single FT schema field.
type IndexField struct {
	Name              string
	Type              IndexFieldType
	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int
	VectorEFConstruct int
}

// IndexDefinition describes an FT index over HASH keys.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// IndexBuilder is a fluent builder for FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Tag adds a TAG field to the index.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldTag})
	return b
}

// VectorHNSW adds a VECTOR field with the HNSW algorithm.
func (b *IndexBuilder) VectorHNSW(name string, dim int, distance DistanceMetric, m, efConstruct int) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:              name,
		Type:              IndexFieldVector,
		VectorAlgo:        VectorHNSW,
		VectorDim:         dim,
		VectorDistance:    distance,
		VectorM:           m,
		VectorEFConstruct: efConstruct,
	})
	return b
}

// VectorFlat adds a VECTOR field with the FLAT algorithm.
func (b *IndexBuilder) VectorFlat(name string, dim int, distance DistanceMetric) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:           name,
		Type:           IndexFieldVector,
		VectorAlgo:     VectorFlat,
		VectorDim:      dim,
		VectorDistance: distance,
	})
	return b
}

// Build returns the index definition.
func (b *IndexBuilder) Build() *IndexDefinition {
	return &b.def
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX")
		parts = append(parts, idx.Prefixes...)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldVector:
			parts = append(parts, "VECTOR", string(f.VectorAlgo))
		}
	}
	return strings.Join(parts, " ")
}
