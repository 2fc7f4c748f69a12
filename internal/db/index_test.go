package db

import "testing"

func TestIndexBuilder(t *testing.T) {
	def := NewIndex("dokindex:chunks-idx").
		Prefix("dokindex:chunks:").
		Tag("organization_id").
		Tag("document_id").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200).
		Build()

	if def.Name != "dokindex:chunks-idx" {
		t.Errorf("unexpected name %s", def.Name)
	}
	if len(def.Prefixes) != 1 || def.Prefixes[0] != "dokindex:chunks:" {
		t.Errorf("unexpected prefixes %v", def.Prefixes)
	}
	if len(def.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(def.Fields))
	}

	vec := def.Fields[2]
	if vec.Type != IndexFieldVector || vec.VectorAlgo != VectorHNSW {
		t.Errorf("unexpected vector field: %+v", vec)
	}
	if vec.VectorDim != 1536 || vec.VectorDistance != DistanceCosine {
		t.Errorf("unexpected vector params: %+v", vec)
	}
	if vec.VectorM != 16 || vec.VectorEFConstruct != 200 {
		t.Errorf("unexpected HNSW params: %+v", vec)
	}
}

func TestIndexDefinition_String(t *testing.T) {
	def := NewIndex("idx").Prefix("p:").Tag("visibility").VectorFlat("vector", 8, DistanceL2).Build()

	got := def.String()
	want := "FT.CREATE idx ON HASH PREFIX p: SCHEMA visibility TAG vector VECTOR FLAT"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
