package vecstore

import "testing"

func TestPointIDPassesThroughUUIDs(t *testing.T) {
	t.Parallel()

	const id = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
	if got := PointID(id); got != id {
		t.Errorf("PointID(%q) = %q, want passthrough", id, got)
	}
}

func TestPointIDIsDeterministic(t *testing.T) {
	t.Parallel()

	a := PointID("message-42@example.org")
	b := PointID("message-42@example.org")
	if a != b {
		t.Errorf("same key produced different ids: %q vs %q", a, b)
	}

	c := PointID("message-43@example.org")
	if a == c {
		t.Errorf("different keys produced the same id %q", a)
	}
}

func TestChunkKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source string
		index  int
		want   string
	}{
		{"doc-1", 0, "doc-1_0"},
		{"doc-1", 7, "doc-1_7"},
		{"a b c", 2, "a b c_2"},
	}

	for _, tt := range tests {
		if got := ChunkKey(tt.source, tt.index); got != tt.want {
			t.Errorf("ChunkKey(%q, %d) = %q, want %q", tt.source, tt.index, got, tt.want)
		}
	}
}
