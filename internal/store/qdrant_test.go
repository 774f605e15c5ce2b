package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID_IsDeterministicUUID(t *testing.T) {
	a := PointID("/corpus/a.txt")

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.Equal(t, a, PointID("/corpus/a.txt"))
	assert.NotEqual(t, a, PointID("/corpus/b.txt"))
}

func TestQdrantPayload_FlattensMetadata(t *testing.T) {
	r := VectorRecord{
		ID:   "/corpus/a.pdf",
		Body: "FILE: a.pdf",
		Metadata: DocumentMetadata{
			Filename: "a.pdf",
			FileType: KindPDF,
			Page:     2,
			Extra:    map[string]any{"pages": uint16(4), "doc_id": "spoofed", "ratio": float32(0.5)},
		},
	}

	p := qdrantPayload(r)

	assert.Equal(t, "/corpus/a.pdf", p[qdrantPayloadDocID])
	assert.Equal(t, "FILE: a.pdf", p[qdrantPayloadBody])
	assert.Equal(t, "pdf", p["file_type"])
	assert.Equal(t, int64(2), p["page"])
	assert.Equal(t, int64(4), p["pages"])
	assert.Equal(t, float64(0.5), p["ratio"])
}
