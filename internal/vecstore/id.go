package vecstore

import (
	"fmt"

	"github.com/google/uuid"
)

// pointIDNamespace is the fixed UUID namespace for deriving point IDs from
// source keys. Changing it would orphan every previously ingested point.
var pointIDNamespace = uuid.MustParse("8a4b6c1e-52d7-4f6a-9e3d-0b7f2a915c44")

// PointID maps an arbitrary source key (an email message id, a JSON object
// key) into the UUID space the backing store requires. Keys that already
// parse as UUIDs pass through unchanged; anything else is hashed so that
// re-ingesting the same key always updates the same point rather than
// duplicating it.
func PointID(key string) string {
	if id, err := uuid.Parse(key); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(pointIDNamespace, []byte(key)).String()
}

// ChunkKey derives the source key for one chunk of an oversized document.
// Chunks are independent records; there is no reassembly contract.
func ChunkKey(sourceKey string, index int) string {
	return fmt.Sprintf("%s_%d", sourceKey, index)
}
