package manifest

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// DeterministicUUID derives a stable UUID from a build id. The same input
// always yields the same output, so repeated manifest requests for one build
// are cacheable and indistinguishable. The version nibble is forced to 4 and
// the variant to RFC 4122 so the result is shaped like the random identifiers
// update clients expect.
func DeterministicUUID(buildID string) uuid.UUID {
	sum := sha256.Sum256([]byte(buildID))

	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0f) | 0x40 // version 4
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}
