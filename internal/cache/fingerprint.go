package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// fingerprintInput is the canonical serialization hashed into a cache key.
// Predicates are order-normalized so equivalent filters collide; every
// Parameters field participates via its JSON encoding; the data identity
// ties the key to the stored dataset's content.
type fingerprintInput struct {
	Predicates   []domain.Predicate `json:"predicates"`
	Parameters   domain.Parameters  `json:"parameters"`
	DataIdentity string             `json:"data_identity"`
}

// Fingerprint derives the stable cache key for one computation. Changing
// any predicate, any parameter field, or the underlying dataset produces a
// different key.
func Fingerprint(preds []domain.Predicate, params domain.Parameters, dataIdentity string) string {
	in := fingerprintInput{
		Predicates:   domain.NormalizePredicates(preds),
		Parameters:   params,
		DataIdentity: dataIdentity,
	}
	// Struct encoding is deterministic: fields marshal in declaration order
	// and the predicate list is pre-sorted.
	raw, err := json.Marshal(in)
	if err != nil {
		// Only unmarshalable types can fail here; the input is plain data.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
