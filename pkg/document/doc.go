// Package document addresses and mutates form documents by field path.
//
// A field path is a dotted list of object keys with bracketed array indices
// ("equipments[0].type"). Documents are JSON-shaped trees of map[string]any,
// []any and scalars. Apply never mutates its input: it copies the containers
// along the written path and shares every untouched subtree with the source
// snapshot.
package document
