package state

import (
	"encoding/json"
	"strings"
)

// subjectSep separates tuple parts in the canonical internal encoding of a
// SubjectKey used as a fact-store map key. It is a control character;
// tuple parts are not checked for it.
const subjectSep = "\x1f"

// SubjectKey canonicalizes the two subject shapes a domain can address a
// fact with: a bare identifier ("a") or an ordered tuple of identifiers
// (e.g., {row, col} for a 2-D grid domain). spec.md §9 leaves the canonical
// encoding as an Open Question for implementations to settle; this package
// picks: a single-part key serializes as a bare JSON string, a multi-part
// key serializes as a JSON array of strings. See DESIGN.md.
type SubjectKey struct {
	Parts []string
}

// Subject builds a SubjectKey for a bare identifier.
func Subject(id string) SubjectKey {
	return SubjectKey{Parts: []string{id}}
}

// TupleSubject builds a SubjectKey for an ordered composite identifier.
func TupleSubject(parts ...string) SubjectKey {
	cp := make([]string, len(parts))
	copy(cp, parts)
	return SubjectKey{Parts: cp}
}

// IsTuple reports whether the subject has more than one part.
func (k SubjectKey) IsTuple() bool {
	return len(k.Parts) > 1
}

// String returns the subject's canonical internal key, used to index the
// per-predicate fact map. Two SubjectKeys with equal Parts produce equal
// strings and vice versa.
func (k SubjectKey) String() string {
	return strings.Join(k.Parts, subjectSep)
}

// decodeSubjectKey reverses SubjectKey.String.
func decodeSubjectKey(encoded string) SubjectKey {
	return SubjectKey{Parts: strings.Split(encoded, subjectSep)}
}

// DecodeSubjectKey reverses the canonical internal key produced by
// SubjectKey.String, for callers (e.g. state snapshot serialization) that
// only have the encoded map key and need the structured SubjectKey back.
func DecodeSubjectKey(encoded string) SubjectKey {
	return decodeSubjectKey(encoded)
}

// MarshalJSON implements the canonical external encoding: a bare string for
// single-part subjects, an array of strings for tuples.
func (k SubjectKey) MarshalJSON() ([]byte, error) {
	if !k.IsTuple() {
		if len(k.Parts) == 0 {
			return json.Marshal("")
		}
		return json.Marshal(k.Parts[0])
	}
	return json.Marshal(k.Parts)
}

// UnmarshalJSON accepts both a bare string and an array of strings, matching
// spec.md §6's requirement to accept both legacy and canonical goal-payload
// subject shapes on input.
func (k *SubjectKey) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		k.Parts = []string{single}
		return nil
	}
	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	k.Parts = tuple
	return nil
}
