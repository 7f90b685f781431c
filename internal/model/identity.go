package model

import (
	"strings"

	"github.com/google/uuid"
)

// referentialNamespace is the fixed UUIDv5 namespace for referential ids.
// Changing it invalidates every stored Alias row.
var referentialNamespace = uuid.MustParse("edf1d0c5-35df-45b5-9d5c-8bbd45f129ac")

// IdentityElement is one natural-key field of a document: the JSON path of
// the field and its string value.
type IdentityElement struct {
	Path  string
	Value string
}

// DocumentIdentity is the ordered natural key of a document. Order matters:
// the same elements in a different order derive a different referential id,
// so extraction must list elements in the resource definition's order.
type DocumentIdentity []IdentityElement

// ReferentialIDFor derives the referential id owned by a document identity
// within a project/resource identity space. Deterministic UUIDv5 over the
// flattened identity, with unit separators so element boundaries cannot
// collide ("ab"+"c" never hashes like "a"+"bc").
func ReferentialIDFor(projectName, resourceName string, identity DocumentIdentity) uuid.UUID {
	var b strings.Builder
	b.WriteString(projectName)
	b.WriteByte(0x1f)
	b.WriteString(resourceName)
	for _, el := range identity {
		b.WriteByte(0x1e)
		b.WriteString(el.Path)
		b.WriteByte(0x1f)
		b.WriteString(el.Value)
	}
	return uuid.NewSHA1(referentialNamespace, []byte(b.String()))
}

// FlattenedPairs returns the identity as key/value pairs with the path
// reduced to its final segment, the shape reported in identity-conflict
// failures.
func (d DocumentIdentity) FlattenedPairs() []IdentityElement {
	pairs := make([]IdentityElement, len(d))
	for i, el := range d {
		path := el.Path
		if idx := strings.LastIndex(path, "."); idx >= 0 {
			path = path[idx+1:]
		}
		pairs[i] = IdentityElement{Path: path, Value: el.Value}
	}
	return pairs
}

// SuperclassIdentity is the identity a subclass document additionally owns in
// its abstract superclass's identity space (a School is also an
// EducationOrganization).
type SuperclassIdentity struct {
	ResourceName  string
	ReferentialID uuid.UUID
}

// DocumentReference is an edge to another resource document, by referential
// identity.
type DocumentReference struct {
	ResourceName  string
	ReferentialID uuid.UUID
}

// DescriptorReference is an edge to a controlled-vocabulary value.
type DescriptorReference struct {
	Path          string
	Value         string
	ReferentialID uuid.UUID
}

// DocumentInfo carries everything extracted from a candidate document body by
// the upstream pipeline: its identity, the referential id that identity
// derives, and its outgoing references.
type DocumentInfo struct {
	Identity      DocumentIdentity
	ReferentialID uuid.UUID

	// Superclass is nil unless the resource participates in an abstract
	// superclass identity space.
	Superclass *SuperclassIdentity

	DocumentReferences   []DocumentReference
	DescriptorReferences []DescriptorReference
}

// ReferenceTargets flattens document and descriptor references into the
// bulk-insert shape, document references first.
func (d DocumentInfo) ReferenceTargets() []ReferenceTarget {
	targets := make([]ReferenceTarget, 0, len(d.DocumentReferences)+len(d.DescriptorReferences))
	for _, ref := range d.DocumentReferences {
		targets = append(targets, TargetOf(ref.ReferentialID))
	}
	for _, ref := range d.DescriptorReferences {
		targets = append(targets, TargetOf(ref.ReferentialID))
	}
	return targets
}
