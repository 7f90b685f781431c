package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/partition"
)

// TraceID correlates every log line and store action of one request.
type TraceID string

// Document is a persisted resource instance, one row in the documents table.
type Document struct {
	// ID is the internal surrogate key, assigned by the store on insert and
	// never reused. Zero until the row exists.
	ID int64

	// PartitionKey is derived from UUID; see package partition.
	PartitionKey partition.Key

	// UUID is the caller-visible stable identifier.
	UUID uuid.UUID

	ResourceName    string
	ResourceVersion string
	ProjectName     string

	// IsDescriptor marks controlled-vocabulary documents.
	IsDescriptor bool

	// Body is the document payload, opaque to the engine except for the
	// well-known "id" and "_etag" fields.
	Body json.RawMessage

	CreatedAt           time.Time
	LastModifiedAt      time.Time
	LastModifiedTraceID string
}

// DocumentSummary is the subset of a Document returned by point lookups.
type DocumentSummary struct {
	ID             int64
	Body           json.RawMessage
	LastModifiedAt time.Time
}

// Alias maps a referential identity to the document that currently owns it,
// one row in the aliases table. A document always has a primary alias; a
// subclass document has a second alias for its superclass identity pointing
// at the same document.
type Alias struct {
	ReferentialPartitionKey partition.Key
	ReferentialID           uuid.UUID
	DocumentPartitionKey    partition.Key
	DocumentID              int64
}

// ReferenceTarget is one outgoing edge of a document: the referential
// identity of the document or descriptor it points at.
type ReferenceTarget struct {
	ReferentialID           uuid.UUID
	ReferentialPartitionKey partition.Key
}

// TargetOf builds the ReferenceTarget for a referential id, deriving its
// partition key.
func TargetOf(referentialID uuid.UUID) ReferenceTarget {
	return ReferenceTarget{
		ReferentialID:           referentialID,
		ReferentialPartitionKey: partition.KeyFor(referentialID),
	}
}
