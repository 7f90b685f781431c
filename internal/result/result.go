// Package result defines the closed outcome sets returned by every engine
// operation. Each operation returns a sealed interface (UpsertResult,
// UpdateResult, DeleteResult, GetResult, QueryResult) whose variants are the
// only values callers ever see; callers branch exhaustively with a type
// switch and decide commit/rollback and retry from the variant alone.
//
// Variants shared by several operations (WriteConflict, NotExists,
// UnknownFailure, ...) are single structs carrying every marker method they
// need, so a WriteConflict means the same thing no matter which operation
// produced it: retry the whole operation in a fresh transaction.
package result

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/model"
)

// UpsertResult is the outcome of an Upsert operation.
type UpsertResult interface{ upsertResult() }

// UpdateResult is the outcome of an UpdateByID operation.
type UpdateResult interface{ updateResult() }

// DeleteResult is the outcome of a DeleteByID operation.
type DeleteResult interface{ deleteResult() }

// GetResult is the outcome of a GetByID operation.
type GetResult interface{ getResult() }

// QueryResult is the outcome of a Query operation.
type QueryResult interface{ queryResult() }

// InsertSuccess reports an upsert that created a new document.
type InsertSuccess struct {
	DocumentUUID uuid.UUID
}

// UpdateSuccess reports a successful in-place update, whether reached via
// the upsert update path or via UpdateByID.
type UpdateSuccess struct {
	DocumentUUID uuid.UUID
}

// DeleteSuccess reports a completed delete.
type DeleteSuccess struct{}

// GetSuccess carries the document found by a point lookup.
type GetSuccess struct {
	DocumentUUID   uuid.UUID
	Body           json.RawMessage
	LastModifiedAt time.Time
}

// QuerySuccess carries the page of matching documents. Total is non-nil only
// when the request asked for the separate count query.
type QuerySuccess struct {
	Documents []json.RawMessage
	Total     *int
}

// WriteConflict reports a backend-detected serialization anomaly or
// deadlock. The caller may retry the whole operation in a fresh transaction.
type WriteConflict struct{}

// IdentityConflict reports that the referential identity of the candidate
// document is already owned by a different document.
type IdentityConflict struct {
	ResourceName string
	Identity     []model.IdentityElement
}

// ImmutableIdentity reports an identity-changing update against a resource
// type that forbids identity updates. Nothing was mutated.
type ImmutableIdentity struct {
	Message string
}

// InvalidReferences reports document references whose referential ids did not
// resolve to any Alias row, by resource name.
type InvalidReferences struct {
	ResourceNames []string
}

// InvalidDescriptorReferences reports descriptor references that did not
// resolve.
type InvalidDescriptorReferences struct {
	References []model.DescriptorReference
}

// NotExists reports that the target document uuid does not resolve.
type NotExists struct{}

// QueryInvalid reports a malformed or unsupported query shape. The request
// itself must change; retrying is pointless.
type QueryInvalid struct {
	Message string
}

// UnknownFailure reports anything unanticipated, including detected
// integrity violations. Logged at high severity by the operation; callers
// surface a generic failure and never retry.
type UnknownFailure struct {
	Message string
}

func (InsertSuccess) upsertResult()               {}
func (UpdateSuccess) upsertResult()               {}
func (UpdateSuccess) updateResult()               {}
func (DeleteSuccess) deleteResult()               {}
func (GetSuccess) getResult()                     {}
func (QuerySuccess) queryResult()                 {}
func (WriteConflict) upsertResult()               {}
func (WriteConflict) updateResult()               {}
func (WriteConflict) deleteResult()               {}
func (IdentityConflict) upsertResult()            {}
func (ImmutableIdentity) updateResult()           {}
func (InvalidReferences) upsertResult()           {}
func (InvalidReferences) updateResult()           {}
func (InvalidDescriptorReferences) upsertResult() {}
func (InvalidDescriptorReferences) updateResult() {}
func (NotExists) updateResult()                   {}
func (NotExists) deleteResult()                   {}
func (NotExists) getResult()                      {}
func (QueryInvalid) queryResult()                 {}
func (UnknownFailure) upsertResult()              {}
func (UnknownFailure) updateResult()              {}
func (UnknownFailure) deleteResult()              {}
func (UnknownFailure) getResult()                 {}
func (UnknownFailure) queryResult()               {}
