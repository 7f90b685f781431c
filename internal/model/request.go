package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ResourceInfo is the resource-type metadata attached to every request.
type ResourceInfo struct {
	ProjectName     string
	ResourceName    string
	ResourceVersion string
	IsDescriptor    bool

	// AllowIdentityUpdates gates the identity-change path of UpdateByID.
	AllowIdentityUpdates bool
}

// UpsertRequest asks for insert-or-update of a candidate document. DocumentUUID
// is the uuid to assign if the upsert turns out to be an insert; on the update
// path the existing document's uuid wins.
type UpsertRequest struct {
	ResourceInfo ResourceInfo
	DocumentInfo DocumentInfo
	DocumentUUID uuid.UUID
	Body         json.RawMessage
	TraceID      TraceID
}

// UpdateRequest asks for an identity-preserving update of the document
// addressed by DocumentUUID. DocumentInfo carries the referential id freshly
// derived from Body; if it differs from the stored one the update is an
// identity change, permitted only when ResourceInfo.AllowIdentityUpdates.
type UpdateRequest struct {
	ResourceInfo ResourceInfo
	DocumentInfo DocumentInfo
	DocumentUUID uuid.UUID
	Body         json.RawMessage
	TraceID      TraceID

	// CascadeHandler computes how a referencing document's body changes when
	// this document's identity changes. Required when AllowIdentityUpdates;
	// ignored otherwise.
	CascadeHandler CascadeHandler
}

// DeleteRequest asks for removal of the document addressed by DocumentUUID.
type DeleteRequest struct {
	ResourceInfo ResourceInfo
	DocumentUUID uuid.UUID
	TraceID      TraceID
}

// GetRequest is a point lookup by document uuid.
type GetRequest struct {
	ResourceInfo ResourceInfo
	DocumentUUID uuid.UUID
	TraceID      TraceID
}

// QueryTerm matches a value against one or more JSON paths of the body.
// Multiple paths are OR-ed (a search key may map to several document
// locations); multiple terms are AND-ed.
type QueryTerm struct {
	Paths []string
	Value string
}

// Pagination bounds a query. Limit must be positive; IncludeTotal requests
// the separate, more expensive COUNT query.
type Pagination struct {
	Offset       int
	Limit        int
	IncludeTotal bool
}

// QueryRequest retrieves documents of one resource type, optionally filtered
// by search terms.
type QueryRequest struct {
	ResourceInfo ResourceInfo
	Terms        []QueryTerm
	Pagination   Pagination
	TraceID      TraceID
}

// CascadeHandler is the caller-supplied policy invoked by UpdateByID when a
// referenced document's identity changes. Given the referenced document's
// body before and after the change and the referencing (parent) document, it
// returns the parent's updated body and whether the parent's own identity
// changed as a result, which makes the cascade recurse to the parent's
// referencers.
type CascadeHandler interface {
	Cascade(oldReferencedBody, newReferencedBody json.RawMessage, referenced ResourceInfo, parent Document) (newParentBody json.RawMessage, identityChanged bool, err error)
}
