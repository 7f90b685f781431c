package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// StampID writes the document uuid into the body's "id" field so a retrieved
// document is self-describing. The body must be a JSON object.
func StampID(body json.RawMessage, id uuid.UUID) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("stamp id: body is not a JSON object: %w", err)
	}
	idJSON, err := json.Marshal(id.String())
	if err != nil {
		return nil, fmt.Errorf("stamp id: %w", err)
	}
	obj["id"] = idJSON
	stamped, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("stamp id: %w", err)
	}
	return stamped, nil
}

// ETagOf extracts the body's "_etag" field. Returns "" when the field is
// absent or not a string; an unset etag never equals another etag.
func ETagOf(body json.RawMessage) string {
	var obj struct {
		ETag string `json:"_etag"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	return obj.ETag
}
