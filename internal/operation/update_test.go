package operation

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/result"
)

func updateSchool(id uuid.UUID, schoolID, name string) model.UpdateRequest {
	return model.UpdateRequest{
		ResourceInfo: schoolResource(),
		DocumentInfo: schoolInfo(schoolID),
		DocumentUUID: id,
		Body:         schoolBody(schoolID, name),
		TraceID:      "test",
	}
}

func TestUpdateByID_NotExists(t *testing.T) {
	h := newHarness(t)

	res := h.update(updateSchool(uuid.New(), "100", "Lincoln High"))

	require.IsType(t, result.NotExists{}, res)
}

func TestUpdateByID_OverwritesBody(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.upsert(upsertSchool(id, "100", "Lincoln High"))

	res := h.update(updateSchool(id, "100", "Lincoln Senior High"))

	require.IsType(t, result.UpdateSuccess{}, res)
	assert.Equal(t, id, res.(result.UpdateSuccess).DocumentUUID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(h.get(id).(result.GetSuccess).Body, &body))
	assert.Equal(t, "Lincoln Senior High", body["nameOfInstitution"])
	assert.Equal(t, id.String(), body["id"])
}

func TestUpdateByID_ImmutableIdentityRejected(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.upsert(upsertSchool(id, "100", "Lincoln High"))

	// New body derives a different referential identity, and School does
	// not allow identity updates.
	res := h.update(updateSchool(id, "200", "Lincoln High"))

	require.IsType(t, result.ImmutableIdentity{}, res)
	assert.Contains(t, res.(result.ImmutableIdentity).Message, "School")

	var body map[string]any
	require.NoError(t, json.Unmarshal(h.get(id).(result.GetSuccess).Body, &body))
	assert.Equal(t, "100", body["schoolId"], "body must be untouched")
}

func TestUpdateByID_InvalidReferenceReported(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.upsert(upsertSchool(id, "100", "Lincoln High"))

	req := updateSchool(id, "100", "Lincoln High")
	req.DocumentInfo.DocumentReferences = []model.DocumentReference{
		{ResourceName: "LocalEducationAgency", ReferentialID: uuid.New()},
	}
	res := h.update(req)

	require.IsType(t, result.InvalidReferences{}, res)
	assert.Equal(t, []string{"LocalEducationAgency"}, res.(result.InvalidReferences).ResourceNames)
	assert.Equal(t, 0, h.countRows("references"), "rollback must undo the partial update")
}

func TestUpdateByID_ReplacesReferenceSet(t *testing.T) {
	h := newHarness(t)
	h.upsert(upsertSchool(uuid.New(), "100", "Lincoln High"))
	h.upsert(upsertSchool(uuid.New(), "200", "Washington High"))

	sessionID := uuid.New()
	session := model.UpsertRequest{
		ResourceInfo: model.ResourceInfo{
			ProjectName:     "ed-fi",
			ResourceName:    "Session",
			ResourceVersion: "5.0.0",
		},
		DocumentInfo: model.DocumentInfo{
			Identity:      model.DocumentIdentity{{Path: "$.sessionName", Value: "Fall 2025"}},
			ReferentialID: model.ReferentialIDFor("ed-fi", "Session", model.DocumentIdentity{{Path: "$.sessionName", Value: "Fall 2025"}}),
			DocumentReferences: []model.DocumentReference{
				{ResourceName: "School", ReferentialID: model.ReferentialIDFor("ed-fi", "School", schoolIdentity("100"))},
			},
		},
		DocumentUUID: sessionID,
		Body:         json.RawMessage(`{"sessionName": "Fall 2025", "schoolId": "100"}`),
		TraceID:      "test",
	}
	require.IsType(t, result.InsertSuccess{}, h.upsert(session))
	assert.Equal(t, 1, h.countRows("references"))

	// Repoint the session at the other school.
	update := model.UpdateRequest{
		ResourceInfo: session.ResourceInfo,
		DocumentInfo: session.DocumentInfo,
		DocumentUUID: sessionID,
		Body:         json.RawMessage(`{"sessionName": "Fall 2025", "schoolId": "200"}`),
		TraceID:      "test",
	}
	update.DocumentInfo.DocumentReferences = []model.DocumentReference{
		{ResourceName: "School", ReferentialID: model.ReferentialIDFor("ed-fi", "School", schoolIdentity("200"))},
	}
	require.IsType(t, result.UpdateSuccess{}, h.update(update))
	assert.Equal(t, 1, h.countRows("references"), "old edge replaced, not accumulated")
}

// renameCascade rewrites a parent body's schoolId field when a referenced
// school's identity changes. It never reports a transitive identity change.
type renameCascade struct {
	calls int
}

func (c *renameCascade) Cascade(oldBody, newBody json.RawMessage, referenced model.ResourceInfo, parent model.Document) (json.RawMessage, bool, error) {
	c.calls++
	var oldDoc, newDoc, parentDoc map[string]any
	if err := json.Unmarshal(oldBody, &oldDoc); err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(newBody, &newDoc); err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(parent.Body, &parentDoc); err != nil {
		return nil, false, err
	}
	if parentDoc["schoolId"] == oldDoc["schoolId"] {
		parentDoc["schoolId"] = newDoc["schoolId"]
	}
	body, err := json.Marshal(parentDoc)
	return body, false, err
}

func TestUpdateByID_IdentityChangeCascades(t *testing.T) {
	h := newHarness(t)

	schoolUUID := uuid.New()
	school := upsertSchool(schoolUUID, "100", "Lincoln High")
	school.ResourceInfo.AllowIdentityUpdates = true
	require.IsType(t, result.InsertSuccess{}, h.upsert(school))

	sessionUUID := uuid.New()
	session := model.UpsertRequest{
		ResourceInfo: model.ResourceInfo{
			ProjectName:     "ed-fi",
			ResourceName:    "Session",
			ResourceVersion: "5.0.0",
		},
		DocumentInfo: model.DocumentInfo{
			Identity:      model.DocumentIdentity{{Path: "$.sessionName", Value: "Fall 2025"}},
			ReferentialID: model.ReferentialIDFor("ed-fi", "Session", model.DocumentIdentity{{Path: "$.sessionName", Value: "Fall 2025"}}),
			DocumentReferences: []model.DocumentReference{
				{ResourceName: "School", ReferentialID: model.ReferentialIDFor("ed-fi", "School", schoolIdentity("100"))},
			},
		},
		DocumentUUID: sessionUUID,
		Body:         json.RawMessage(`{"sessionName": "Fall 2025", "schoolId": "100"}`),
		TraceID:      "test",
	}
	require.IsType(t, result.InsertSuccess{}, h.upsert(session))

	handler := &renameCascade{}
	rename := updateSchool(schoolUUID, "300", "Lincoln High")
	rename.ResourceInfo.AllowIdentityUpdates = true
	rename.CascadeHandler = handler
	res := h.update(rename)

	require.IsType(t, result.UpdateSuccess{}, res)
	assert.Equal(t, 1, handler.calls)

	// The session body was rewritten inside the same transaction.
	var sessionBody map[string]any
	got := h.get(sessionUUID).(result.GetSuccess)
	require.NoError(t, json.Unmarshal(got.Body, &sessionBody))
	assert.Equal(t, "300", sessionBody["schoolId"])

	// The alias now resolves under the new identity, so a reference to the
	// renamed school validates.
	ref := model.UpsertRequest{
		ResourceInfo: model.ResourceInfo{
			ProjectName:     "ed-fi",
			ResourceName:    "Session",
			ResourceVersion: "5.0.0",
		},
		DocumentInfo: model.DocumentInfo{
			Identity:      model.DocumentIdentity{{Path: "$.sessionName", Value: "Spring 2026"}},
			ReferentialID: model.ReferentialIDFor("ed-fi", "Session", model.DocumentIdentity{{Path: "$.sessionName", Value: "Spring 2026"}}),
			DocumentReferences: []model.DocumentReference{
				{ResourceName: "School", ReferentialID: model.ReferentialIDFor("ed-fi", "School", schoolIdentity("300"))},
			},
		},
		DocumentUUID: uuid.New(),
		Body:         json.RawMessage(`{"sessionName": "Spring 2026", "schoolId": "300"}`),
		TraceID:      "test",
	}
	require.IsType(t, result.InsertSuccess{}, h.upsert(ref))

	// And the old identity no longer resolves anywhere.
	stale := model.UpsertRequest{
		ResourceInfo: ref.ResourceInfo,
		DocumentInfo: model.DocumentInfo{
			Identity:      model.DocumentIdentity{{Path: "$.sessionName", Value: "Summer 2026"}},
			ReferentialID: model.ReferentialIDFor("ed-fi", "Session", model.DocumentIdentity{{Path: "$.sessionName", Value: "Summer 2026"}}),
			DocumentReferences: []model.DocumentReference{
				{ResourceName: "School", ReferentialID: model.ReferentialIDFor("ed-fi", "School", schoolIdentity("100"))},
			},
		},
		DocumentUUID: uuid.New(),
		Body:         json.RawMessage(`{"sessionName": "Summer 2026", "schoolId": "100"}`),
		TraceID:      "test",
	}
	require.IsType(t, result.InvalidReferences{}, h.upsert(stale))
}

func TestUpdateByID_IdentityChangeWithoutHandlerFails(t *testing.T) {
	h := newHarness(t)

	schoolUUID := uuid.New()
	school := upsertSchool(schoolUUID, "100", "Lincoln High")
	school.ResourceInfo.AllowIdentityUpdates = true
	h.upsert(school)

	rename := updateSchool(schoolUUID, "300", "Lincoln High")
	rename.ResourceInfo.AllowIdentityUpdates = true
	res := h.update(rename)

	require.IsType(t, result.UnknownFailure{}, res)
}

// loopingCascade claims every parent's identity changed too, forcing the
// walk to recurse until the cycle guard trips.
type loopingCascade struct{}

func (loopingCascade) Cascade(oldBody, newBody json.RawMessage, referenced model.ResourceInfo, parent model.Document) (json.RawMessage, bool, error) {
	return parent.Body, true, nil
}

func TestUpdateByID_CascadeCycleDetected(t *testing.T) {
	h := newHarness(t)

	// Two documents that reference each other. The graph is supposed to be
	// kept acyclic upstream; build the cycle through the normal operations
	// to prove the guard holds if that ever fails.
	aInfo := schoolInfo("1")
	bInfo := schoolInfo("2")
	aUUID, bUUID := uuid.New(), uuid.New()

	a := upsertSchool(aUUID, "1", "A")
	a.ResourceInfo.AllowIdentityUpdates = true
	require.IsType(t, result.InsertSuccess{}, h.upsert(a))

	b := upsertSchool(bUUID, "2", "B")
	b.ResourceInfo.AllowIdentityUpdates = true
	b.DocumentInfo.DocumentReferences = []model.DocumentReference{
		{ResourceName: "School", ReferentialID: aInfo.ReferentialID},
	}
	require.IsType(t, result.InsertSuccess{}, h.upsert(b))

	aBack := updateSchool(aUUID, "1", "A")
	aBack.ResourceInfo.AllowIdentityUpdates = true
	aBack.DocumentInfo.DocumentReferences = []model.DocumentReference{
		{ResourceName: "School", ReferentialID: bInfo.ReferentialID},
	}
	require.IsType(t, result.UpdateSuccess{}, h.update(aBack))

	// The rename keeps A's outgoing edge to B; the reference set is
	// re-derived on every update, so dropping it here would break the cycle
	// before the walk starts.
	rename := updateSchool(aUUID, "9", "A")
	rename.ResourceInfo.AllowIdentityUpdates = true
	rename.DocumentInfo.DocumentReferences = []model.DocumentReference{
		{ResourceName: "School", ReferentialID: bInfo.ReferentialID},
	}
	rename.CascadeHandler = loopingCascade{}
	res := h.update(rename)

	require.IsType(t, result.UnknownFailure{}, res)
	assert.Contains(t, res.(result.UnknownFailure).Message, "cycle")
}

// diamondCascade records which parents it rewrote and reports a transitive
// identity change only for Session parents.
type diamondCascade struct {
	rewrites []string
}

func (c *diamondCascade) Cascade(oldBody, newBody json.RawMessage, referenced model.ResourceInfo, parent model.Document) (json.RawMessage, bool, error) {
	c.rewrites = append(c.rewrites, parent.ResourceName)
	return parent.Body, parent.ResourceName == "Session", nil
}

func TestUpdateByID_CascadeHandlesDiamond(t *testing.T) {
	h := newHarness(t)

	// School is referenced by both a Session and a Section, and the Section
	// also references the Session: two acyclic paths from the School to the
	// Section. The walk must rewrite the Section once per path rather than
	// mistake the second arrival for a cycle.
	schoolUUID := uuid.New()
	school := upsertSchool(schoolUUID, "100", "Lincoln High")
	school.ResourceInfo.AllowIdentityUpdates = true
	require.IsType(t, result.InsertSuccess{}, h.upsert(school))

	sessionIdentity := model.DocumentIdentity{{Path: "$.sessionName", Value: "Fall 2025"}}
	session := model.UpsertRequest{
		ResourceInfo: model.ResourceInfo{
			ProjectName:     "ed-fi",
			ResourceName:    "Session",
			ResourceVersion: "5.0.0",
		},
		DocumentInfo: model.DocumentInfo{
			Identity:      sessionIdentity,
			ReferentialID: model.ReferentialIDFor("ed-fi", "Session", sessionIdentity),
			DocumentReferences: []model.DocumentReference{
				{ResourceName: "School", ReferentialID: model.ReferentialIDFor("ed-fi", "School", schoolIdentity("100"))},
			},
		},
		DocumentUUID: uuid.New(),
		Body:         json.RawMessage(`{"sessionName": "Fall 2025", "schoolId": "100"}`),
		TraceID:      "test",
	}
	require.IsType(t, result.InsertSuccess{}, h.upsert(session))

	sectionIdentity := model.DocumentIdentity{{Path: "$.sectionIdentifier", Value: "ALG-1"}}
	section := model.UpsertRequest{
		ResourceInfo: model.ResourceInfo{
			ProjectName:     "ed-fi",
			ResourceName:    "Section",
			ResourceVersion: "5.0.0",
		},
		DocumentInfo: model.DocumentInfo{
			Identity:      sectionIdentity,
			ReferentialID: model.ReferentialIDFor("ed-fi", "Section", sectionIdentity),
			DocumentReferences: []model.DocumentReference{
				{ResourceName: "School", ReferentialID: model.ReferentialIDFor("ed-fi", "School", schoolIdentity("100"))},
				{ResourceName: "Session", ReferentialID: model.ReferentialIDFor("ed-fi", "Session", sessionIdentity)},
			},
		},
		DocumentUUID: uuid.New(),
		Body:         json.RawMessage(`{"sectionIdentifier": "ALG-1", "schoolId": "100", "sessionName": "Fall 2025"}`),
		TraceID:      "test",
	}
	require.IsType(t, result.InsertSuccess{}, h.upsert(section))

	handler := &diamondCascade{}
	rename := updateSchool(schoolUUID, "900", "Lincoln High")
	rename.ResourceInfo.AllowIdentityUpdates = true
	rename.CascadeHandler = handler
	res := h.update(rename)

	require.IsType(t, result.UpdateSuccess{}, res)
	// Referencers come back ordered by resource name, so the first pass
	// rewrites Section then Session, and the Session recursion reaches the
	// Section a second time.
	assert.Equal(t, []string{"Section", "Session", "Section"}, handler.rewrites)
}

func TestUpdateByID_BodyKeepsStampedID(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	h.upsert(upsertSchool(id, "100", "Lincoln High"))

	// The request body arrives without an id field; storage adds it back.
	require.IsType(t, result.UpdateSuccess{}, h.update(updateSchool(id, "100", "Renamed")))

	var body map[string]any
	require.NoError(t, json.Unmarshal(h.get(id).(result.GetSuccess).Body, &body))
	assert.Equal(t, id.String(), body["id"])
}

func TestUpdateByID_SeparateDocumentsKeepDistinctIdentities(t *testing.T) {
	h := newHarness(t)

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		schoolID := fmt.Sprintf("%d", 100+i)
		require.IsType(t, result.InsertSuccess{}, h.upsert(upsertSchool(ids[i], schoolID, "School "+schoolID)))
	}
	assert.Equal(t, 3, h.countRows("documents"))
	assert.Equal(t, 3, h.countRows("aliases"))
}
