package operation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/result"
	"github.com/roach88/docstore/internal/sqlaction"
	"github.com/roach88/docstore/internal/store"
)

// harness is an engine over a fresh in-memory database, plus helpers that
// run one operation per committed transaction the way a real caller does.
type harness struct {
	t      *testing.T
	store  *store.Store
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return &harness{
		t:      t,
		store:  s,
		engine: New(sqlaction.New(s.Dialect()), zap.NewNop()),
	}
}

// inTx runs fn in a transaction and commits when fn asks for it.
func (h *harness) inTx(fn func(tx *sql.Tx) bool) {
	h.t.Helper()
	tx, err := h.store.Begin(context.Background())
	require.NoError(h.t, err)
	if fn(tx) {
		require.NoError(h.t, tx.Commit())
	} else {
		require.NoError(h.t, tx.Rollback())
	}
}

func (h *harness) upsert(req model.UpsertRequest) result.UpsertResult {
	h.t.Helper()
	var res result.UpsertResult
	h.inTx(func(tx *sql.Tx) bool {
		res = h.engine.Upsert(context.Background(), tx, req)
		switch res.(type) {
		case result.InsertSuccess, result.UpdateSuccess:
			return true
		}
		return false
	})
	return res
}

func (h *harness) update(req model.UpdateRequest) result.UpdateResult {
	h.t.Helper()
	var res result.UpdateResult
	h.inTx(func(tx *sql.Tx) bool {
		res = h.engine.UpdateByID(context.Background(), tx, req)
		_, ok := res.(result.UpdateSuccess)
		return ok
	})
	return res
}

func (h *harness) delete(req model.DeleteRequest) result.DeleteResult {
	h.t.Helper()
	var res result.DeleteResult
	h.inTx(func(tx *sql.Tx) bool {
		res = h.engine.DeleteByID(context.Background(), tx, req)
		_, ok := res.(result.DeleteSuccess)
		return ok
	})
	return res
}

func (h *harness) get(id uuid.UUID) result.GetResult {
	h.t.Helper()
	var res result.GetResult
	h.inTx(func(tx *sql.Tx) bool {
		res = h.engine.GetByID(context.Background(), tx, model.GetRequest{
			ResourceInfo: schoolResource(),
			DocumentUUID: id,
			TraceID:      "test",
		})
		return false
	})
	return res
}

func (h *harness) query(req model.QueryRequest) result.QueryResult {
	h.t.Helper()
	var res result.QueryResult
	h.inTx(func(tx *sql.Tx) bool {
		res = h.engine.Query(context.Background(), tx, req)
		return false
	})
	return res
}

func (h *harness) countRows(table string) int {
	h.t.Helper()
	var n int
	require.NoError(h.t, h.store.DB().QueryRow(
		fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n))
	return n
}

func schoolResource() model.ResourceInfo {
	return model.ResourceInfo{
		ProjectName:     "ed-fi",
		ResourceName:    "School",
		ResourceVersion: "5.0.0",
	}
}

func schoolIdentity(schoolID string) model.DocumentIdentity {
	return model.DocumentIdentity{{Path: "$.schoolId", Value: schoolID}}
}

// schoolInfo derives the referential id of a School from its schoolId.
func schoolInfo(schoolID string) model.DocumentInfo {
	identity := schoolIdentity(schoolID)
	return model.DocumentInfo{
		Identity:      identity,
		ReferentialID: model.ReferentialIDFor("ed-fi", "School", identity),
	}
}

func schoolBody(schoolID, name string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"schoolId": %q, "nameOfInstitution": %q}`, schoolID, name))
}

func upsertSchool(id uuid.UUID, schoolID, name string) model.UpsertRequest {
	return model.UpsertRequest{
		ResourceInfo: schoolResource(),
		DocumentInfo: schoolInfo(schoolID),
		DocumentUUID: id,
		Body:         schoolBody(schoolID, name),
		TraceID:      "test",
	}
}
