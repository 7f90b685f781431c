package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResources = `
projectName: ed-fi
resourceVersion: "5.0.0"
resources:
  - name: School
    identityPaths: ["$.schoolId"]
  - name: Session
    identityPaths: ["$.schoolReference.schoolId", "$.sessionName"]
    documentReferences:
      - resourceName: School
        identityMap:
          "$.schoolId": "$.schoolReference.schoolId"
`

// env is a CLI test fixture: a database path and resource definitions file
// shared by every command run through it.
type env struct {
	t         *testing.T
	db        string
	resources string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	resources := filepath.Join(dir, "resources.yaml")
	require.NoError(t, os.WriteFile(resources, []byte(testResources), 0o644))
	return &env{
		t:         t,
		db:        filepath.Join(dir, "docstore.db"),
		resources: resources,
	}
}

// run executes one CLI invocation and returns its stdout.
func (e *env) run(args ...string) (string, error) {
	e.t.Helper()
	full := append([]string{"--db", e.db, "--resources", e.resources, "--format", "json"}, args...)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(full)
	err := cmd.Execute()
	return out.String(), err
}

func (e *env) decode(out string) CLIResponse {
	e.t.Helper()
	var resp CLIResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func dataField(t *testing.T, resp CLIResponse, key string) string {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	value, ok := data[key].(string)
	require.True(t, ok, "field %s missing", key)
	return value
}

func TestMigrate_CreatesDatabase(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("migrate")
	require.NoError(t, err)

	resp := e.decode(out)
	assert.Equal(t, "ok", resp.Status)
	_, statErr := os.Stat(e.db)
	assert.NoError(t, statErr)
}

func TestUpsertGetRoundTrip(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("upsert", "School", "--body", `{"schoolId": 100, "nameOfInstitution": "Lincoln High"}`)
	require.NoError(t, err)
	resp := e.decode(out)
	require.Equal(t, "ok", resp.Status)
	assert.Equal(t, "inserted", dataField(t, resp, "status"))
	id := dataField(t, resp, "id")

	out, err = e.run("get", "School", id)
	require.NoError(t, err)
	resp = e.decode(out)
	require.Equal(t, "ok", resp.Status)

	doc, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Lincoln High", doc["nameOfInstitution"])
	assert.Equal(t, id, doc["id"])
}

func TestUpsert_SecondWriteUpdates(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("upsert", "School", "--body", `{"schoolId": 100, "nameOfInstitution": "Lincoln High"}`)
	require.NoError(t, err)
	first := dataField(t, e.decode(out), "id")

	out, err = e.run("upsert", "School", "--body", `{"schoolId": 100, "nameOfInstitution": "Renamed"}`)
	require.NoError(t, err)
	resp := e.decode(out)
	assert.Equal(t, "updated", dataField(t, resp, "status"))
	assert.Equal(t, first, dataField(t, resp, "id"))
}

func TestUpsert_InvalidReferenceFails(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("upsert", "Session", "--body",
		`{"schoolReference": {"schoolId": 999}, "sessionName": "Fall 2025"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := e.decode(out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_references", resp.Error.Code)
}

func TestUpsert_BodyFromFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "school.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schoolId": 5}`), 0o644))

	out, err := e.run("upsert", "School", path)
	require.NoError(t, err)
	assert.Equal(t, "inserted", dataField(t, e.decode(out), "status"))
}

func TestUpsert_MissingBody(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("upsert", "School")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUpsert_UnknownResource(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("upsert", "Nope", "--body", `{}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGet_NotFound(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("migrate")
	require.NoError(t, err)

	out, err := e.run("get", "School", "6c9398a1-3c42-45f0-9a29-9b178df36eb9")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "not_found", e.decode(out).Error.Code)
}

func TestGet_InvalidUUID(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("get", "School", "not-a-uuid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDelete_RoundTrip(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("upsert", "School", "--body", `{"schoolId": 100}`)
	require.NoError(t, err)
	id := dataField(t, e.decode(out), "id")

	out, err = e.run("delete", "School", id)
	require.NoError(t, err)
	assert.Equal(t, "deleted", dataField(t, e.decode(out), "status"))

	_, err = e.run("get", "School", id)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestQuery_FilterAndTotal(t *testing.T) {
	e := newEnv(t)

	for _, body := range []string{
		`{"schoolId": 1, "nameOfInstitution": "Lincoln High"}`,
		`{"schoolId": 2, "nameOfInstitution": "Washington High"}`,
	} {
		_, err := e.run("upsert", "School", "--body", body)
		require.NoError(t, err)
	}

	out, err := e.run("query", "School", "--filter", "$.nameOfInstitution=Lincoln High", "--total")
	require.NoError(t, err)

	resp := e.decode(out)
	require.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	docs, ok := data["documents"].([]interface{})
	require.True(t, ok)
	assert.Len(t, docs, 1)
	assert.EqualValues(t, 1, data["total"])
}

func TestQuery_BadFilter(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("query", "School", "--filter", "nonsense")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_InvalidFlagValues(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("--format", "xml", "migrate")
	assert.Error(t, err)

	_, err = e.run("--driver", "oracle", "migrate")
	assert.Error(t, err)
}

func TestExitError(t *testing.T) {
	base := NewExitError(ExitCommandError, "nope")
	assert.Equal(t, ExitCommandError, GetExitCode(base))
	assert.Equal(t, "nope", base.Error())

	wrapped := WrapExitError(ExitFailure, "outer", base)
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "outer")
	assert.ErrorIs(t, wrapped, base)
}
