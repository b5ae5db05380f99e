package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/models"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func validateBody(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestMeContract(t *testing.T) {
	schema := compileSchema(t, "me.schema.json")
	stack := newTestStack(t)
	user := stack.seedUser(t, "alice")
	problem := stack.seedProblem(t, "A+B", true, 5)
	stack.push(t, user, problem.ID, "abcdef1")

	resp := stack.do(t, http.MethodGet, "/user/me", nil, map[string]string{"Authorization": bearer(t, user.ID)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	validateBody(t, schema, resp)
}

func TestSubmissionContract(t *testing.T) {
	schema := compileSchema(t, "submission.schema.json")
	stack := newTestStack(t)
	user := stack.seedUser(t, "alice")
	problem := stack.seedProblem(t, "A+B", true, 5)
	pushed := stack.push(t, user, problem.ID, "abcdef1")
	headers := map[string]string{"Authorization": bearer(t, user.ID)}
	path := fmt.Sprintf("/submission/%d", pushed.Submission.ID)

	validateBody(t, schema, stack.do(t, http.MethodGet, path, nil, headers))

	resp := stack.do(t, http.MethodPut, path+"/judge", dto.JudgeUpdateRequest{
		Status: models.SubmissionStatusJudging,
		SubResults: []dto.JudgeSubResult{
			{Result: strPtr("AC"), Points: floatPtr(50), Runtime: floatPtr(0.01)},
			{SubResults: []dto.JudgeSubResult{{}}},
		},
	}, judgeHeaders())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	validateBody(t, schema, stack.do(t, http.MethodGet, path, nil, headers))
}
