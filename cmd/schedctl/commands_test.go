package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedimand/atendimento-acessivel/internal/scheduling"
)

func execute(t *testing.T, stdin string, args ...string) []byte {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.Bytes()
}

func TestTriageCommand(t *testing.T) {
	out := execute(t, `{"sbp": 85}`, "triage")

	var res scheduling.TriageResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Equal(t, 5, res.Level)
}

func TestOptimizeCommandIsReproducible(t *testing.T) {
	batch := `{"patients":[
		{"specialty":"cardiology","preferred_slot":"09-11","urgency":4},
		{"specialty":"psychiatry","consultation_type":"online","accessibility":["sign_language"]},
		{"specialty":"dermatology","preferred_period":"afternoon"}
	]}`

	first := execute(t, batch, "optimize", "--seed", "7", "--restarts", "3")
	second := execute(t, batch, "optimize", "--seed", "7", "--restarts", "3")

	var a, b scheduling.OptimizeResult
	require.NoError(t, json.Unmarshal(first, &a))
	require.NoError(t, json.Unmarshal(second, &b))

	require.True(t, a.Optimized)
	assert.Len(t, a.Assignments, 3)
	assert.Equal(t, a.Cost, b.Cost)
	assert.Equal(t, a.Assignments, b.Assignments)
	require.NotNil(t, a.Parameters)
	assert.Equal(t, 3, a.Parameters.Restarts)
}

func TestCatalogCommand(t *testing.T) {
	out := execute(t, "", "catalog")

	var view catalogView
	require.NoError(t, json.Unmarshal(out, &view))
	assert.Len(t, view.Slots, 7)
	assert.Contains(t, view.Specialties, "cardiology")
	assert.NotEmpty(t, view.Practitioners)
}
