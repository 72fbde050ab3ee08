package cmd

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

func TestDoctor_Healthy(t *testing.T) {
	// Given: a valid fixture and a writable data directory
	fixture := setupCLI(t)

	// When: running doctor
	out, err := runCLI(t, "--content", fixture, "doctor")

	// Then: every check is listed and none failed
	require.NoError(t, err, out)
	assert.Contains(t, out, "[PASS] search_backend: bleve")
	assert.Contains(t, out, "[PASS] content_fixture: 1 courses, 1 libraries")
	assert.NotContains(t, out, "[FAIL]")
}

func TestDoctor_JSON(t *testing.T) {
	fixture := setupCLI(t)

	out, err := runCLI(t, "--content", fixture, "doctor", "--json")

	require.NoError(t, err, out)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEqual(t, "failed", report.Status)
	assert.NotEmpty(t, report.Checks)
}

func TestDoctor_BrokenFixtureFails(t *testing.T) {
	setupCLI(t)
	broken := t.TempDir() + "/broken.yaml"
	require.NoError(t, os.WriteFile(broken, []byte("courses:\n  - id: nope\n"), 0o644))

	out, err := runCLI(t, "--content", broken, "doctor")

	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
	assert.Contains(t, out, "[FAIL] content_fixture")
	assert.Contains(t, out, "Status: FAILED")
}
