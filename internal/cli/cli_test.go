package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dqsurvey/internal/cli"
	"dqsurvey/internal/sections"
	"dqsurvey/internal/shared/config"
)

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	sections.NewHandler(sections.NewService(sections.NewMemoryRepo())).RegisterRoutes(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, apiURL string) config.ClientConfig {
	t.Helper()
	return config.ClientConfig{
		APIURL:       apiURL,
		HTTPTimeout:  2 * time.Second,
		HTTPRetries:  0,
		Scope:        "cli",
		StoreBackend: "file",
		StoreDir:     t.TempDir(),
		ExportStore:  "local",
		ExportDir:    t.TempDir(),
		LogLevel:     "error",
	}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, cfg config.ClientConfig, args ...string) result {
	t.Helper()
	cmd := cli.NewRootCmdForTest(cfg)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	code := cli.Run(context.Background(), cmd)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func mustRun(t *testing.T, cfg config.ClientConfig, args ...string) string {
	t.Helper()
	res := run(t, cfg, args...)
	require.Equal(t, 0, res.code, "%v: %s", args, res.stderr)
	return res.stdout
}

func TestPrimarySurveyEndToEnd(t *testing.T) {
	srv := newService(t)
	cfg := testConfig(t, srv.URL+"/api/v1")

	out := mustRun(t, cfg, "init")
	assert.Contains(t, out, `Survey "cli" ready`)
	assert.Contains(t, out, "section4")

	mustRun(t, cfg, "set", "datasetName", "Soil moisture")
	mustRun(t, cfg, "set", "datasetProvider", "JRC")
	mustRun(t, cfg, "set", "evaluatorName", "M. Ito")
	mustRun(t, cfg, "set", "evaluationType", "general-quality")
	mustRun(t, cfg, "set", "sourceCredibility", "4")

	out = mustRun(t, cfg, "submit", "1")
	assert.Contains(t, out, "section1 saved with id 1")
	assert.Contains(t, out, "Next: section2")

	mustRun(t, cfg, "set", "dataType", "remote-sensing")
	mustRun(t, cfg, "set", "processingLevel", "primary")
	mustRun(t, cfg, "set", "pixelResolution", "10")
	out = mustRun(t, cfg, "submit", "section2")
	assert.Contains(t, out, "Next: section3")

	assert.Equal(t, "section5\n", mustRun(t, cfg, "next", "section3"))
	assert.Equal(t, "section3\n", mustRun(t, cfg, "prev", "section5"))

	mustRun(t, cfg, "set", "designSpatialAccuracy", "2")
	mustRun(t, cfg, "submit", "section3")
	mustRun(t, cfg, "set", "accessibility", "3")
	out = mustRun(t, cfg, "submit", "section5")
	assert.Contains(t, out, "All sections submitted")

	var scores struct {
		Sections map[string]string `json:"sections"`
		Overall  string            `json:"overall"`
	}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, cfg, "scores", "--json")), &scores))
	assert.Equal(t, "4.00", scores.Sections["section1"])
	assert.Equal(t, "N/A", scores.Sections["section4"])
	assert.NotEqual(t, "N/A", scores.Overall)

	out = mustRun(t, cfg, "summary")
	assert.Contains(t, out, "Soil moisture")
	assert.Contains(t, out, "(skipped)")

	out = mustRun(t, cfg, "summary", "--markdown")
	assert.Contains(t, out, "Soil moisture")
	assert.Contains(t, out, "Not part of this evaluation")

	out = mustRun(t, cfg, "export", "--format", "csv")
	assert.Contains(t, out, "Survey exported to exports/cli/")
	files, err := filepath.Glob(filepath.Join(cfg.ExportDir, "exports", "cli", "*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	res := run(t, cfg, "show", "section2")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Please complete section1 first.")
	assert.Contains(t, res.stderr, "continue with: surveyctl show section1")
}

func TestSetWithoutValueClearsAnswer(t *testing.T) {
	srv := newService(t)
	cfg := testConfig(t, srv.URL+"/api/v1")

	mustRun(t, cfg, "set", "datasetName", "Roads")
	out := mustRun(t, cfg, "show")
	assert.Contains(t, out, "Roads")
	assert.Contains(t, out, "[datasetName]")

	mustRun(t, cfg, "set", "datasetName")
	out = mustRun(t, cfg, "show", "1")
	assert.NotContains(t, out, "Roads")
}

func TestLocalValidationFailureIsReported(t *testing.T) {
	srv := newService(t)
	cfg := testConfig(t, srv.URL+"/api/v1")

	res := run(t, cfg, "set", "evaluationType", "bogus")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "must be one of")

	res = run(t, cfg, "submit", "section1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "datasetName")
}

func TestUnreachableServiceIsReported(t *testing.T) {
	srv := newService(t)
	url := srv.URL + "/api/v1"
	srv.Close()
	cfg := testConfig(t, url)

	mustRun(t, cfg, "set", "datasetName", "Soil moisture")
	mustRun(t, cfg, "set", "datasetProvider", "JRC")
	mustRun(t, cfg, "set", "evaluatorName", "M. Ito")
	mustRun(t, cfg, "set", "evaluationType", "general-quality")

	res := run(t, cfg, "submit", "section1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Could not reach server. Please try again.")

	out := mustRun(t, cfg, "show", "section1")
	assert.Contains(t, out, "Soil moisture", "local answers survive a failed submission")
}

func TestPrevOfFirstSectionFails(t *testing.T) {
	cfg := testConfig(t, "http://localhost:1/api/v1")
	res := run(t, cfg, "prev", "section1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "section1 is the first section")
}

func TestScopeFlagIsolatesSurveys(t *testing.T) {
	srv := newService(t)
	cfg := testConfig(t, srv.URL+"/api/v1")

	mustRun(t, cfg, "set", "datasetName", "Roads")
	out := mustRun(t, cfg, "show", "--scope", "other")
	assert.NotContains(t, out, "Roads")

	mustRun(t, cfg, "reset")
	out = mustRun(t, cfg, "show")
	assert.NotContains(t, out, "Roads")
}
