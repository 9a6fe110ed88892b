package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandlerReportsBuild(t *testing.T) {
	name, version, commit, date := AppName, AppVersion, AppCommit, AppBuildDate
	t.Cleanup(func() { AppName, AppVersion, AppCommit, AppBuildDate = name, version, commit, date })

	SetVersionInfo("0.4.0", "e1f2a3b", "2025-03-01T12:00:00Z")
	SetAppName("")
	assert.Equal(t, "riftlens", AppName, "empty name keeps the default")

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "riftlens", resp.App.Name)
	assert.Equal(t, "0.4.0", resp.App.Version)
	assert.Equal(t, "e1f2a3b", resp.App.Commit)
	assert.Equal(t, runtime.Version(), resp.App.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, resp.Runtime.Platform)
	assert.NotEmpty(t, resp.Dependencies.Gofulmen)
	assert.NotEmpty(t, resp.Dependencies.Crucible)
}
