package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_SemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got %s", Version)
}

func TestString(t *testing.T) {
	// When: formatting the build
	str := String()

	// Then: program, version and commit are present
	assert.Contains(t, str, "postsearch")
	assert.Contains(t, str, Version)
	assert.Contains(t, str, "commit")
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo(t *testing.T) {
	// When: reading structured info
	info := GetInfo()

	// Then: it mirrors the package variables and runtime
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)

	data, err := json.Marshal(info)
	require.NoError(t, err)
	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))
	for _, k := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, parsed, k)
	}
}
