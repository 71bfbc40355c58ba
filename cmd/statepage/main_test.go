package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/statepage/internal/config"
)

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "statepage dev (unknown)\n", out.String())
}

func TestCheckTemplates_bundled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Templates.Dir = "../../templates"

	names, err := checkTemplates(cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"login", "logout", "teststate", "login_patch", "teststate_patch"}, names)
}

func TestCheckTemplates_missingDir(t *testing.T) {
	cfg := config.Defaults()
	cfg.Templates.Dir = t.TempDir()

	_, err := checkTemplates(cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "teststate"), err.Error())
}
