package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMalformedTokenOverrideAbortsBeforeSetup(t *testing.T) {
	t.Setenv("COOKIE_API_TOKEN", "")
	flagTokenConfig = `{"remain_quota":`
	defer func() { flagTokenConfig = "" }()

	err := runCreate(createCmd, nil)
	require.Error(t, err)

	// With no account source configured, setup would fail with its own
	// "no account source" error; seeing the parse error instead proves the
	// override is validated first.
	assert.Contains(t, err.Error(), "parse token config override")
}
