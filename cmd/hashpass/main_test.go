package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/escrow-bot/internal/features/admin"
)

func TestRunWithFlag(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-q", "--password", "secret"}, strings.NewReader(""), &out))

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, admin.VerifyPassword("secret", hash))
}

func TestRunFromStdin(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(nil, strings.NewReader("from-stdin\n"), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, admin.VerifyPassword("from-stdin", lines[1]))
}

func TestRunRejectsEmptyPassword(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run(nil, strings.NewReader("   \n"), &out))
	assert.Empty(t, out.String())
}
