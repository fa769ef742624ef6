package main

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cmd := newRootCommand(logger)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigratePrint(t *testing.T) {
	out, err := runCommand(t, "migrate", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS matches")
}

func TestSweepWithInMemoryStore(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DATABASE_URL", "")

	out, err := runCommand(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "checked=0 resolved=0 skipped=0 failed=0\n", out)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")

	out, err := runCommand(t, "token", "u-1", "--name", "Alice")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims["user_id"])
	assert.Equal(t, "Alice", claims["name"])

	_, err = runCommand(t, "token")
	assert.Error(t, err)
}
