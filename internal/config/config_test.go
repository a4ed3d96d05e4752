package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse(newFlagSet(), nil, envOf(map[string]string{"JWT_KEY": "k"}))
	require.NoError(t, err)
	require.Equal(t, ":8080", c.HTTPAddr)
	require.Equal(t, ":9090", c.OpsAddr)
	require.Equal(t, time.Hour, c.AccessTTL)
	require.Equal(t, 30*time.Second, c.LeaderboardTTL)
	require.Empty(t, c.RedisURL)
	require.Empty(t, c.AMQPURL)
	require.Nil(t, c.CORSOrigins)
	require.False(t, c.Dev)
	require.Equal(t, 5, c.LoginMaxFails)
}

func TestParse_EnvThenFlags(t *testing.T) {
	env := envOf(map[string]string{
		"JWT_KEY":         "from-env",
		"HTTP_ADDR":       ":7000",
		"LEADERBOARD_TTL": "1m",
		"CORS_ORIGINS":    "https://a.example, ,https://b.example",
		"DEV":             "true",
		"REDIS_URL":       "redis://localhost:6379/0",
	})
	c, err := Parse(newFlagSet(), []string{"-http-addr", ":7100", "-access-ttl", "5m"}, env)
	require.NoError(t, err)
	require.Equal(t, ":7100", c.HTTPAddr)
	require.Equal(t, "from-env", c.JWTKey)
	require.Equal(t, 5*time.Minute, c.AccessTTL)
	require.Equal(t, time.Minute, c.LeaderboardTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	require.True(t, c.Dev)
	require.Equal(t, "redis://localhost:6379/0", c.RedisURL)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(newFlagSet(), nil, envOf(nil))
	require.ErrorContains(t, err, "jwt key is required")

	_, err = Parse(newFlagSet(), nil, envOf(map[string]string{"JWT_KEY": "k", "ACCESS_TTL": "soon"}))
	require.ErrorContains(t, err, "ACCESS_TTL")

	_, err = Parse(newFlagSet(), []string{"-leaderboard-ttl", "0s"}, envOf(map[string]string{"JWT_KEY": "k"}))
	require.ErrorContains(t, err, "leaderboard ttl must be positive")

	_, err = Parse(newFlagSet(), []string{"-no-such-flag"}, envOf(map[string]string{"JWT_KEY": "k"}))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CG_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("CG_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CG_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "loaded", os.Getenv("CG_TEST_DOTENV"))
}
