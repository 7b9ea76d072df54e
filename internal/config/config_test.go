package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	require.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	require.Equal(t, 30*time.Minute, cfg.Session.ProfileTTL)
	require.Equal(t, "gs", cfg.Session.Prefix)
	require.Equal(t, time.Hour, cfg.Sweeper.Interval)
	require.True(t, cfg.Notify.Enabled)
	require.False(t, cfg.Notify.BlockWhenFull)
	require.Equal(t, 10, cfg.Throttle.MaxAttempts)
	require.Equal(t, 15*time.Minute, cfg.Throttle.Window)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gosession.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
redis:
  in_memory: true
session:
  prefix: "tasks"
  profile_ttl: 10m
log:
  level: debug
`), 0o600))

	t.Setenv("GOSESSION_HTTP_ADDR", ":9100")
	t.Setenv("GOSESSION_JWT_SECRET", testSecret)
	t.Setenv("GOSESSION_SWEEPER_INTERVAL", "5m")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9100", cfg.HTTP.Addr)
	require.True(t, cfg.Redis.InMemory)
	require.Equal(t, "tasks", cfg.Session.Prefix)
	require.Equal(t, 10*time.Minute, cfg.Session.ProfileTTL)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, testSecret, cfg.JWT.Secret)
	require.Equal(t, 5*time.Minute, cfg.Sweeper.Interval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestAuthorityHS256(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	_, err = cfg.Authority()
	require.ErrorContains(t, err, "jwt.secret")

	cfg.JWT.Secret = "hex:" + "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	out, err := cfg.Authority()
	require.NoError(t, err)
	require.Len(t, out.JWT.PrivateKey, 32)
	require.Equal(t, "gs", out.Session.RedisPrefix)
	require.Equal(t, 24*time.Hour, out.Session.SessionTTL)

	cfg.Session.Prefix = "bad:prefix"
	_, err = cfg.Authority()
	require.Error(t, err)
}

func TestAuthorityEd25519KeyFiles(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "priv.key")
	pubPath := filepath.Join(dir, "pub.key")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKeyFile = privPath
	cfg.JWT.PublicKeyFile = pubPath

	out, err := cfg.Authority()
	require.NoError(t, err)
	require.Equal(t, []byte(priv), out.JWT.PrivateKey)
	require.Equal(t, []byte(pub), out.JWT.PublicKey)

	cfg.JWT.PublicKeyFile = filepath.Join(dir, "missing")
	_, err = cfg.Authority()
	require.Error(t, err)
}
