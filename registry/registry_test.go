package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, filePath string) *Registry {
	t.Helper()
	r, err := New(Config{LocalSwarmName: "home", LocalBaseURL: "http://home.local", FilePath: filePath})
	require.NoError(t, err)
	return r
}

func TestRegisterNonVolatileLiteralTokenBecomesEnvRef(t *testing.T) {
	dir := t.TempDir()
	r := newTestRegistry(t, filepath.Join(dir, "registry.json"))

	err := r.Register("peer-one", "http://peer-one:9000", "http://peer-one:9000/health", "literal-secret", false, nil)
	require.NoError(t, err)

	ep, ok := r.Get("peer-one")
	require.True(t, ok)
	assert.Equal(t, "${SWARM_AUTH_TOKEN_PEER-ONE}", ep.AuthTokenRef)
	assert.False(t, ep.Volatile)
}

func TestRegisterVolatileKeepsLiteralToken(t *testing.T) {
	r := newTestRegistry(t, "")
	err := r.Register("peer-two", "http://peer-two:9000", "", "literal-secret", true, nil)
	require.NoError(t, err)

	ep, ok := r.Get("peer-two")
	require.True(t, ok)
	assert.Equal(t, "literal-secret", ep.AuthTokenRef)
	assert.True(t, ep.Volatile)
}

func TestRegisterAlreadyEnvRefIsNotDoubleWrapped(t *testing.T) {
	r := newTestRegistry(t, "")
	err := r.Register("peer-three", "http://peer-three:9000", "", "${SWARM_AUTH_TOKEN_PEER_THREE}", false, nil)
	require.NoError(t, err)

	ep, _ := r.Get("peer-three")
	assert.Equal(t, "${SWARM_AUTH_TOKEN_PEER_THREE}", ep.AuthTokenRef)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "registry.json")

	r := newTestRegistry(t, path)
	require.NoError(t, r.Register("peer-one", "http://peer-one:9000", "http://peer-one:9000/health", "", false, map[string]string{"region": "eu"}))
	require.NoError(t, r.Register("peer-volatile", "http://volatile:9000", "", "", true, nil))

	_, err := os.Stat(path)
	require.NoError(t, err, "Register on a non-volatile peer should have saved")

	r2 := newTestRegistry(t, path)
	got, ok := r2.Get("peer-one")
	require.True(t, ok)
	assert.Equal(t, "http://peer-one:9000", got.BaseURL)
	assert.Equal(t, "eu", got.Metadata["region"])
	assert.False(t, got.Volatile)

	_, ok = r2.Get("peer-volatile")
	assert.False(t, ok, "volatile entries are never persisted")
}

func TestResolveTokenFromEnv(t *testing.T) {
	r := newTestRegistry(t, "")
	require.NoError(t, r.Register("peer-env", "http://peer-env:9000", "", "literal", false, nil))

	_, ok := r.ResolveToken("peer-env")
	assert.False(t, ok, "env var is not set yet")

	t.Setenv("SWARM_AUTH_TOKEN_PEER-ENV", "resolved-token")
	token, ok := r.ResolveToken("peer-env")
	require.True(t, ok)
	assert.Equal(t, "resolved-token", token)
}

func TestResolveTokenNoTokenConfiguredIsNotAnError(t *testing.T) {
	r := newTestRegistry(t, "")
	require.NoError(t, r.Register("peer-no-token", "http://x:9000", "", "", false, nil))

	token, ok := r.ResolveToken("peer-no-token")
	assert.True(t, ok)
	assert.Empty(t, token)
}

func TestUnregisterRemovesEntry(t *testing.T) {
	r := newTestRegistry(t, "")
	require.NoError(t, r.Register("gone", "http://gone:9000", "", "", true, nil))
	r.Unregister("gone")
	_, ok := r.Get("gone")
	assert.False(t, ok)
}

func TestActiveReportsFalseForUnknownAndInactivePeers(t *testing.T) {
	r := newTestRegistry(t, "")
	require.NoError(t, r.Register("up", "http://up:9000", "", "", true, nil))

	require.NoError(t, r.Register("down", "http://down:9000", "", "", true, nil))
	r.endpoints["down"].Active = false

	assert.True(t, r.Active("up"))
	assert.False(t, r.Active("down"), "a peer marked inactive must report inactive")
	assert.False(t, r.Active("ghost"), "an unregistered peer must report inactive")
}

func TestGetPersistentEndpointsExcludesVolatile(t *testing.T) {
	r := newTestRegistry(t, "")
	require.NoError(t, r.Register("persisted", "http://a", "", "", false, nil))
	require.NoError(t, r.Register("volatile", "http://b", "", "", true, nil))

	persistent := r.GetPersistentEndpoints()
	require.Len(t, persistent, 1)
	assert.Equal(t, "persisted", persistent[0].SwarmName)
}

func TestHealthCheckMarksInactiveAfterFailureThreshold(t *testing.T) {
	failures := 0
	r, err := New(Config{
		LocalSwarmName:   "home",
		FailureThreshold: 2,
		HTTPGet: func(ctx context.Context, url string) (string, error) {
			failures++
			return "", assertErr
		},
	})
	require.NoError(t, err)
	require.NoError(t, r.Register("flaky", "http://flaky:9000", "http://flaky:9000/health", "", true, nil))

	r.checkOne(context.Background(), "flaky")
	ep, _ := r.Get("flaky")
	assert.True(t, ep.Active, "one failure must not yet mark inactive with threshold 2")

	r.checkOne(context.Background(), "flaky")
	ep, _ = r.Get("flaky")
	assert.False(t, ep.Active, "second consecutive failure reaches the threshold")
}

func TestHealthCheckRecoversActiveOnSuccess(t *testing.T) {
	healthy := false
	r, err := New(Config{
		LocalSwarmName:   "home",
		FailureThreshold: 1,
		HTTPGet: func(ctx context.Context, url string) (string, error) {
			if healthy {
				return "ok", nil
			}
			return "", assertErr
		},
	})
	require.NoError(t, err)
	require.NoError(t, r.Register("peer", "http://peer:9000", "http://peer:9000/health", "", true, nil))

	r.checkOne(context.Background(), "peer")
	ep, _ := r.Get("peer")
	require.False(t, ep.Active)

	healthy = true
	r.checkOne(context.Background(), "peer")
	ep, _ = r.Get("peer")
	assert.True(t, ep.Active)
}

var assertErr = errTest("probe failed")

type errTest string

func (e errTest) Error() string { return string(e) }
