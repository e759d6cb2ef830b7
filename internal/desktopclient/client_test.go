package desktopclient

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

type stubParamSource struct {
	defs []domain.ParameterDefinition
}

func (s stubParamSource) ParameterDefinitions() []domain.ParameterDefinition { return s.defs }

func newTestClient() *Client {
	return New(Config{
		PluginName:      "facebridge",
		PluginDeveloper: "kestrel-labs",
		TokenFilePath:   "/tmp/does-not-exist-facebridge-token",
	}, slog.Default(), nil, stubParamSource{})
}

func TestClient_InitialState(t *testing.T) {
	c := newTestClient()
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_SendFrame_RequiresConnectedState(t *testing.T) {
	c := newTestClient()
	err := c.SendFrame(context.Background(), domain.EmptyDesktopFrame())
	require.Error(t, err)
	assert.Equal(t, errNotConnected, err)
}

func TestClient_Transition_UpdatesState(t *testing.T) {
	c := newTestClient()
	c.transition(StateDiscovering, "")
	assert.Equal(t, StateDiscovering, c.State())
}

func TestClient_Stats_UnhealthyWhenNotConnected(t *testing.T) {
	c := newTestClient()
	assert.False(t, c.Stats().IsHealthy)
}

func TestClient_Stats_UnhealthyWhenConfigChangedWhileConnected(t *testing.T) {
	c := newTestClient()
	c.transition(StateConnected, "")
	require.True(t, c.Stats().IsHealthy)

	c.MarkConfigChanged()
	assert.False(t, c.Stats().IsHealthy)
}

func TestClient_Transition_ClearsConfigDiffOnReconnect(t *testing.T) {
	c := newTestClient()
	c.transition(StateConnected, "")
	c.MarkConfigChanged()
	assert.False(t, c.Stats().IsHealthy)

	c.transition(StateDiscovering, "reconnect")
	c.transition(StateConnected, "")
	assert.True(t, c.Stats().IsHealthy)
}

func TestClient_RunDiscovering_FailsWithoutPortOrBeacon(t *testing.T) {
	c := newTestClient()
	c.cfg.DiscoveryWait = 1
	ctx := context.Background()
	c.runDiscovering(ctx)
	assert.Equal(t, StateFailed, c.State())
}

func TestClient_HandleAuthRejection_ClearsTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, domain.SaveAuthToken(path, domain.AuthToken("rejected-token")))

	c := newTestClient()
	c.cfg.TokenFilePath = path

	c.handleAuthRejection()

	got, err := domain.LoadAuthToken(path)
	require.NoError(t, err)
	assert.True(t, got.Empty(), "rejected token file must be cleared")
}

func TestClient_HandleAuthRejection_ReacquiresOnceForAPreexistingToken(t *testing.T) {
	// The rejected token was loaded from a file that already existed
	// before this connection (tokenFreshThisConn is false, its zero
	// value), so the machine gets exactly one re-acquire attempt.
	c := newTestClient()
	c.cfg.TokenFilePath = filepath.Join(t.TempDir(), "token")

	c.handleAuthRejection()

	assert.Equal(t, StateAcquiringToken, c.State())
}

func TestClient_HandleAuthRejection_FailsWhenFreshlyAcquiredTokenIsRejected(t *testing.T) {
	// The rejected token was the one just acquired via
	// AuthenticationTokenRequest during this very connection; re-acquiring
	// again would only repeat the same rejection, so the machine must stop
	// looping and go to Failed instead.
	c := newTestClient()
	c.cfg.TokenFilePath = filepath.Join(t.TempDir(), "token")
	c.tokenFreshThisConn.Store(true)

	c.handleAuthRejection()

	assert.Equal(t, StateFailed, c.State())
}
