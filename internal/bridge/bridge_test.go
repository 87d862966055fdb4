package bridge_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkrt/silk/envelope"
	"github.com/silkrt/silk/internal/bridge"
	"github.com/silkrt/silk/value"
)

// collector gathers scripts posted by the bridge, in order, waiting up
// to a short timeout for an expected count to arrive.
type collector struct {
	mu      sync.Mutex
	scripts []string
	signal  chan struct{}
}

func newCollector() *collector {
	return &collector{signal: make(chan struct{}, 64)}
}

func (c *collector) reply(script string) {
	c.mu.Lock()
	c.scripts = append(c.scripts, script)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		if len(c.scripts) >= n {
			out := append([]string(nil), c.scripts...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d scripts", n)
		}
	}
}

func TestBridgeForwardsAndEchoesScenario(t *testing.T) {
	// The child process scripted here matches spec §8 scenario 6: it
	// replies with a fixed success envelope regardless of input.
	c := newCollector()
	b := bridge.New(bridge.Config{
		Enabled: true,
		Argv:    []string{"sh", "-c", `while IFS= read -r line; do echo '{"ok":true,"result":{"x":1}}'; done`},
	}, c.reply)

	ctx := context.Background()
	b.Start(ctx)
	defer b.Stop()

	req := envelope.InvokeRequest{Callback: 9, Cmd: "ts:echo", Args: value.Int(1)}
	require.NoError(t, b.Submit(req))

	scripts := c.waitFor(t, 1)
	assert.Contains(t, scripts[0], `"callback":9`)
	assert.Contains(t, scripts[0], `"ok":true`)
	assert.Contains(t, scripts[0], `"x":1`)
}

func TestBridgeSurfacesChildFailure(t *testing.T) {
	c := newCollector()
	b := bridge.New(bridge.Config{
		Enabled: true,
		Argv:    []string{"sh", "-c", `while IFS= read -r line; do echo '{"ok":false,"error":"boom"}'; done`},
	}, c.reply)

	ctx := context.Background()
	b.Start(ctx)
	defer b.Stop()

	require.NoError(t, b.Submit(envelope.InvokeRequest{Callback: 1, Cmd: "x", Args: value.Null()}))
	scripts := c.waitFor(t, 1)
	assert.Contains(t, scripts[0], `"ok":false`)
	assert.Contains(t, scripts[0], `"message":"boom"`)
}

func TestBridgeDisablesOnBrokenChild(t *testing.T) {
	c := newCollector()
	b := bridge.New(bridge.Config{
		Enabled: true,
		Argv:    []string{"sh", "-c", `exit 0`}, // exits immediately, closing stdout
	}, c.reply)

	ctx := context.Background()
	b.Start(ctx)
	defer b.Stop()

	require.NoError(t, b.Submit(envelope.InvokeRequest{Callback: 1, Cmd: "x", Args: value.Null()}))
	c.waitFor(t, 1)

	deadline := time.Now().Add(2 * time.Second)
	for !b.Disabled() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, b.Disabled())

	err := b.Submit(envelope.InvokeRequest{Callback: 2, Cmd: "x", Args: value.Null()})
	assert.ErrorIs(t, err, bridge.ErrDisabled)
}

func TestBridgeRequestsAreFIFO(t *testing.T) {
	c := newCollector()
	b := bridge.New(bridge.Config{
		Enabled: true,
		Argv:    []string{"sh", "-c", `while IFS= read -r line; do echo "{\"ok\":true,\"result\":$line}"; done`},
	}, c.reply)

	ctx := context.Background()
	b.Start(ctx)
	defer b.Stop()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, b.Submit(envelope.InvokeRequest{Callback: i, Cmd: "x", Args: value.Int(i)}))
	}

	scripts := c.waitFor(t, 5)
	for i, s := range scripts {
		want := int64(i + 1)
		assert.Contains(t, s, `"callback":`+strconv.FormatInt(want, 10))
	}
}

func TestDisabledBridgeIsNotEnabledByDefault(t *testing.T) {
	c := newCollector()
	b := bridge.New(bridge.Config{Enabled: false}, c.reply)
	assert.False(t, b.Enabled())
	b.Start(context.Background())
	b.Stop()
}
