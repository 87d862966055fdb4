package usermodule_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkrt/silk/envelope"
	"github.com/silkrt/silk/router"
	"github.com/silkrt/silk/usermodule"
	"github.com/silkrt/silk/value"
)

type greeterModule struct{}

var _ usermodule.Module = greeterModule{}

func (greeterModule) Register(host usermodule.Host) error {
	host.Register("greet:hello", func(ctx context.Context, args value.Value) (value.Value, error) {
		return value.String("hello"), nil
	}, "")
	return nil
}

func TestApplyRegistersUserModuleRoutes(t *testing.T) {
	r := router.New()
	host := usermodule.NewHost(r)

	require.NoError(t, usermodule.Apply(greeterModule{}, host))
	assert.True(t, r.Has("greet:hello"))

	resp := r.DispatchResponse(context.Background(), envelope.InvokeRequest{Callback: 1, Cmd: "greet:hello"})
	assert.True(t, resp.OK)
	s, _ := resp.Result.String()
	assert.Equal(t, "hello", s)
}

func TestNoopModuleRegistersNothing(t *testing.T) {
	r := router.New()
	host := usermodule.NewHost(r)
	require.NoError(t, usermodule.Apply(usermodule.Noop{}, host))
	assert.False(t, r.Has("anything"))
}

func TestApplyDefaultsNilModuleToNoop(t *testing.T) {
	r := router.New()
	host := usermodule.NewHost(r)
	require.NoError(t, usermodule.Apply(nil, host))
	assert.False(t, r.Has("anything"))
}

func TestHostOnlyExposesRegister(t *testing.T) {
	// NewHost yields a Host, and Host's method set is Register alone, so
	// it cannot grow Dispatch/Has/etc. without this test failing.
	var _ usermodule.Host = usermodule.NewHost(router.New())
	hostType := reflect.TypeOf((*usermodule.Host)(nil)).Elem()
	require.Equal(t, 1, hostType.NumMethod())
	assert.Equal(t, "Register", hostType.Method(0).Name)
}
