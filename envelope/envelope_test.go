package envelope_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkrt/silk/envelope"
	"github.com/silkrt/silk/value"
)

func TestParseValidInvoke(t *testing.T) {
	req, err := envelope.Parse([]byte(`{"kind":"invoke","callback":1,"cmd":"silk:ping","args":null}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), req.Callback)
	assert.Equal(t, "silk:ping", req.Cmd)
	assert.True(t, req.Args.IsNull())
}

func TestParseMissingArgsDefaultsToNull(t *testing.T) {
	req, err := envelope.Parse([]byte(`{"kind":"invoke","callback":1,"cmd":"silk:ping"}`))
	require.NoError(t, err)
	assert.True(t, req.Args.IsNull())
}

func TestParseAcceptsWholeFloatCallback(t *testing.T) {
	req, err := envelope.Parse([]byte(`{"kind":"invoke","callback":7.0,"cmd":"x","args":{}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), req.Callback)
}

func TestParseRejectsFractionalCallback(t *testing.T) {
	_, err := envelope.Parse([]byte(`{"kind":"invoke","callback":7.5,"cmd":"x"}`))
	require.Error(t, err)
	var pe *envelope.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, envelope.KindInvalidCallback, pe.Kind)
}

func TestParseRejectsNegativeCallback(t *testing.T) {
	_, err := envelope.Parse([]byte(`{"kind":"invoke","callback":-1,"cmd":"x"}`))
	require.Error(t, err)
	var pe *envelope.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, envelope.KindInvalidCallback, pe.Kind)
}

func TestParseLargeCallbackAccepted(t *testing.T) {
	req, err := envelope.Parse([]byte(`{"kind":"invoke","callback":9007199254740992,"cmd":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740992), req.Callback)
}

func TestParseFailureKinds(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind envelope.ErrorKind
	}{
		{"not an object", `[]`, envelope.KindInvalidEnvelope},
		{"not json", `not json`, envelope.KindInvalidEnvelope},
		{"missing kind", `{"callback":1,"cmd":"x"}`, envelope.KindMissingKind},
		{"invalid kind type", `{"kind":1,"callback":1,"cmd":"x"}`, envelope.KindInvalidKind},
		{"unsupported kind", `{"kind":"event","callback":1,"cmd":"x"}`, envelope.KindUnsupportedKind},
		{"missing callback", `{"kind":"invoke","cmd":"x"}`, envelope.KindMissingCallback},
		{"invalid callback type", `{"kind":"invoke","callback":"1","cmd":"x"}`, envelope.KindInvalidCallback},
		{"missing cmd", `{"kind":"invoke","callback":1}`, envelope.KindMissingCommand},
		{"empty cmd", `{"kind":"invoke","callback":1,"cmd":""}`, envelope.KindInvalidCommand},
		{"non-string cmd", `{"kind":"invoke","callback":1,"cmd":5}`, envelope.KindInvalidCommand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := envelope.Parse([]byte(tc.raw))
			require.Error(t, err)
			var pe *envelope.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.kind, pe.Kind)
		})
	}
}

func TestSerializeSuccessMatchesPingScenario(t *testing.T) {
	script, err := envelope.Serialize(envelope.Response{
		Callback: 1,
		OK:       true,
		Result:   value.String("pong"),
	})
	require.NoError(t, err)
	assert.Equal(t,
		`window.__silk && window.__silk.__dispatch({"kind":"response","callback":1,"ok":true,"result":"pong"});`,
		script,
	)
}

func TestSerializeErrorIncludesMessage(t *testing.T) {
	script, err := envelope.Serialize(envelope.Response{
		Callback: 7,
		OK:       false,
		Error:    &envelope.ErrorInfo{Code: "METHOD_NOT_FOUND", Message: "Command not found"},
	})
	require.NoError(t, err)
	assert.Contains(t, script, `"ok":false`)
	assert.Contains(t, script, `"message":"Command not found"`)
	assert.Contains(t, script, `"code":"METHOD_NOT_FOUND"`)
}

func TestSerializeErrorWithoutCodeOmitsField(t *testing.T) {
	script, err := envelope.Serialize(envelope.Response{
		Callback: 2,
		OK:       false,
		Error:    &envelope.ErrorInfo{Message: "boom"},
	})
	require.NoError(t, err)
	assert.NotContains(t, script, `"code"`)
}

func TestRoundTripResponsePreservesCallback(t *testing.T) {
	for _, cb := range []int64{0, 1, 9007199254740992} {
		script, err := envelope.Serialize(envelope.Response{Callback: cb, OK: true, Result: value.Null()})
		require.NoError(t, err)
		assert.Contains(t, script, `"callback":`+strconv.FormatInt(cb, 10)+`,`)
	}
}
