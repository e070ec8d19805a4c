package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode_UserCreated(t *testing.T) {
	f := Decode([]byte(`{"event":"user_created","user":{"id":7,"username":"ana","email":"ana@example.com","is_active":true}}`))

	require.False(t, f.IsText())
	require.Equal(t, UserCreated, Classify(f))
	require.NotNil(t, f.User)
	require.Equal(t, int64(7), f.User.ID)
	require.Equal(t, "ana", f.User.Username)
	require.True(t, f.User.IsActive)
}

func TestDecode_KindDiscriminator(t *testing.T) {
	f := Decode([]byte(`{"kind":"error","message":"boom"}`))

	require.Equal(t, ServerError, Classify(f))
	require.Equal(t, "boom", f.Message)
}

func TestDecode_EventWinsOverKind(t *testing.T) {
	f := Decode([]byte(`{"event":"connection_established","kind":"error","data":"hello"}`))

	require.Equal(t, ConnectionEstablished, Classify(f))
	require.JSONEq(t, `"hello"`, string(f.Data))
}

func TestDecode_MalformedBecomesText(t *testing.T) {
	cases := []string{
		"not json at all",
		`{"event":"user_created"`,
		`[1,2,3]`,
		`42`,
		"",
	}

	for _, in := range cases {
		t.Run(in, func(t *testing.T) {
			f := Decode([]byte(in))
			require.True(t, f.IsText())
			require.Equal(t, in, f.Text)
			require.Equal(t, TextFrameType, f.Type)
			require.Equal(t, Unrecognized, Classify(f))
		})
	}
}

func TestDecode_BadUserKeepsFrame(t *testing.T) {
	f := Decode([]byte(`{"event":"user_created","user":"ana"}`))

	require.False(t, f.IsText())
	require.Equal(t, UserCreated, Classify(f))
	require.Nil(t, f.User)
}

func TestDecode_UnknownDiscriminatorPreserved(t *testing.T) {
	f := Decode([]byte(`{"event":"user_deleted","user":{"id":3}}`))

	require.Equal(t, Unrecognized, Classify(f))
	require.Equal(t, "user_deleted", f.Discriminator())
	require.Contains(t, string(f.Raw), "user_deleted")
}

func TestInboundEvent_Priority(t *testing.T) {
	require.Equal(t, PriorityHigh, InboundEvent{Kind: UserCreated}.Priority())
	require.Equal(t, PriorityHigh, InboundEvent{Kind: ServerError}.Priority())
	require.Equal(t, PriorityNormal, InboundEvent{Kind: ConnectionEstablished}.Priority())
	require.Equal(t, PriorityLow, InboundEvent{Kind: Unrecognized}.Priority())
}
