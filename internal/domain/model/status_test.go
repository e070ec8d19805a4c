package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	cases := []struct {
		state ConnectionState
		want  StatusView
	}{
		{Connecting, StatusView{Label: "Connecting...", Color: "orange", Tag: "connecting"}},
		{Open, StatusView{Label: "Connected", Color: "green", Tag: "connected"}},
		{Closing, StatusView{Label: "Closing...", Color: "orange", Tag: "closing"}},
		{Closed, StatusView{Label: "Disconnected", Color: "red", Tag: "disconnected"}},
		{ConnectionState(4), StatusView{Label: "Unknown", Color: "gray", Tag: "unknown"}},
		{ConnectionState(-1), StatusView{Label: "Unknown", Color: "gray", Tag: "unknown"}},
	}

	for _, tc := range cases {
		t.Run(tc.state.String(), func(t *testing.T) {
			require.Equal(t, tc.want, Project(tc.state))
		})
	}
}

func TestConnectionState_Valid(t *testing.T) {
	require.True(t, Closed.Valid())
	require.False(t, ConnectionState(9).Valid())
}
