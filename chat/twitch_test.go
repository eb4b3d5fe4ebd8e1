package chat

import (
	"context"
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
)

func TestTwitchViewerPrefersDisplayName(t *testing.T) {
	assert.Equal(t, "SomeOne", twitchViewer(twitch.User{Name: "someone", DisplayName: "SomeOne"}))
	assert.Equal(t, "someone", twitchViewer(twitch.User{Name: "someone"}))
}

func TestNormalizeChannel(t *testing.T) {
	cases := map[string]string{
		"Channel":      "channel",
		"#Channel":     "channel",
		"  #mixed_Ca ": "mixed_ca",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeChannel(in), "input %q", in)
	}
}

func TestTwitchSourceDisconnectBeforeConnect(t *testing.T) {
	src := NewTwitchSource("#SomeChannel")
	assert.Equal(t, "somechannel", src.channel)

	assert.NoError(t, src.Disconnect())
	assert.NoError(t, src.Disconnect())
	assert.ErrorIs(t, src.Connect(context.Background(), make(chanHandler, 1)), errSourceClosed)
}
