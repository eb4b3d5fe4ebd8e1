package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireShapes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "chat",
			ev:   NewChat("alice", "hiii", "twitch", "#9146ff"),
			want: `{"type":"chat","viewerName":"alice","message":"hiii","platform":"twitch","color":"#9146ff"}`,
		},
		{
			name: "viewer count keeps zero",
			ev:   NewViewerCount("tiktok", 0),
			want: `{"type":"viewerCount","platform":"tiktok","count":0}`,
		},
		{
			name: "control",
			ev:   ClearViewers(),
			want: `{"type":"control","action":"clearViewers"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestEventType(t *testing.T) {
	assert.Equal(t, TypeChat, NewChat("", "", "", "").EventType())
	assert.Equal(t, TypeViewerCount, NewViewerCount("", 1).EventType())
	assert.Equal(t, TypeControl, ClearViewers().EventType())
}

func TestSinkFunc(t *testing.T) {
	var got []Event
	s := SinkFunc(func(ev Event) { got = append(got, ev) })
	s.Send(ClearViewers())
	Discard.Send(ClearViewers())
	assert.Len(t, got, 1)
}
