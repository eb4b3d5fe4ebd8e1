package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/keyword-catcher/events"
	"github.com/onnwee/keyword-catcher/session"
	"github.com/onnwee/keyword-catcher/testutil"
)

type handlerEvent struct {
	kind   string
	viewer string
	text   string
	count  int
}

type chanHandler chan handlerEvent

func (h chanHandler) OnChatMessage(viewer, text string) {
	h <- handlerEvent{kind: "chat", viewer: viewer, text: text}
}
func (h chanHandler) OnViewerCount(count int) { h <- handlerEvent{kind: "count", count: count} }
func (h chanHandler) OnStreamEnd()            { h <- handlerEvent{kind: "end"} }

func (h chanHandler) next(t *testing.T) handlerEvent {
	t.Helper()
	select {
	case ev := <-h:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return handlerEvent{}
	}
}

func nextRoom(t *testing.T, rs *testutil.RelayServer) *testutil.RelayRoom {
	t.Helper()
	select {
	case room := <-rs.Rooms():
		return room
	case <-time.After(2 * time.Second):
		t.Fatal("relay never saw a connection")
		return nil
	}
}

func TestTikTokSourceDecodesFrames(t *testing.T) {
	rs := testutil.NewRelayServer(t)
	src := NewTikTokSource(rs.URL(), "some.user")
	h := make(chanHandler, 16)

	require.NoError(t, src.Connect(context.Background(), h))
	defer src.Disconnect()

	room := nextRoom(t, rs)
	assert.Equal(t, "some.user", room.UniqueID)

	require.NoError(t, room.SendRaw("not json"))
	require.NoError(t, room.Send(map[string]any{"event": "gift", "data": map[string]int{"diamonds": 5}}))
	require.NoError(t, room.Chat("Alice", "alice01", "hello"))
	require.NoError(t, room.Chat("", "bob02", "yo"))
	require.NoError(t, room.Chat("", "", "anon"))
	require.NoError(t, room.RoomUser(17))
	require.NoError(t, room.StreamEnd())

	assert.Equal(t, handlerEvent{kind: "chat", viewer: "Alice", text: "hello"}, h.next(t))
	assert.Equal(t, handlerEvent{kind: "chat", viewer: "bob02", text: "yo"}, h.next(t))
	assert.Equal(t, handlerEvent{kind: "chat", viewer: "Unknown", text: "anon"}, h.next(t))
	assert.Equal(t, handlerEvent{kind: "count", count: 17}, h.next(t))
	assert.Equal(t, handlerEvent{kind: "end"}, h.next(t))
}

func TestTikTokSourceRelayDropEndsStream(t *testing.T) {
	rs := testutil.NewRelayServer(t)
	src := NewTikTokSource(rs.URL(), "user")
	h := make(chanHandler, 4)

	require.NoError(t, src.Connect(context.Background(), h))
	room := nextRoom(t, rs)
	require.NoError(t, room.Drop())

	assert.Equal(t, "end", h.next(t).kind)
	require.NoError(t, src.Disconnect())
}

func TestTikTokSourceDisconnectIsQuiet(t *testing.T) {
	rs := testutil.NewRelayServer(t)
	src := NewTikTokSource(rs.URL(), "user")
	h := make(chanHandler, 4)

	require.NoError(t, src.Connect(context.Background(), h))
	room := nextRoom(t, rs)

	require.NoError(t, src.Disconnect())
	require.NoError(t, src.Disconnect())

	select {
	case <-room.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("relay connection still open")
	}
	select {
	case ev := <-h:
		t.Fatalf("unexpected event after disconnect: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTikTokSourceRejectedHandshake(t *testing.T) {
	rs := testutil.NewRelayServer(t)
	rs.Reject = func(string) bool { return true }

	err := NewTikTokSource(rs.URL(), "ghost").Connect(context.Background(), make(chanHandler, 1))
	require.Error(t, err)
	assert.Equal(t, []string{"ghost"}, rs.Seen())
}

func TestTikTokSourceConnectAfterDisconnect(t *testing.T) {
	rs := testutil.NewRelayServer(t)
	src := NewTikTokSource(rs.URL(), "user")
	require.NoError(t, src.Disconnect())

	err := src.Connect(context.Background(), make(chanHandler, 1))
	assert.ErrorIs(t, err, errSourceClosed)
}

func TestSupervisorOverRelay(t *testing.T) {
	rs := testutil.NewRelayServer(t)
	sink := &testutil.RecordingSink{}
	dedup := session.New(sink)
	sup := NewSupervisor(TikTok, TikTokDialer(rs.URL()), dedup, sink, WithConfirmTimeout(2*time.Second))
	require.NoError(t, dedup.Activate("join"))

	errc := startAsync(context.Background(), sup, "streamer")
	room := nextRoom(t, rs)
	require.NoError(t, room.RoomUser(120))
	require.NoError(t, waitErr(t, errc))

	require.NoError(t, room.Chat("Viewer", "viewer", "joiiin!"))
	require.NoError(t, room.Chat("Viewer", "viewer", "join"))

	assert.Eventually(t, func() bool { return len(sink.Chats()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, events.NewChat("Viewer", "joiiin!", "tiktok", "#00b400"), sink.Chats()[0])
	assert.Equal(t, []events.ViewerCount{events.NewViewerCount("tiktok", 120)}, sink.ViewerCounts())

	sup.Stop()
	select {
	case <-room.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("relay connection still open after stop")
	}
}
