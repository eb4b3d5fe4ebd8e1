// Package chat connects to live-stream chat upstreams and turns their traffic
// into keyword matches and viewer-count updates for the observer.
//
// Two classes of upstream are supported behind one Source interface:
//   - TikTok LIVE, reached through a webcast event relay over WebSocket. A
//     connection only counts as live once the first viewer-count event
//     arrives; until then a confirmation timer is running.
//   - Twitch chat over IRC (anonymous, read-only). A successful connect is the
//     confirmation.
//
// A Supervisor owns at most one connection per platform. Starting again
// replaces the previous connection, and every start request is answered
// exactly once whichever of success, timeout, stream end or stop comes first.
package chat
