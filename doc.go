// Package wlsink presents video frames on a Wayland display.
//
// A Sink accepts frames one at a time and keeps the compositor fed
// with at most one pending buffer, dropping intermediate frames when
// they arrive faster than the compositor redraws. Frames are carried
// in shared-memory Pools and handed back for reuse once the
// compositor releases them.
//
// The sink can create its own toplevel window, or be embedded into a
// surface that the surrounding application owns.
package wlsink
