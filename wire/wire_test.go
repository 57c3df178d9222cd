package wire

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
)

type testObject uint32

func (o *testObject) ID() uint32 { return uint32(*o) }

func (o *testObject) SetID(id uint32) { *o = testObject(id) }

func (o *testObject) Interface() string { return "test_object" }

func (o *testObject) Dispatch(msg *MessageBuffer) error { return nil }

func (o *testObject) Delete() {}

func testPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	c1, c2, err := Pair()
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	return c1, c2
}

func TestFixed(t *testing.T) {
	tests := []struct {
		f     Fixed
		i     int
		float float64
	}{
		{FixedInt(0), 0, 0},
		{FixedInt(5), 5, 5},
		{FixedInt(-3), -3, -3},
		{FixedFloat(1.5), 1, 1.5},
		{FixedFloat(-1.5), -1, -1.5},
		{FixedFloat(0.25), 0, 0.25},
		{FixedFloat(-0.25), 0, -0.25},
	}
	for _, tt := range tests {
		if got := tt.f.Int(); got != tt.i {
			t.Errorf("%v.Int() = %v, want %v", tt.f.Float(), got, tt.i)
		}
		if got := tt.f.Float(); got != tt.float {
			t.Errorf("Float() = %v, want %v", got, tt.float)
		}
	}
	if got := FixedFloat(1.5).String(); got != "1.5" {
		t.Errorf("String() = %q, want 1.5", got)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	c1, c2 := testPair(t)

	sender := testObject(7)
	mb := NewMessage(&sender, 3)
	mb.WriteInt(-42)
	mb.WriteUint(99)
	mb.WriteFixed(FixedFloat(1.5))
	mb.WriteString("hello")
	mb.WriteArray([]byte{1, 2, 3, 4, 5})
	mb.WriteObject(nil)
	mb.WriteNewID(NewID{Interface: "wl_output", Version: 4, ID: 12})
	if err := mb.Build(c1); err != nil {
		t.Fatalf("build: %v", err)
	}

	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Sender() != 7 || msg.Op() != 3 {
		t.Errorf("message is op %v from %v, want op 3 from 7", msg.Op(), msg.Sender())
	}
	if v := msg.ReadInt(); v != -42 {
		t.Errorf("int = %v, want -42", v)
	}
	if v := msg.ReadUint(); v != 99 {
		t.Errorf("uint = %v, want 99", v)
	}
	if v := msg.ReadFixed(); v != FixedFloat(1.5) {
		t.Errorf("fixed = %v, want 1.5", v)
	}
	if v := msg.ReadString(); v != "hello" {
		t.Errorf("string = %q, want hello", v)
	}
	if v := msg.ReadArray(); !bytes.Equal(v, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("array = %v", v)
	}
	if v := msg.ReadUint(); v != 0 {
		t.Errorf("null object = %v, want 0", v)
	}
	want := NewID{Interface: "wl_output", Version: 4, ID: 12}
	if id := msg.ReadNewID(); id != want {
		t.Errorf("new_id = %+v, want %+v", id, want)
	}
	if err := msg.Err(); err != nil {
		t.Errorf("decode: %v", err)
	}
}

func TestMessageFile(t *testing.T) {
	c1, c2 := testPair(t)

	f, err := os.CreateTemp(t.TempDir(), "wire")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString("payload"); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	sender := testObject(1)
	mb := NewMessage(&sender, 0)
	mb.WriteUint(5)
	mb.WriteFile(f)
	if err := mb.Build(c1); err != nil {
		t.Fatalf("build: %v", err)
	}

	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg.ReadUint()
	g := msg.ReadFile()
	if g == nil {
		t.Fatalf("no file came through: %v", msg.Err())
	}
	defer g.Close()

	buf := make([]byte, 7)
	if _, err := g.ReadAt(buf, 0); err != nil {
		t.Fatalf("read received file: %v", err)
	}
	if string(buf) != "payload" {
		t.Errorf("received file holds %q, want payload", buf)
	}

	if msg.ReadFile() != nil || msg.Err() == nil {
		t.Errorf("reading past the one descriptor did not fail")
	}
}

func TestReadMessageShortHeader(t *testing.T) {
	c1, c2 := testPair(t)

	// A size below 8 claims the message ends inside its own header.
	var buf [8]byte
	PutUint32(buf[0:], 1)
	PutUint32(buf[4:], 4<<16)
	if _, err := c1.conn.Write(buf[:]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadMessage(c2); err == nil {
		t.Fatalf("undersized message was accepted")
	}
}

func TestDecodeErrors(t *testing.T) {
	var short MessageBuffer
	short.data.Reset(nil)
	short.ReadInt()
	if !errors.Is(short.Err(), io.ErrUnexpectedEOF) {
		t.Errorf("truncated message: Err() = %v", short.Err())
	}

	body := make([]byte, 8)
	PutUint32(body, 4)
	copy(body[4:], "abcd")
	var str MessageBuffer
	str.data.Reset(body)
	if v := str.ReadString(); v != "" || str.Err() == nil {
		t.Errorf("string without terminator decoded as %q", v)
	}
}

func TestNamedSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("WAYLAND_DISPLAY", "wayland-7")

	if got := NamedSocketPath("wayland-1"); got != "/run/user/1000/wayland-1" {
		t.Errorf("NamedSocketPath(wayland-1) = %q", got)
	}
	if got := NamedSocketPath("/tmp/sock"); got != "/tmp/sock" {
		t.Errorf("NamedSocketPath(/tmp/sock) = %q", got)
	}
	if got := SocketPath(); got != "/run/user/1000/wayland-7" {
		t.Errorf("SocketPath() = %q", got)
	}
}
