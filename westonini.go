package wlsink

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

var westonINIPath = "/etc/xdg/weston/weston.ini"

// panelHeight is the height in surface coordinates of the desktop
// panel that a fullscreen window must leave room for.
const panelHeight = 32

// surfaceState carries the desktop dimensions a window sizes itself
// by when going fullscreen on a configured desktop.
type surfaceState struct {
	width  int32
	height int32
	scale  int32
}

// loadSurfaceState derives the fullscreen size and buffer scale from
// the desktop's weston.ini, when there is one and it agrees with the
// output: the desktop size comes from the shell section and the
// scale from its ratio to the output's pixel size.
func loadSurfaceState(d *Display) (surfaceState, bool) {
	f, err := os.Open(westonINIPath)
	if err != nil {
		return surfaceState{}, false
	}
	defer f.Close()

	if fi, err := f.Stat(); err != nil || !fi.Mode().IsRegular() {
		return surfaceState{}, false
	}

	desktopW, desktopH, ok := desktopSize(f)
	if !ok {
		return surfaceState{}, false
	}

	displayW, displayH := d.OutputSize()
	if displayW <= 0 || displayH <= 0 {
		return surfaceState{}, false
	}

	// Fractional and high-density scales do not appear in the
	// desktop configurations this understands.
	scale := displayW / desktopW
	if scale != 1 && scale != 2 {
		return surfaceState{}, false
	}

	return surfaceState{
		width:  desktopW,
		height: desktopH - panelHeight,
		scale:  scale,
	}, true
}

// desktopSize extracts the desktop dimensions from weston.ini
// content: the first size key of the shell section, as
// WIDTHxHEIGHT.
func desktopSize(r io.Reader) (width, height int32, ok bool) {
	var section string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, "["):
			end := strings.IndexByte(line, ']')
			if end < 0 || end != len(line)-1 {
				continue
			}
			section = line[1:end]

		default:
			if section != "shell" {
				continue
			}
			key, value, found := strings.Cut(line, "=")
			if !found || key != "size" {
				continue
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			return parseSize(value)
		}
	}

	return 0, 0, false
}

func parseSize(s string) (width, height int32, ok bool) {
	ws, hs, found := strings.Cut(s, "x")
	if !found {
		return 0, 0, false
	}

	w, err := strconv.ParseInt(ws, 10, 32)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.ParseInt(hs, 10, 32)
	if err != nil || h <= 0 {
		return 0, 0, false
	}

	return int32(w), int32(h), true
}
