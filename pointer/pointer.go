// Package pointer contains utilities for handling pointer and touch
// input on a video window.
package pointer

// Button indicates a mouse button.
type Button uint32

// These values were pulled from linux/input-event-codes.h.
const (
	ButtonLeft Button = 0x110 + iota
	ButtonRight
	ButtonMiddle
	ButtonSide
	ButtonExtra
	ButtonForward
	ButtonBack
	ButtonTask
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	case ButtonSide:
		return "side"
	case ButtonExtra:
		return "extra"
	case ButtonForward:
		return "forward"
	case ButtonBack:
		return "back"
	case ButtonTask:
		return "task"
	}

	return "unknown"
}

// Edge identifies which window edge an interactive resize grabs.
// The values match both the wl_shell_surface.resize and the
// xdg_toplevel.resize_edge enums, which agree on purpose.
type Edge uint32

const (
	EdgeNone        Edge = 0
	EdgeTop         Edge = 1
	EdgeBottom      Edge = 2
	EdgeLeft        Edge = 4
	EdgeTopLeft     Edge = 5
	EdgeBottomLeft  Edge = 6
	EdgeRight       Edge = 8
	EdgeTopRight    Edge = 9
	EdgeBottomRight Edge = 10
)

// EdgeAt maps a position inside a w by h window to the resize edge
// grabbed when the press lands within margin pixels of the border.
// Presses in the interior return EdgeNone, which callers treat as a
// move instead.
func EdgeAt(x, y, w, h, margin int32) Edge {
	var e Edge
	if y < margin {
		e |= EdgeTop
	} else if y > h-margin {
		e |= EdgeBottom
	}
	if x < margin {
		e |= EdgeLeft
	} else if x > w-margin {
		e |= EdgeRight
	}
	return e
}
