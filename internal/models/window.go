package models

import (
	"fmt"
	"strings"
)

// Window is an inclusive range along the spectral axis, in channel
// indices or in velocity units depending on how it is used.
type Window struct {
	Lower float64
	Upper float64
}

// Normalized returns the window with Lower <= Upper.
func (w Window) Normalized() Window {
	if w.Upper < w.Lower {
		return Window{Lower: w.Upper, Upper: w.Lower}
	}
	return w
}

// Contains reports whether x lies inside the normalized window.
func (w Window) Contains(x float64) bool {
	n := w.Normalized()
	return x >= n.Lower && x <= n.Upper
}

func (w Window) String() string {
	return fmt.Sprintf("(%g, %g)", w.Lower, w.Upper)
}

// FormatWindows renders a window list for history notes.
func FormatWindows(windows []Window) string {
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = w.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ChannelMask returns the logical union of the windows over the samples
// of axis. In channel mode the windows are compared with channel indices;
// otherwise with Axis.Values(kms).
func ChannelMask(axis Axis, windows []Window, channel, kms bool) []bool {
	mask := make([]bool, axis.Length)
	var coords []float64
	if !channel {
		coords = axis.Values(kms)
	}
	for _, w := range windows {
		w = w.Normalized()
		for i := range mask {
			x := float64(i)
			if !channel {
				x = coords[i]
			}
			if x >= w.Lower && x <= w.Upper {
				mask[i] = true
			}
		}
	}
	return mask
}

// CountTrue returns the number of set entries in mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// WindowUnits returns "CHANNEL" or "VELOCITY" for history notes.
func WindowUnits(channel bool) string {
	if channel {
		return "CHANNEL"
	}
	return "VELOCITY"
}
