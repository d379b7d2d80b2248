package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// Tray icons are generated at startup: a filled dot whose color tracks
// the dictation state.
var (
	iconIdle         = dotIcon(color.NRGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff})
	iconRecording    = dotIcon(color.NRGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff})
	iconTranscribing = dotIcon(color.NRGBA{R: 0xfb, G: 0x8c, B: 0x00, A: 0xff})
)

func dotIcon(c color.NRGBA) []byte {
	const size = 22
	const r = size/2 - 2

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	cx, cy := size/2, size/2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Static input, cannot fail at runtime.
		panic(err)
	}
	return buf.Bytes()
}
