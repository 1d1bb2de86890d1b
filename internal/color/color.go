// Package color defines the 8-bit RGB value type driven onto the strip and
// its hex wire form.
package color

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dokzlo13/rgbd/internal/mathx"
)

// HexLen is the exact length of a colour on the wire ("rrggbb").
const HexLen = 6

var (
	ErrInvalidLength = errors.New("color must be exactly 6 hex characters")
	ErrInvalidHex    = errors.New("color contains non-hex characters")
)

// Color is an immutable (red, green, blue) triple.
type Color struct {
	R, G, B uint8
}

// Black is the colour shown before any target has been requested.
var Black = Color{}

// Clamped builds a Color from arbitrary ints, pinning each channel to [0, 255].
func Clamped(r, g, b int) Color {
	return Color{
		R: uint8(mathx.Clamp(r, 0, 255)),
		G: uint8(mathx.Clamp(g, 0, 255)),
		B: uint8(mathx.Clamp(b, 0, 255)),
	}
}

// Channels returns the channel values in RGB order.
func (c Color) Channels() [3]uint8 {
	return [3]uint8{c.R, c.G, c.B}
}

// Hex returns the six lowercase hex digits of c, RGB order, no prefix.
func (c Color) Hex() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string {
	return c.Hex()
}

// ParseHex decodes exactly six hex digits into a Color.
func ParseHex(s string) (Color, error) {
	if len(s) != HexLen {
		return Color{}, fmt.Errorf("%w: got %d", ErrInvalidLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return Color{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
		}
	}

	parsed, err := colorful.Hex("#" + s)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	r, g, b := parsed.RGB255()
	return Color{R: r, G: g, B: b}, nil
}

// MarshalText encodes c as its hex form.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText accepts the hex form produced by MarshalText.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func isHexDigit(ch byte) bool {
	return ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
