package crossfire

import "errors"

var (
	ErrFraming    = errors.New("crossfire: framing error")
	ErrOverflow   = errors.New("crossfire: frame exceeds receive buffer")
	ErrChecksum   = errors.New("crossfire: crc mismatch")
	ErrShortFrame = errors.New("crossfire: frame too short")
	ErrFieldRange = errors.New("crossfire: field outside frame")
)
