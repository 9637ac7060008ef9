package crossfire

import (
	"errors"
	"log"
	"sync/atomic"

	"github.com/dbehnke/rclink/internal/metrics"
)

// Receiver feeds inbound bytes through the assembler and decoder.
// ProcessByte must be called from a single goroutine; IsError may be
// polled from another.
type Receiver struct {
	assembler Assembler
	decoder   *Decoder
	decodeErr atomic.Bool
	metrics   *metrics.Collector
	logger    *log.Logger
	debug     bool
}

// NewReceiver creates a receive path around decoder
func NewReceiver(decoder *Decoder, m *metrics.Collector, logger *log.Logger) *Receiver {
	return &Receiver{
		decoder: decoder,
		metrics: m,
		logger:  logger,
	}
}

// SetDebug enables framing traces
func (r *Receiver) SetDebug(enabled bool) {
	r.debug = enabled
}

// ProcessByte handles one byte from the module UART. Errors are
// recoverable; the next byte starts over and the error is also latched
// for IsError.
func (r *Receiver) ProcessByte(b byte) error {
	frame, err := r.assembler.Feed(b)
	if err == nil && frame != nil {
		err = r.decoder.Decode(frame)
	}
	if err != nil {
		r.decodeErr.Store(true)
		r.metrics.DecodeError(errorKind(err))
		if r.debug && r.logger != nil {
			r.logger.Printf("[XF] %v", err)
		}
	}
	return err
}

// Process feeds a chunk of bytes and returns how many errors occurred
func (r *Receiver) Process(data []byte) int {
	errs := 0
	for _, b := range data {
		if r.ProcessByte(b) != nil {
			errs++
		}
	}
	return errs
}

// IsError returns whether any receive error happened since the last call,
// and clears the latch.
func (r *Receiver) IsError() bool {
	return r.decodeErr.Swap(false)
}

// Pending returns the number of bytes of the frame being assembled
func (r *Receiver) Pending() int {
	return r.assembler.Count()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrFraming):
		return "framing"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrChecksum):
		return "checksum"
	case errors.Is(err, ErrFieldRange), errors.Is(err, ErrShortFrame):
		return "short"
	default:
		return "other"
	}
}
