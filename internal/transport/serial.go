package transport

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrNotOpen is returned by Send while the port is closed
var ErrNotOpen = errors.New("serial port not open")

// ByteSink consumes received bytes, e.g. a telemetry receiver
type ByteSink interface {
	Process(data []byte) int
}

// OpenFunc opens a serial device; serial.Open in production
type OpenFunc func(device string, mode *serial.Mode) (serial.Port, error)

// SerialConfig describes the module UART
type SerialConfig struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

// SerialLink is the module UART. While open, a reader goroutine feeds
// every received byte to the sink.
type SerialLink struct {
	cfg    SerialConfig
	openFn OpenFunc
	sink   ByteSink
	logger *log.Logger

	mu      sync.Mutex
	port    serial.Port
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewSerialLink creates a closed link. sink may be nil when nothing reads
// telemetry.
func NewSerialLink(cfg SerialConfig, sink ByteSink, logger *log.Logger) *SerialLink {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 20 * time.Millisecond
	}
	return &SerialLink{
		cfg:    cfg,
		openFn: serial.Open,
		sink:   sink,
		logger: logger,
	}
}

// SetOpenFunc replaces the function used to open the device
func (l *SerialLink) SetOpenFunc(fn OpenFunc) {
	l.openFn = fn
}

// Open opens the device and starts the reader. Opening an open link is a no-op.
func (l *SerialLink) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: l.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := l.openFn(l.cfg.Device, mode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", l.cfg.Device, err)
	}
	if err := port.SetReadTimeout(l.cfg.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", l.cfg.Device, err)
	}
	if err := port.ResetInputBuffer(); err != nil && l.logger != nil {
		l.logger.Printf("Serial: %s: input flush failed: %v", l.cfg.Device, err)
	}

	l.port = port
	l.closing = make(chan struct{})
	l.wg.Add(1)
	go l.readLoop(port, l.closing)

	if l.logger != nil {
		l.logger.Printf("Serial: opened %s at %d baud", l.cfg.Device, l.cfg.BaudRate)
	}
	return nil
}

// Close stops the reader and closes the device. Closing a closed link is a no-op.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	port := l.port
	if port == nil {
		l.mu.Unlock()
		return nil
	}
	l.port = nil
	close(l.closing)
	l.mu.Unlock()

	err := port.Close()
	l.wg.Wait()

	if l.logger != nil {
		l.logger.Printf("Serial: closed %s", l.cfg.Device)
	}
	return err
}

// IsOpen reports whether the device is open
func (l *SerialLink) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// Send writes one frame to the module
func (l *SerialLink) Send(frame []byte) error {
	l.mu.Lock()
	port := l.port
	l.mu.Unlock()
	if port == nil {
		return ErrNotOpen
	}

	n, err := port.Write(frame)
	if err != nil {
		return fmt.Errorf("serial write error: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("serial short write: %d of %d bytes", n, len(frame))
	}
	return nil
}

func (l *SerialLink) readLoop(port serial.Port, closing <-chan struct{}) {
	defer l.wg.Done()
	buf := make([]byte, 128)

	for {
		n, err := port.Read(buf)
		if err != nil {
			select {
			case <-closing:
			default:
				if l.logger != nil {
					l.logger.Printf("Serial: read error on %s: %v", l.cfg.Device, err)
				}
			}
			return
		}

		// n == 0 is a read timeout
		if n > 0 && l.sink != nil {
			l.sink.Process(buf[:n])
		}

		select {
		case <-closing:
			return
		default:
		}
	}
}
