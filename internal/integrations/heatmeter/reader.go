package heatmeter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// IEC 62056-21 optical head settings of the Ultraheat meters. The meter
// answers the wake-up at 300 baud and sends the telegram at 2400.
const (
	wakeUpBaud   = 300
	telegramBaud = 2400
	dataBits     = 7

	wakeUpNULs       = 40
	maxLineLength    = 1024
	maxTelegramLines = 256

	// readSlice is the serial read timeout between context checks.
	readSlice = 200 * time.Millisecond
)

var requestMessage = []byte("/?!\r\n")

// Port is the part of a serial port the reader uses.
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
}

// OpenFunc opens a serial device.
type OpenFunc func(device string, mode *serial.Mode) (Port, error)

// OpenSerial opens a real serial device.
func OpenSerial(device string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: dataBits,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
}

// MeterReader reads one telegram from the meter at device.
type MeterReader interface {
	Read(ctx context.Context, device string) (*Reading, error)
}

// UltraheatReader reads Landis+Gyr Ultraheat meters through an optical
// head.
//
// Thread Safety:
//   - Safe for concurrent use on different devices. Reads of the same
//     device must not overlap.
type UltraheatReader struct {
	// Open defaults to OpenSerial.
	Open OpenFunc
}

// Read wakes the meter, reads its telegram and parses it. The read ends
// early when ctx is done.
func (r *UltraheatReader) Read(ctx context.Context, device string) (*Reading, error) {
	open := r.Open
	if open == nil {
		open = OpenSerial
	}

	port, err := open(device, mode(wakeUpBaud))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	var closeOnce sync.Once
	closePort := func() { closeOnce.Do(func() { port.Close() }) } //nolint:errcheck // Nothing to do on close failure
	defer closePort()
	stop := context.AfterFunc(ctx, closePort)
	defer stop()

	if err := port.SetReadTimeout(readSlice); err != nil {
		return nil, fmt.Errorf("setting read timeout: %w", err)
	}

	wake := append(bytes.Repeat([]byte{0}, wakeUpNULs), requestMessage...)
	if _, err := port.Write(wake); err != nil {
		return nil, fmt.Errorf("writing request: %w", ctxErr(ctx, err))
	}

	lines := bufio.NewReaderSize(&portReader{ctx: ctx, port: port}, maxLineLength)

	ident, err := readLine(lines)
	if err != nil {
		return nil, fmt.Errorf("reading identification: %w", ctxErr(ctx, err))
	}
	model, ok := parseIdentification(ident)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadIdentification, ident)
	}

	if err := port.SetMode(mode(telegramBaud)); err != nil {
		return nil, fmt.Errorf("switching to %d baud: %w", telegramBaud, err)
	}

	var data []string
	for {
		line, err := readLine(lines)
		if err != nil {
			return nil, fmt.Errorf("reading telegram: %w", ctxErr(ctx, err))
		}
		end := strings.IndexByte(line, '!')
		if end >= 0 {
			data = append(data, line[:end])
			break
		}
		data = append(data, line)
		if len(data) >= maxTelegramLines {
			return nil, ErrTelegramTooLong
		}
	}

	return ParseTelegram(model, data)
}

// parseIdentification extracts the model from an identification line
// such as "/LUGCUH50".
func parseIdentification(line string) (string, bool) {
	line = strings.TrimLeft(line, "\x00")
	rest, ok := strings.CutPrefix(line, "/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func readLine(r *bufio.Reader) (string, error) {
	b, err := r.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return "", ErrTelegramTooLong
		}
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// ctxErr prefers the context error, since a cancelled read surfaces as a
// closed port.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// portReader turns serial read timeouts (0, nil) into retries until ctx
// is done.
type portReader struct {
	ctx  context.Context
	port Port
}

func (p *portReader) Read(b []byte) (int, error) {
	for {
		n, err := p.port.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if err := p.ctx.Err(); err != nil {
			return 0, err
		}
	}
}
