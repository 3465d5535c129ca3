package minecraft

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
)

const sampleStatus = `{
	"version": {"name": "1.21.1", "protocol": 767},
	"players": {"max": 20, "online": 2, "sample": [{"name": "alex", "id": "a"}, {"name": "steve", "id": "b"}]},
	"description": {"text": "§aHello ", "extra": [{"text": "world"}]}
}`

// fakeServer answers Server List Pings on a loopback port.
type fakeServer struct {
	addr   string
	status string

	mu        sync.Mutex
	handshake struct {
		host string
		port uint16
	}
	conns int
}

func startFakeServer(t *testing.T, status string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{addr: ln.Addr().String(), status: status}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck // Test cleanup

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	// Handshake: protocol, host, port, next state.
	_, body, err := readFrame(r)
	if err != nil {
		return
	}
	br := bytes.NewReader(body)
	_, _ = readVarInt(br)  //nolint:errcheck // Test server
	n, _ := readVarInt(br) //nolint:errcheck // Test server
	host := make([]byte, n)
	_, _ = io.ReadFull(br, host)
	var port [2]byte
	_, _ = io.ReadFull(br, port[:])

	s.mu.Lock()
	s.conns++
	s.handshake.host = string(host)
	s.handshake.port = binary.BigEndian.Uint16(port[:])
	s.mu.Unlock()

	if _, _, err := readFrame(r); err != nil {
		return
	}
	status := appendVarInt(nil, uint32(len(s.status))) //nolint:gosec // Test fixture
	if err := writeFrame(conn, 0x00, append(status, s.status...)); err != nil {
		return
	}
	id, body, err := readFrame(r)
	if err != nil || id != 0x01 {
		return
	}
	_ = writeFrame(conn, 0x01, body)
}

func (s *fakeServer) handshakeHost() (string, uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshake.host, s.handshake.port
}

func (s *fakeServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func appendVarInt(b []byte, v uint32) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

func readVarInt(r io.ByteReader) (uint32, error) {
	var v uint32
	for i := range 5 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, errors.New("varint too long")
}

func writeFrame(w io.Writer, id uint32, body []byte) error {
	payload := append(appendVarInt(nil, id), body...)
	_, err := w.Write(append(appendVarInt(nil, uint32(len(payload))), payload...)) //nolint:gosec // Test fixture
	return err
}

func readFrame(r *bufio.Reader) (uint32, []byte, error) {
	n, err := readVarInt(r)
	if err != nil {
		return 0, nil, err
	}
	if n == 0 || n > 1<<20 {
		return 0, nil, errors.New("bad frame length")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, err
	}
	br := bytes.NewReader(buf)
	id, err := readVarInt(br)
	if err != nil {
		return 0, nil, err
	}
	return id, buf[len(buf)-br.Len():], nil
}

// closedAddr returns a loopback address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close() //nolint:errcheck // Only the port is needed
	return addr
}
