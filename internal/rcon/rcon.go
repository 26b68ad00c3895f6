// Package rcon implements the Source RCON protocol used by Minecraft,
// Palworld and ARK dedicated servers: a TCP connection carrying
// length-prefixed packets, authenticated once with a shared secret.
package rcon

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const (
	packetAuth         = 3
	packetAuthResponse = 2
	packetExec         = 2
	packetResponse     = 0

	defaultTimeout = 5 * time.Second
	maxPacketSize  = 4096
)

// ChannelError is returned for every transport, protocol or auth failure.
// The next Execute call re-attempts the connection from scratch.
type ChannelError struct {
	Target string
	Op     string
	Err    error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("rcon %s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Client holds one RCON connection to a single server. Calls serialize:
// the protocol does not support interleaved requests on one connection.
type Client struct {
	addr     string
	password string
	timeout  time.Duration

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	reqID     int32
	lastErr   error
}

// NewClient creates a client for the given host:port. No connection is
// opened until the first Execute call.
func NewClient(addr, password string) *Client {
	return &Client{
		addr:     addr,
		password: password,
		timeout:  defaultTimeout,
	}
}

// Execute sends a single command and returns the raw response text.
// The connection is established lazily and dropped on any failure;
// there is no retry within a single call.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		if err := c.connect(ctx); err != nil {
			return "", err
		}
	}

	deadline := c.deadline(ctx)
	c.conn.SetDeadline(deadline)

	c.reqID++
	id := c.reqID
	if err := writePacket(c.conn, id, packetExec, command); err != nil {
		return "", c.fail("send", err)
	}

	respID, _, body, err := readPacket(c.conn)
	if err != nil {
		return "", c.fail("receive", err)
	}
	if respID != id {
		return "", c.fail("receive", fmt.Errorf("response id %d does not match request id %d", respID, id))
	}
	return body, nil
}

// LastError returns the most recent failure, or nil while healthy
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close releases the underlying connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnect()
}

// connect dials and authenticates; caller holds the lock
func (c *Client) connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.lastErr = err
		return &ChannelError{Target: c.addr, Op: "connect", Err: err}
	}
	conn.SetDeadline(c.deadline(ctx))

	c.reqID++
	authID := c.reqID
	if err := writePacket(conn, authID, packetAuth, c.password); err != nil {
		conn.Close()
		c.lastErr = err
		return &ChannelError{Target: c.addr, Op: "auth", Err: err}
	}

	// Some servers send an empty RESPONSE_VALUE packet before the auth
	// response; skip it
	for {
		id, ptype, _, err := readPacket(conn)
		if err != nil {
			conn.Close()
			c.lastErr = err
			return &ChannelError{Target: c.addr, Op: "auth", Err: err}
		}
		if ptype == packetResponse {
			continue
		}
		if id == -1 {
			conn.Close()
			c.lastErr = fmt.Errorf("authentication rejected")
			return &ChannelError{Target: c.addr, Op: "auth", Err: c.lastErr}
		}
		break
	}

	c.conn = conn
	c.connected = true
	c.lastErr = nil
	return nil
}

// fail records the error, drops the connection and wraps the error;
// caller holds the lock
func (c *Client) fail(op string, err error) error {
	c.lastErr = err
	c.disconnect()
	return &ChannelError{Target: c.addr, Op: op, Err: err}
}

func (c *Client) disconnect() error {
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// writePacket writes one RCON packet:
// int32 size, int32 id, int32 type, null-terminated body, null pad
func writePacket(w io.Writer, id, ptype int32, body string) error {
	size := int32(4 + 4 + len(body) + 2)
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(ptype))
	copy(buf[12:], body)
	// Two trailing zero bytes are already present from make
	_, err := w.Write(buf)
	return err
}

// readPacket reads one RCON packet and returns id, type and body
func readPacket(r io.Reader) (int32, int32, string, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return 0, 0, "", err
	}
	if size < 10 || size > maxPacketSize {
		return 0, 0, "", fmt.Errorf("invalid packet size %d", size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, 0, "", err
	}

	id := int32(binary.LittleEndian.Uint32(buf[0:4]))
	ptype := int32(binary.LittleEndian.Uint32(buf[4:8]))
	body := string(buf[8 : size-2]) // strip the two trailing null bytes
	return id, ptype, body, nil
}
