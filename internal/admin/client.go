// Package admin implements the device's line-oriented TCP administration
// protocol: a single-use, scoped client (Open, operations, Close) with no
// connection pooling, matching the device's "list"/"get"/"stream_close"/
// "udpc"/"save" command set.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const prompt = ">"

// Stream describes one telemetry destination entry reported by "list".
type Stream struct {
	ID   string
	Type string
	Dest string
}

// Client is a single-use administration session: Open, any number of
// operations, then Close.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// Open dials host:port and waits for the initial prompt, applying timeout
// to both the dial and the prompt read.
func Open(ctx context.Context, host string, port int, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c := &Client{conn: conn, r: bufio.NewReader(conn), timeout: timeout}
	if _, err := c.readUntil(prompt); err != nil {
		conn.Close() //nolint:errcheck // best-effort cleanup on failed open
		return nil, err
	}
	return c, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ListStreams returns every telemetry destination the device currently
// has registered, parsed from "list"'s tabular output.
func (c *Client) ListStreams() ([]Stream, error) {
	if err := c.primeAndSend("list\n"); err != nil {
		return nil, err
	}
	if _, err := c.readUntil("list\r\n! "); err != nil {
		return nil, err
	}
	res, err := c.readUntil(prompt)
	if err != nil {
		return nil, err
	}
	return parseStreamList(res), nil
}

func parseStreamList(res string) []Stream {
	body := strings.TrimSuffix(res, prompt)
	var streams []Stream
	for _, line := range strings.Split(body, "\r\n") {
		parts := strings.Fields(line)
		if len(parts) >= 5 { //nolint:mnd // id/type/.../dest tabular row width
			streams = append(streams, Stream{ID: parts[1], Type: parts[2], Dest: parts[4]})
		}
	}
	return streams
}

// GetVariable returns the device's reply to "get <name>" with surrounding
// whitespace trimmed: the whole "<name>: <value>" line, not the bare value.
func (c *Client) GetVariable(name string) (string, error) {
	cmd := fmt.Sprintf("get %s\r\n", name)
	if err := c.primeAndSend(cmd); err != nil {
		return "", err
	}
	if _, err := c.readUntil(cmd); err != nil {
		return "", err
	}
	res, err := c.readUntil(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimSuffix(res, prompt)), nil
}

// GetAllVariables returns every device variable, via "get all".
func (c *Client) GetAllVariables() (map[string]string, error) {
	cmd := "get all\r\n"
	if err := c.primeAndSend(cmd); err != nil {
		return nil, err
	}
	if _, err := c.readUntil(cmd); err != nil {
		return nil, err
	}
	res, err := c.readUntil(prompt)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{}
	body := strings.TrimSuffix(res, prompt)
	for _, line := range strings.Split(body, "\r\n") {
		key, value, ok := strings.Cut(line, ": ")
		if ok {
			vars[key] = value
		}
	}
	return vars, nil
}

// CloseStream closes the UDPC stream with the given id.
func (c *Client) CloseStream(id string) error {
	return c.sendAndAwaitPrompt(fmt.Sprintf("stream_close %s\n", id))
}

// SetUDPC rewrites the device's telemetry destination to host:port.
func (c *Client) SetUDPC(host string, port int) error {
	return c.sendAndAwaitPrompt(fmt.Sprintf("udpc %s %d\n", host, port))
}

// Save persists the current UDPC configuration to flash. Callers should
// think twice: repeated use wears the device's flash storage. The
// destination updater never calls this.
func (c *Client) Save() error {
	return c.sendAndAwaitPrompt("save\n")
}

func (c *Client) sendAndAwaitPrompt(cmd string) error {
	if err := c.primeAndSend(cmd); err != nil {
		return err
	}
	_, err := c.readUntil(prompt)
	return err
}

// primeAndSend flushes any stray prompt, then writes cmd.
func (c *Client) primeAndSend(cmd string) error {
	if err := c.write("\n"); err != nil {
		return err
	}
	if _, err := c.readUntil(prompt); err != nil {
		return err
	}
	return c.write(cmd)
}

func (c *Client) write(data string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("admin: setting write deadline: %w", err)
	}
	if _, err := c.conn.Write([]byte(data)); err != nil {
		return classifyIOError(err)
	}
	return nil
}

// readUntil reads from the connection's buffered reader one byte at a
// time until buf ends in delim, returning everything read. It scans
// through c.r rather than conn directly so that bytes belonging to a
// later reply - delivered in the same TCP segment as this one - stay
// buffered for the next call instead of being discarded.
func (c *Client) readUntil(delim string) (string, error) {
	if c.conn == nil || c.r == nil {
		return "", ErrNotConnected
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", fmt.Errorf("admin: setting read deadline: %w", err)
	}

	var buf strings.Builder
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: waiting for %q", ErrConnectionReset, delim)
			}
			return "", classifyIOError(err)
		}
		buf.WriteByte(b)
		if strings.HasSuffix(buf.String(), delim) {
			return buf.String(), nil
		}
	}
}

func classifyIOError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionReset, err)
}
