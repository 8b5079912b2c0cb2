package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// MaxLineLength bounds a single token or payload line (16MB).
const MaxLineLength = 16 * 1024 * 1024

// errLineTooLong is returned when a peer sends an oversized line.
var errLineTooLong = errors.New("line too long")

// conn frames tokens and JSON payloads as lines.
type conn struct {
	net.Conn
	r *bufio.Reader
}

func newConn(c net.Conn) *conn {
	return &conn{Conn: c, r: bufio.NewReader(c)}
}

func (c *conn) writeLine(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return fmt.Errorf("line contains newline: %q", s)
	}
	_, err := io.WriteString(c.Conn, s+"\n")
	return err
}

func (c *conn) writeCommand(cmd Command) error {
	return c.writeLine(string(cmd))
}

// writeJSON encodes v on a single line. encoding/json escapes newlines
// inside strings, so the output never spans lines.
func (c *conn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.Conn.Write(append(b, '\n'))
	return err
}

// readLine returns the next line without its terminator. EOF before any
// byte is io.EOF; EOF inside a line is io.ErrUnexpectedEOF.
func (c *conn) readLine() (string, error) {
	var buf []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > MaxLineLength {
			return "", errLineTooLong
		}
		switch {
		case err == nil:
			return string(bytes.TrimRight(buf, "\r\n")), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(buf) > 0:
			return "", io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}

func (c *conn) readCommand() (Command, string, error) {
	line, err := c.readLine()
	if err != nil {
		return "", "", err
	}
	cmd, ok := ParseCommand(strings.TrimSpace(line))
	if !ok {
		return "", line, nil
	}
	return cmd, line, nil
}
