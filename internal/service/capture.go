package service

import (
	"bytes"
	"io"

	"edge-proxy/internal/cache"
)

// captureBody tees a response body into memory while the client reads it.
// done runs once: with the full body when the stream reaches EOF, or with an
// error when the body outgrows limit or is closed before EOF.
type captureBody struct {
	body     io.ReadCloser
	buf      bytes.Buffer
	limit    int64
	overflow bool
	finished bool
	done     func(body []byte, err error)
}

func newCaptureBody(body io.ReadCloser, limit int64, done func([]byte, error)) *captureBody {
	return &captureBody{body: body, limit: limit, done: done}
}

func (c *captureBody) Read(p []byte) (int, error) {
	n, err := c.body.Read(p)
	if n > 0 && !c.overflow {
		if c.limit > 0 && int64(c.buf.Len()+n) > c.limit {
			c.overflow = true
			c.buf = bytes.Buffer{}
		} else {
			c.buf.Write(p[:n])
		}
	}
	if err == io.EOF {
		c.finish()
	}
	return n, err
}

func (c *captureBody) Close() error {
	if !c.finished {
		c.finished = true
		c.done(nil, io.ErrUnexpectedEOF)
	}
	return c.body.Close()
}

func (c *captureBody) finish() {
	if c.finished {
		return
	}
	c.finished = true
	if c.overflow {
		c.done(nil, cache.ErrEntryTooLarge)
		return
	}
	c.done(c.buf.Bytes(), nil)
}
