// Package zabbix implements the Zabbix sender protocol over TCP.
package zabbix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/misc"
	"github.com/vshulcz/zbxreporter/internal/ports"
)

const (
	// DefaultAddress is the trapper endpoint of a local server.
	DefaultAddress = "localhost:10051"
	// DefaultTimeout bounds dialing and the whole request/response exchange.
	DefaultTimeout = 10 * time.Second

	requestSenderData = "sender data"
	responseSuccess   = "success"
	responseFailed    = "failed"
)

// Buffers that grew past 1 MiB for a large batch are not pooled.
var framePool = misc.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }).
	Keep(func(b *bytes.Buffer) bool { return b.Cap() <= 1<<20 })

// Client pushes records to a Zabbix server or proxy trapper.
type Client struct {
	addr    string
	timeout time.Duration
	backoff []time.Duration
	dialer  net.Dialer
}

var _ ports.Sender = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBackoff sets the delays between attempts when the frame could not be
// delivered. An empty slice disables retries.
func WithBackoff(delays []time.Duration) Option {
	return func(c *Client) { c.backoff = delays }
}

// New returns a Client for addr ("host:port"; the port defaults to 10051).
func New(addr string, opts ...Option) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = DefaultAddress
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "10051")
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("invalid zabbix address %q: %w", addr, err)
		}
	}
	c := &Client{addr: addr, timeout: DefaultTimeout, backoff: misc.DefaultBackoff}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Addr returns the trapper address.
func (c *Client) Addr() string { return c.addr }

type request struct {
	Request string          `json:"request"`
	Data    []domain.Record `json:"data"`
	Clock   int64           `json:"clock,omitempty"`
}

type response struct {
	Response string `json:"response"`
	Info     string `json:"info"`
}

// Send pushes records without a request clock.
func (c *Client) Send(ctx context.Context, records []domain.Record) (domain.SenderResult, error) {
	return c.send(ctx, request{Request: requestSenderData, Data: records})
}

// SendAt pushes records with clock as the request clock. Records without their
// own clock inherit it.
func (c *Client) SendAt(ctx context.Context, records []domain.Record, clock int64) (domain.SenderResult, error) {
	stamped := make([]domain.Record, len(records))
	for i, r := range records {
		if r.Clock == 0 {
			r.Clock = clock
		}
		stamped[i] = r
	}
	return c.send(ctx, request{Request: requestSenderData, Data: stamped, Clock: clock})
}

func (c *Client) send(ctx context.Context, req request) (domain.SenderResult, error) {
	if len(req.Data) == 0 {
		return domain.SenderResult{Response: responseSuccess}, nil
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.SenderResult{}, fmt.Errorf("marshal sender data: %w", err)
	}

	buf := framePool.Get()
	defer framePool.Put(buf)
	writeFrame(buf, body)
	frame := buf.Bytes()

	var res domain.SenderResult
	err = misc.Retry(ctx, c.backoff, isRetryableNet, func() error {
		r, err := c.roundTrip(ctx, frame)
		res = r
		return err
	})
	if err != nil {
		return domain.SenderResult{}, fmt.Errorf("zabbix send to %s: %w", c.addr, err)
	}
	return res, nil
}

// notSentError marks failures before the whole frame was written. Only those
// are retried.
type notSentError struct{ err error }

func (e notSentError) Error() string { return e.err.Error() }
func (e notSentError) Unwrap() error { return e.err }

func (c *Client) roundTrip(ctx context.Context, frame []byte) (_ domain.SenderResult, retErr error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return domain.SenderResult{}, notSentError{err}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close connection: %w", cerr)
		}
	}()
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			return domain.SenderResult{}, notSentError{err}
		}
	}

	if _, err := conn.Write(frame); err != nil {
		return domain.SenderResult{}, notSentError{err}
	}
	payload, err := readFrame(conn)
	if err != nil {
		return domain.SenderResult{}, fmt.Errorf("read response: %w", err)
	}
	return parseResponse(payload)
}

func parseResponse(payload []byte) (domain.SenderResult, error) {
	var r response
	if err := json.Unmarshal(payload, &r); err != nil {
		return domain.SenderResult{}, fmt.Errorf("%w: %v", domain.ErrBadResponse, err)
	}
	if r.Response != responseSuccess && r.Response != responseFailed {
		return domain.SenderResult{}, fmt.Errorf("%w: response %q", domain.ErrBadResponse, r.Response)
	}
	res := domain.SenderResult{Response: r.Response, Info: r.Info}
	parseInfo(&res)
	return res, nil
}

// parseInfo fills the counters from an info string such as
// "processed: 1; failed: 0; total: 1; seconds spent: 0.000055".
// Unparsable info leaves them zero.
func parseInfo(res *domain.SenderResult) {
	_, _ = fmt.Sscanf(res.Info, "processed: %d; failed: %d; total: %d; seconds spent: %g",
		&res.Processed, &res.Failed, &res.Total, &res.Spent)
}

func isRetryableNet(err error) bool {
	var ns notSentError
	return errors.As(err, &ns)
}
