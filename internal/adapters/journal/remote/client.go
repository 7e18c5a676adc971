// Package remote posts report cycle summaries to an HTTP endpoint.
package remote

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/misc"
	"github.com/vshulcz/zbxreporter/internal/services/journal"
)

// HashHeader carries the hex SHA-256 of the uncompressed body salted with the key.
const HashHeader = "HashSHA256"

var (
	gzipWriterPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = misc.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })
)

// Client sends cycle summaries as gzipped JSON POST requests.
type Client struct {
	endpoint string
	key      string
	hc       *http.Client
	backoff  []time.Duration
}

var _ journal.Observer = (*Client)(nil)

// New validates the endpoint URL and returns a Client. A non-empty key signs
// every body.
func New(rawURL string, hc *http.Client, key string) (*Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("journal url is empty")
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid journal url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{endpoint: rawURL, key: strings.TrimSpace(key), hc: hc, backoff: misc.DefaultBackoff}, nil
}

// Notify serializes the cycle and POSTs it, retrying transient failures.
func (c *Client) Notify(ctx context.Context, cycle domain.Cycle) error {
	if c == nil {
		return nil
	}
	plain, err := json.Marshal(cycle)
	if err != nil {
		return fmt.Errorf("marshal cycle: %w", err)
	}
	var sum string
	if c.key != "" {
		sum = misc.SumSHA256(plain, c.key)
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)
	if err := gzipTo(buf, plain); err != nil {
		return err
	}
	body := buf.Bytes()

	op := func() error { return c.post(ctx, body, sum) }
	if err := misc.Retry(ctx, c.backoff, isRetryableHTTP, op); err != nil {
		return fmt.Errorf("journal post: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte, sum string) (retErr error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if sum != "" {
		req.Header.Set(HashHeader, sum)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close journal response: %w", cerr)
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain journal response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func gzipTo(buf *bytes.Buffer, src []byte) error {
	zw := gzipWriterPool.Get().(*gzip.Writer) //nolint:forcetypeassert
	defer gzipWriterPool.Put(zw)
	zw.Reset(buf)
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		return fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("journal post status %d", e.code)
}

func isRetryableHTTP(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
