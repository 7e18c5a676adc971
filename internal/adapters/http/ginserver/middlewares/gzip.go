package middlewares

import (
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gzw     *gzip.Writer
	decided bool
}

// decide enables compression for JSON bodies only.
func (w *gzipResponseWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		return
	}
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Add("Vary", "Accept-Encoding")
	w.gzw = gzipPool.Get().(*gzip.Writer) //nolint:forcetypeassert
	w.gzw.Reset(w.ResponseWriter)
}

func (w *gzipResponseWriter) Write(p []byte) (int, error) {
	w.decide()
	if w.gzw != nil {
		return w.gzw.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipResponseWriter) close() error {
	if w.gzw == nil {
		return nil
	}
	err := w.gzw.Close()
	gzipPool.Put(w.gzw)
	w.gzw = nil
	return err
}

// GzipResponse compresses JSON responses for clients that accept gzip.
func GzipResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("Accept-Encoding")), "gzip") {
			c.Next()
			return
		}
		grw := &gzipResponseWriter{ResponseWriter: c.Writer}
		c.Writer = grw
		c.Next()
		if err := grw.close(); err != nil {
			_ = c.Error(err)
		}
		c.Writer = grw.ResponseWriter
	}
}
