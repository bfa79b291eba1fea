// Package gzippedhttp provides middlewares that decompress gzip-encoded
// request bodies and gzip responses for clients that accept it.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressedReader wraps an io.ReadCloser and decompresses its input using gzip.
type CompressedReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressedReader returns a new CompressedReader that reads gzip-compressed data
// from the provided io.ReadCloser. It fails when the stream has no valid gzip header.
func NewCompressedReader(requestBody io.ReadCloser) (*CompressedReader, error) {
	zippedRequestBody, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &CompressedReader{
		r:  requestBody,
		zr: zippedRequestBody,
	}, nil
}

// Read reads decompressed data from the underlying gzip stream.
func (c *CompressedReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip reader and the underlying io.ReadCloser.
func (c *CompressedReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// CompressedHTTPResponseWriter wraps http.ResponseWriter and compresses
// the response body using gzip. The gzip stream is opened on the first
// WriteHeader or Write, so a handler that writes nothing yields an empty body.
type CompressedHTTPResponseWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	wroteHeader bool
}

// NewCompressedHTTPResponseWriter returns a new CompressedHTTPResponseWriter
// that writes gzip-compressed responses to the provided http.ResponseWriter.
func NewCompressedHTTPResponseWriter(w http.ResponseWriter) *CompressedHTTPResponseWriter {
	return &CompressedHTTPResponseWriter{w: w}
}

// Close flushes the gzip stream, if one was opened, and returns the writer to the pool.
func (c *CompressedHTTPResponseWriter) Close() error {
	if c.zw == nil {
		return nil
	}

	err := c.zw.Close()
	gzipWriterPool.Put(c.zw)
	c.zw = nil

	return err
}

// WriteHeader marks the response as gzip-encoded and sends the status code.
func (c *CompressedHTTPResponseWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true

	if statusCode != http.StatusNoContent && statusCode != http.StatusNotModified {
		header := c.w.Header()
		header.Set("Content-Encoding", "gzip")
		header.Add("Vary", "Accept-Encoding")
		header.Del("Content-Length")

		c.zw = gzipWriterPool.Get().(*gzip.Writer)
		c.zw.Reset(c.w)
	}

	c.w.WriteHeader(statusCode)
}

// Write writes gzip-compressed data to the response body.
func (c *CompressedHTTPResponseWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.zw == nil {
		return c.w.Write(p)
	}
	return c.zw.Write(p)
}

// Header returns the HTTP headers associated with the response.
func (c *CompressedHTTPResponseWriter) Header() http.Header {
	return c.w.Header()
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// GzipResponse is the middleware that compresses the response when the
// request's "Accept-Encoding" header lists gzip.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		finalResponse := response

		acceptEncoding := request.Header.Get("Accept-Encoding")
		clientAcceptsGzip := strings.Contains(acceptEncoding, "gzip")
		if clientAcceptsGzip {
			responseWithCompression := NewCompressedHTTPResponseWriter(response)
			finalResponse = responseWithCompression
			defer responseWithCompression.Close()
		}

		h.ServeHTTP(finalResponse, request)
	}

	return http.HandlerFunc(middleware)
}

// UngzipRequest returns a middleware that decompresses gzip-encoded request
// bodies. Requests whose body is not a valid gzip stream are handed to
// onBadBody instead of the next handler.
func UngzipRequest(onBadBody http.HandlerFunc) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			contentEncoding := request.Header.Get("Content-Encoding")
			clientSendsGzippedData := strings.Contains(contentEncoding, "gzip")
			if clientSendsGzippedData {
				requestBodyWithCompression, err := NewCompressedReader(request.Body)
				if err != nil {
					onBadBody(response, request)
					return
				}
				request.Body = requestBodyWithCompression
				request.Header.Del("Content-Encoding")
				request.ContentLength = -1
				defer requestBodyWithCompression.Close()
			}

			h.ServeHTTP(response, request)
		}

		return http.HandlerFunc(middleware)
	}
}
