// Package logger provides structured logging functionality
// using the Uber zap logging library. It supports log levels and an HTTP
// access-log middleware.
package logger

import (
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/regform/internal/ipchecker"
)

// RequestIDHeader carries the id assigned to each HTTP request.
const RequestIDHeader = "X-Request-ID"

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	responseData *responseData
}

// Log is the global SugaredLogger. It discards everything until Init is called,
// so packages may log from tests without setting it up.
var Log = zap.NewNop().Sugar()

// Write passes the body through and accumulates the response size.
func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	if r.responseData.status == 0 {
		r.responseData.status = http.StatusOK
	}
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

// WriteHeader records the status code before writing it.
func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

// Init initializes the global logger at the given level
// ("debug", "info", "warning", "error", "fatal").
func Init(level string) error {
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl.Sugar()

	return nil
}

// Sync flushes any buffered log entries to the output.
// Errors caused by syncing a terminal are ignored.
func Sync() error {
	if err := Log.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) && !errors.Is(err, syscall.ENOTTY) {
		return err
	}

	return nil
}

// WithLoggingHTTPMiddleware logs method, URI, status, duration, size,
// request id and client IP of every request. The request id is generated
// unless the client supplied one, and is echoed in the response header.
func WithLoggingHTTPMiddleware(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		responseData := &responseData{
			status: 0,
			size:   0,
		}
		lw := loggingResponseWriter{
			ResponseWriter: w,
			responseData:   responseData,
		}
		h.ServeHTTP(&lw, r)

		duration := time.Since(start)

		clientIP := ""
		if ip, err := ipchecker.GetClientIP(r); err == nil && ip != nil {
			clientIP = ip.String()
		}

		Log.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"status", responseData.status,
			"duration", duration,
			"size", responseData.size,
			"request_id", requestID,
			"client_ip", clientIP,
		)
	}

	return http.HandlerFunc(logFn)
}
