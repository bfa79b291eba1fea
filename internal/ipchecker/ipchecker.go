// Package ipchecker extracts the client IP address of an HTTP request,
// honoring the usual reverse-proxy headers.
package ipchecker

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNoClientIP is returned when none of the request sources yields a valid address.
var ErrNoClientIP = errors.New("unable to determine client IP")

// GetClientIP extracts the client's IP address from an HTTP request,
// checking in order: the "X-Real-IP" header, the first entry of the
// "X-Forwarded-For" header, and finally the request's RemoteAddr field.
func GetClientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(strings.TrimSpace(request.Header.Get("X-Real-IP"))); ip != nil {
		return ip, nil
	}

	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip, nil
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/GetClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, ErrNoClientIP
	}

	return ip, nil
}
