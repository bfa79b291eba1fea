package ipchecker

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientIP(t *testing.T) {
	type tTestCase struct {
		name       string
		realIP     string
		forwarded  string
		remoteAddr string
		expected   string
		wantErr    bool
	}
	testCases := []tTestCase{
		{name: "X-Real-IP", realIP: "10.0.0.1", forwarded: "10.0.0.2", remoteAddr: "10.0.0.3:1234", expected: "10.0.0.1"},
		{name: "first X-Forwarded-For entry", forwarded: " 10.0.0.2 , 10.0.0.9", remoteAddr: "10.0.0.3:1234", expected: "10.0.0.2"},
		{name: "garbage headers fall back to RemoteAddr", realIP: "nope", forwarded: "nope", remoteAddr: "10.0.0.3:1234", expected: "10.0.0.3"},
		{name: "IPv6 RemoteAddr", remoteAddr: "[::1]:1234", expected: "::1"},
		{name: "RemoteAddr without port", remoteAddr: "10.0.0.3", wantErr: true},
		{name: "RemoteAddr with host name", remoteAddr: "example.com:80", wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/", nil)
			request.RemoteAddr = testCase.remoteAddr
			if testCase.realIP != "" {
				request.Header.Set("X-Real-IP", testCase.realIP)
			}
			if testCase.forwarded != "" {
				request.Header.Set("X-Forwarded-For", testCase.forwarded)
			}

			ip, err := GetClientIP(request)
			if testCase.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, ip.String())
		})
	}
}
