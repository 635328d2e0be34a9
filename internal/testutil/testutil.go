// Package testutil provides shared helpers for HTTP handler tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// LoopbackRemoteAddr is the client address of requests built here. tsweb
// only serves /debug/ to loopback clients.
const LoopbackRemoteAddr = "127.0.0.1:12345"

// LoopbackRequest creates a test request that appears to come from localhost.
func LoopbackRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = LoopbackRemoteAddr
	return req
}

// FormRequest creates a url-encoded POST from localhost.
func FormRequest(target string, form url.Values) *http.Request {
	req := LoopbackRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// Serve runs req through h.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("status code = %d, want %d (body %q)", w.Code, want, w.Body.String())
	}
}
