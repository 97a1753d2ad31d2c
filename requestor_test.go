package grawcore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestNewRequestor_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		userAgent string
		wantErr   bool
	}{
		{name: "descriptive user agent", userAgent: "script:myapp:1.0 (by /u/me)", wantErr: false},
		{name: "empty user agent", userAgent: "", wantErr: true},
		{name: "too-short user agent", userAgent: "bot", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			requestor, err := NewRequestor(nil, tc.userAgent, nil)
			if tc.wantErr {
				var configErr *ConfigError
				if !errors.As(err, &configErr) {
					t.Errorf("NewRequestor() error = %v, want *ConfigError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRequestor() error = %v", err)
			}
			if requestor.UserAgent() != tc.userAgent {
				t.Errorf("UserAgent() = %q, want %q", requestor.UserAgent(), tc.userAgent)
			}
		})
	}
}

func TestRequestor_InjectsUserAgent(t *testing.T) {
	t.Parallel()

	const userAgent = "script:grawcore:1.0 (by /u/tester)"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("User-Agent = %q, want %q", got, userAgent)
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	requestor, err := NewRequestor(server.Client(), userAgent, nil)
	if err != nil {
		t.Fatalf("NewRequestor() error = %v", err)
	}

	// A caller-supplied User-Agent header must not win.
	header := http.Header{}
	header.Set("User-Agent", "sneaky/0.1")

	resp, err := requestor.Do(context.Background(), http.MethodGet, server.URL, header, nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("Body = %q, want %q", resp.Body, "ok")
	}
}

func TestRequestor_MergesQueryParams(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("limit = %q, want %q", got, "100")
		}
		if got := r.URL.Query().Get("raw_json"); got != "1" {
			t.Errorf("raw_json = %q, want %q", got, "1")
		}
	}))
	defer server.Close()

	requestor, err := NewRequestor(server.Client(), "script:grawcore:1.0 (by /u/tester)", nil)
	if err != nil {
		t.Fatalf("NewRequestor() error = %v", err)
	}

	params := url.Values{}
	params.Set("limit", "100")

	_, err = requestor.Do(context.Background(), http.MethodGet, server.URL+"?raw_json=1", nil, params, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestRequestor_NonOKStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broke")
	}))
	defer server.Close()

	requestor, err := NewRequestor(server.Client(), "script:grawcore:1.0 (by /u/tester)", nil)
	if err != nil {
		t.Fatalf("NewRequestor() error = %v", err)
	}

	resp, err := requestor.Do(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v; status classification belongs to the session", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", resp.StatusCode)
	}
}

func TestRequestor_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	requestor, err := NewRequestor(nil, "script:grawcore:1.0 (by /u/tester)", nil)
	if err != nil {
		t.Fatalf("NewRequestor() error = %v", err)
	}

	_, err = requestor.Do(context.Background(), http.MethodGet, serverURL, nil, nil, strings.NewReader(""))
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Do() error = %v, want *TransportError", err)
	}
	if transportErr.Method != http.MethodGet {
		t.Errorf("Method = %q, want GET", transportErr.Method)
	}
	if transportErr.Unwrap() == nil {
		t.Error("TransportError must wrap the underlying error")
	}
}
