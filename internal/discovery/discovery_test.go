package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetServers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "1022" || r.URL.Query().Get("type") != "0" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent")
		}
		_, _ = w.Write([]byte(`{"code":0,"ttl":1,"data":{"token":"abc","max_delay":5000,
			"host_list":[{"host":"a.chat.example","port":2243,"wss_port":443,"ws_port":2244},{"host":"b.chat.example","port":2243,"wss_port":0,"ws_port":2244}]}}`))
	}))
	defer srv.Close()

	servers, token, err := NewClient(srv.URL).GetServers(context.Background(), 1022)
	if err != nil {
		t.Fatalf("GetServers: %v", err)
	}
	if token != "abc" || len(servers) != 2 {
		t.Fatalf("unexpected result: %v %q", servers, token)
	}
	if servers[0].Addr() != "a.chat.example:443" || servers[1].Addr() != "b.chat.example" {
		t.Fatalf("unexpected addrs: %q %q", servers[0].Addr(), servers[1].Addr())
	}
}

func TestGetServersErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		check  func(error) bool
	}{
		"empty list": {200, `{"code":0,"data":{"token":"x","host_list":[]}}`, func(err error) bool { return errors.Is(err, ErrNoServer) }},
		"api code":   {200, `{"code":-400,"message":"bad","data":{}}`, func(err error) bool { return err != nil }},
		"status":     {502, `oops`, func(err error) bool { return err != nil }},
		"bad json":   {200, `{"code":`, func(err error) bool { return err != nil }},
	}
	for name, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, _, err := NewClient(srv.URL).GetServers(context.Background(), 1)
		srv.Close()
		if !tc.check(err) {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}
