package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func respondStatus(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{401, KindAuthenticationRejected},
		{403, KindAuthorizationDenied},
		{404, KindNotFound},
		{422, KindValidationFailed},
		{409, KindValidationFailed},
		{500, KindServerFault},
		{503, KindServerFault},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(respondStatus(tc.status, map[string]string{"message": "nope"}))
		c := New(srv.URL)
		_, err := c.GetTask(context.Background(), "t-1")
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !IsKind(err, tc.want) {
			t.Fatalf("status %d: classified as %v, want kind %s", tc.status, err, tc.want)
		}
	}
}

func TestValidationMessagesSurfaced(t *testing.T) {
	srv := httptest.NewServer(respondStatus(422, map[string]any{
		"message": []string{"roomId is required", "scheduledDate is required"},
	}))
	defer srv.Close()
	c := New(srv.URL)
	_, err := c.CreateTask(context.Background(), CreateTaskInput{})
	re, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("expected *RemoteError, got %T", err)
	}
	if len(re.Messages) != 2 || re.Messages[0] != "roomId is required" {
		t.Fatalf("messages = %v", re.Messages)
	}
}

func TestBearerHeaderSentWhenTokenInstalled(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		respondStatus(200, map[string]any{"tasks": []any{}})(w, r)
	}))
	defer srv.Close()
	c := New(srv.URL)
	if _, err := c.ListTasks(context.Background(), TaskFilters{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got != "" {
		t.Fatalf("no token installed but Authorization = %q", got)
	}
	c.SetToken("tok-123")
	if _, err := c.ListTasks(context.Background(), TaskFilters{}); err != nil {
		t.Fatalf("list with token: %v", err)
	}
	if got != "Bearer tok-123" {
		t.Fatalf("Authorization = %q, want bearer token", got)
	}
}

func TestAuthenticationRejectedFiresHook(t *testing.T) {
	srv := httptest.NewServer(respondStatus(401, map[string]string{"message": "expired"}))
	defer srv.Close()
	c := New(srv.URL)
	fired := 0
	c.OnAuthenticationRejected = func() { fired++ }
	if _, err := c.Profile(context.Background()); !IsKind(err, KindAuthenticationRejected) {
		t.Fatalf("expected authentication rejection, got %v", err)
	}
	if fired != 1 {
		t.Fatalf("hook fired %d times, want 1", fired)
	}
}

func TestRejectedLoginDoesNotFireHook(t *testing.T) {
	srv := httptest.NewServer(respondStatus(401, map[string]string{"message": "invalid credentials"}))
	defer srv.Close()
	c := New(srv.URL)
	fired := 0
	c.OnAuthenticationRejected = func() { fired++ }
	_, err := c.Login(context.Background(), Credentials{Email: "x@y", Password: "bad"})
	if !IsKind(err, KindAuthenticationRejected) {
		t.Fatalf("expected authentication rejection, got %v", err)
	}
	if fired != 0 {
		t.Fatal("failed login must not tear down the existing session")
	}
}

func TestTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	c := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetTask(ctx, "t-1")
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}

func TestNetworkUnreachableClassified(t *testing.T) {
	// Port 1 on loopback; connection refused immediately.
	c := New("http://127.0.0.1:1")
	c.Timeout = 500 * time.Millisecond
	_, err := c.GetTask(context.Background(), "t-1")
	if !IsKind(err, KindNetworkUnreachable) {
		t.Fatalf("expected network-unreachable kind, got %v", err)
	}
}

func TestListTasksSendsFilters(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		respondStatus(200, map[string]any{"tasks": []any{}})(w, r)
	}))
	defer srv.Close()
	c := New(srv.URL)
	_, err := c.ListTasks(context.Background(), TaskFilters{RoomID: "rm-1", Status: "to_clean"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if query != "roomId=rm-1&status=to_clean" {
		t.Fatalf("query = %q", query)
	}
}
