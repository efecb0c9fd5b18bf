package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chillgits/chillgits/profile"
)

func TestValidHandle(t *testing.T) {
	tests := []struct {
		handle string
		want   bool
	}{
		{"octocat", true},
		{"torvalds", true},
		{"user-name", true},
		{"a", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{"../../etc/passwd", false},
		{"waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaytoolong", false},
	}

	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			if got := ValidHandle(tt.handle); got != tt.want {
				t.Errorf("ValidHandle(%q) = %v, want %v", tt.handle, got, tt.want)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL), WithGraphQLURL(srv.URL+"/graphql"))
}

func TestFetchUser(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octocat" {
			t.Errorf("path = %q, want /users/octocat", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header set without a token")
		}
		_, _ = w.Write([]byte(`{
			"login": "octocat",
			"name": "The Octocat",
			"bio": "GitHub's mascot",
			"avatar_url": "https://avatars.githubusercontent.com/u/583231",
			"public_repos": 8,
			"followers": 4000,
			"following": 9
		}`))
	}))

	user, err := c.FetchUser(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchUser() error = %v", err)
	}

	if user.Login != "octocat" {
		t.Errorf("Login = %q, want %q", user.Login, "octocat")
	}
	if user.PublicRepos != 8 || user.Followers != 4000 || user.Following != 9 {
		t.Errorf("counts = %d/%d/%d, want 8/4000/9", user.PublicRepos, user.Followers, user.Following)
	}
}

func TestFetchUserSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
		}
		_, _ = w.Write([]byte(`{"login": "octocat"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL), WithToken("test-token"))
	if !c.Authenticated() {
		t.Fatal("Authenticated() = false with a token set")
	}
	if _, err := c.FetchUser(context.Background(), "octocat"); err != nil {
		t.Fatalf("FetchUser() error = %v", err)
	}
}

func TestFetchUserNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))

	_, err := c.FetchUser(context.Background(), "doesnotexist123456")
	var nf *profile.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *profile.NotFoundError", err)
	}
	if nf.Handle != "doesnotexist123456" {
		t.Errorf("Handle = %q, want %q", nf.Handle, "doesnotexist123456")
	}
}

func TestFetchUserRateLimited(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.FetchUser(context.Background(), "octocat")
	var rl *profile.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *profile.RateLimitError", err)
	}
	if !rl.Reset.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Reset = %v, want %v", rl.Reset, time.Unix(1700000000, 0))
	}
}

func TestFetchUserServerErrorRetriesOnce(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.FetchUser(context.Background(), "octocat")
	var up *profile.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("error = %v, want *profile.UpstreamError", err)
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2 (one retry)", calls)
	}
}

func TestFetchUserNotFoundIsNotRetried(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, _ = c.FetchUser(context.Background(), "octocat")
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (no retry on 404)", calls)
	}
}

func TestFetchRepos(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octocat/repos" {
			t.Errorf("path = %q, want /users/octocat/repos", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("sort") != "updated" || q.Get("per_page") != "10" {
			t.Errorf("query = %q, want sort=updated&per_page=10", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"name": "hello-world", "full_name": "octocat/hello-world", "fork": false,
			 "stargazers_count": 80, "html_url": "https://github.com/octocat/hello-world",
			 "language": "Go", "updated_at": "2024-05-01T12:00:00Z"},
			{"name": "forked-thing", "full_name": "octocat/forked-thing", "fork": true,
			 "stargazers_count": 2, "html_url": "https://github.com/octocat/forked-thing"}
		]`))
	}))

	repos, err := c.FetchRepos(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchRepos() error = %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("len(repos) = %d, want 2", len(repos))
	}
	if !repos[1].Fork {
		t.Error("repos[1].Fork = false, want true")
	}
	if repos[0].Language != "Go" {
		t.Errorf("Language = %q, want %q", repos[0].Language, "Go")
	}
}

func TestFetchEvents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octocat/events/public" {
			t.Errorf("path = %q, want /users/octocat/events/public", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"type": "PushEvent", "repo": {"name": "octocat/hello-world"}, "created_at": "2024-05-01T12:00:00Z"},
			{"type": "WatchEvent", "repo": {"name": "octocat/spoon-knife"}, "created_at": "2024-04-30T08:00:00Z"}
		]`))
	}))

	events, err := c.FetchEvents(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Type != "PushEvent" || events[0].Repo.Name != "octocat/hello-world" {
		t.Errorf("events[0] = %+v, want PushEvent on octocat/hello-world", events[0])
	}
}

func TestFetchUserMalformedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{{{not json`))
	}))

	_, err := c.FetchUser(context.Background(), "octocat")
	var up *profile.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("error = %v, want *profile.UpstreamError", err)
	}
}

func TestFetchPinned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		_, _ = w.Write([]byte(`{"data": {"user": {"pinnedItems": {"nodes": [
			{"name": "linguist", "nameWithOwner": "octocat/linguist", "description": "language detection",
			 "stargazerCount": 12000, "url": "https://github.com/octocat/linguist",
			 "primaryLanguage": {"name": "Ruby"}},
			{"name": "notes", "nameWithOwner": "octocat/notes", "description": "",
			 "stargazerCount": 3, "url": "https://github.com/octocat/notes", "primaryLanguage": null}
		]}}}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithGraphQLURL(srv.URL), WithToken("test-token"))
	repos, err := c.FetchPinned(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchPinned() error = %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("len(repos) = %d, want 2", len(repos))
	}
	if repos[0].Language != "Ruby" {
		t.Errorf("Language = %q, want %q", repos[0].Language, "Ruby")
	}
	if repos[1].Language != "" {
		t.Errorf("Language = %q, want empty for null primaryLanguage", repos[1].Language)
	}
}

func TestFetchPinnedUnknownUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"user": null}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithGraphQLURL(srv.URL), WithToken("test-token"))
	_, err := c.FetchPinned(context.Background(), "doesnotexist123456")
	var nf *profile.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *profile.NotFoundError", err)
	}
}
