package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/glitchidea/glichflow/internal/github/client"
)

// fakeGitHub serves the subset of the REST API the reconciler uses for a
// single repository.
type fakeGitHub struct {
	mu           sync.Mutex
	validToken   string
	issues       map[int]*client.Issue
	comments     map[int][]client.Comment
	failIssues   map[int]bool
	patches      []client.IssueInput
	posted       []string
	refreshCalls int
	rejected     int
	onComment    func(number int)
	nextIssue    int
	nextComment  int64
	now          time.Time
	server       *httptest.Server
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		validToken:  "valid-token",
		issues:      map[int]*client.Issue{},
		comments:    map[int][]client.Comment{},
		failIssues:  map[int]bool{},
		nextIssue:   100,
		nextComment: 9000,
		now:         time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/issues", f.auth(f.listIssues))
	mux.HandleFunc("POST /repos/{owner}/{repo}/issues", f.auth(f.createIssue))
	mux.HandleFunc("GET /repos/{owner}/{repo}/issues/{number}", f.auth(f.getIssue))
	mux.HandleFunc("PATCH /repos/{owner}/{repo}/issues/{number}", f.auth(f.patchIssue))
	mux.HandleFunc("GET /repos/{owner}/{repo}/issues/{number}/comments", f.auth(f.listComments))
	mux.HandleFunc("POST /repos/{owner}/{repo}/issues/{number}/comments", f.auth(f.createComment))
	mux.HandleFunc("POST /login/oauth/access_token", f.token)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitHub) addIssue(number int, title, state string) *client.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := &client.Issue{
		Number:    number,
		Title:     title,
		Body:      title + " body",
		State:     state,
		HTMLURL:   "https://github.com/acme/web/issues/" + strconv.Itoa(number),
		UpdatedAt: f.now,
	}
	f.issues[number] = issue
	return issue
}

func (f *fakeGitHub) addPullRequest(number int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues[number] = &client.Issue{
		Number:      number,
		Title:       "PR",
		State:       "open",
		UpdatedAt:   f.now,
		PullRequest: json.RawMessage(`{"url":"https://api.github.com/repos/acme/web/pulls/` + strconv.Itoa(number) + `"}`),
	}
}

func (f *fakeGitHub) setState(number int, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Minute)
	f.issues[number].State = state
	f.issues[number].UpdatedAt = f.now
}

func (f *fakeGitHub) addComment(number int, login, body string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextComment++
	f.comments[number] = append(f.comments[number], client.Comment{
		ID:        f.nextComment,
		Body:      body,
		User:      client.User{Login: login},
		UpdatedAt: f.now,
	})
	return f.nextComment
}

func (f *fakeGitHub) editComment(number int, id int64, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Minute)
	for i := range f.comments[number] {
		if f.comments[number][i].ID == id {
			f.comments[number][i].Body = body
			f.comments[number][i].UpdatedAt = f.now
		}
	}
}

func (f *fakeGitHub) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := r.Header.Get("Authorization") == "Bearer "+f.validToken
		if !valid {
			f.rejected++
		}
		f.mu.Unlock()
		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", "1767225600")
		next(w, r)
	}
}

func (f *fakeGitHub) listIssues(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page, _ := strconv.Atoi(r.URL.Query().Get("page")); page > 1 {
		writeJSON(w, http.StatusOK, []client.Issue{})
		return
	}
	state := r.URL.Query().Get("state")
	out := make([]client.Issue, 0, len(f.issues))
	for _, issue := range f.issues {
		if state == "open" && issue.State != "open" {
			continue
		}
		out = append(out, *issue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeGitHub) getIssue(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	number, _ := strconv.Atoi(r.PathValue("number"))
	if f.failIssues[number] {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream unavailable"})
		return
	}
	issue, ok := f.issues[number]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (f *fakeGitHub) createIssue(w http.ResponseWriter, r *http.Request) {
	var input client.IssueInput
	_ = json.NewDecoder(r.Body).Decode(&input)
	f.mu.Lock()
	f.nextIssue++
	number := f.nextIssue
	f.mu.Unlock()
	issue := f.addIssue(number, input.Title, "open")
	f.mu.Lock()
	issue.Body = input.Body
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, issue)
}

func (f *fakeGitHub) patchIssue(w http.ResponseWriter, r *http.Request) {
	var input client.IssueInput
	_ = json.NewDecoder(r.Body).Decode(&input)
	f.mu.Lock()
	defer f.mu.Unlock()
	number, _ := strconv.Atoi(r.PathValue("number"))
	issue, ok := f.issues[number]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	f.patches = append(f.patches, input)
	if input.Title != "" {
		issue.Title = input.Title
	}
	issue.Body = input.Body
	if input.State != "" {
		issue.State = input.State
	}
	f.now = f.now.Add(time.Minute)
	issue.UpdatedAt = f.now
	writeJSON(w, http.StatusOK, issue)
}

func (f *fakeGitHub) listComments(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page, _ := strconv.Atoi(r.URL.Query().Get("page")); page > 1 {
		writeJSON(w, http.StatusOK, []client.Comment{})
		return
	}
	number, _ := strconv.Atoi(r.PathValue("number"))
	out := append([]client.Comment{}, f.comments[number]...)
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeGitHub) createComment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Body string `json:"body"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	number, _ := strconv.Atoi(r.PathValue("number"))
	f.addComment(number, "glichflow-bot", payload.Body)
	f.mu.Lock()
	f.posted = append(f.posted, payload.Body)
	comment := f.comments[number][len(f.comments[number])-1]
	hook := f.onComment
	f.mu.Unlock()
	if hook != nil {
		hook(number)
	}
	writeJSON(w, http.StatusCreated, comment)
}

// token serves both the refresh and the authorization-code grants.
func (f *fakeGitHub) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_refresh_token"})
			return
		}
		f.refreshCalls++
		f.validToken = "fresh-token"
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "fresh-token",
			"refresh_token": "refresh-2",
			"token_type":    "bearer",
			"expires_in":    28800,
		})
	case "authorization_code":
		if r.PostForm.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_verification_code"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "user-token",
			"refresh_token": "user-refresh",
			"token_type":    "bearer",
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
