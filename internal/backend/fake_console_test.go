package backend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const (
	testUser     = "admin"
	testPassword = "nimda"
	preToken     = "tok-pre"
)

// fakeConsole imitates the console login flow: an anonymous session cookie
// and hidden-input token on the login page, a form post that rotates the
// session cookie, and a landing page carrying the post-login meta token.
type fakeConsole struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	anonSeq    int
	authSeq    int
	current    string // authenticated JSESSIONID
	token      string // post-login token bound to current
	password   string
	loginPosts int
	protected  int

	// expire makes the next n protected requests answer with a login redirect.
	expire int
	// loginDelay slows down the login page to widen race windows.
	loginDelay time.Duration
	// handler serves protected endpoints once the session checks pass.
	handler http.HandlerFunc
}

func newFakeConsole(t *testing.T) *fakeConsole {
	t.Helper()
	f := &fakeConsole{t: t, password: testPassword}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /hac/{$}", f.root)
	mux.HandleFunc("GET /hac/login.jsp", f.loginPage)
	mux.HandleFunc("POST /hac/j_spring_security_check", f.submit)
	mux.HandleFunc("/hac/console/", f.console)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeConsole) config() Config {
	return Config{
		BaseURL:        f.server.URL,
		Username:       testUser,
		Password:       testPassword,
		RequestTimeout: 2 * time.Second,
	}
}

func (f *fakeConsole) root(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, err := r.Cookie("JSESSIONID"); err == nil && c.Value == f.current && f.current != "" {
		w.Header().Set("Content-Type", "text/html;charset=UTF-8")
		fmt.Fprintf(w, `<html><head><meta name="_csrf_header" content="X-CSRF-TOKEN"/>`+
			`<meta name="_csrf" content="%s"/></head><body>hac</body></html>`, f.token)
		return
	}

	f.anonSeq++
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: fmt.Sprintf("anon-%d", f.anonSeq), Path: "/hac"})
	http.SetCookie(w, &http.Cookie{Name: "ROUTE", Value: "node1", Path: "/"})
	http.Redirect(w, r, "/hac/login.jsp", http.StatusFound)
}

func (f *fakeConsole) loginPage(w http.ResponseWriter, r *http.Request) {
	if f.loginDelay > 0 {
		time.Sleep(f.loginDelay)
	}
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	fmt.Fprintf(w, `<html><body><form action="/hac/j_spring_security_check" method="POST">`+
		`<input type="text" name="j_username"><input type="password" name="j_password">`+
		`<input type="hidden" name="_csrf" value="%s"></form></body></html>`, preToken)
}

func (f *fakeConsole) submit(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginPosts++

	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse login form: %v", err)
	}
	anon, err := r.Cookie("JSESSIONID")
	if err != nil || anon.Value == "" {
		f.t.Errorf("login post without anonymous session cookie")
	}
	if r.PostForm.Get("_csrf") != preToken ||
		r.PostForm.Get("j_username") != testUser ||
		r.PostForm.Get("j_password") != f.password {
		http.Redirect(w, r, "/hac/login.jsp?login_error=1", http.StatusFound)
		return
	}

	f.authSeq++
	f.current = fmt.Sprintf("auth-%d", f.authSeq)
	f.token = fmt.Sprintf("tok-post-%d", f.authSeq)
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: f.current, Path: "/hac"})
	http.Redirect(w, r, "/hac/", http.StatusFound)
}

func (f *fakeConsole) console(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.protected++
	c, err := r.Cookie("JSESSIONID")
	valid := err == nil && c.Value == f.current && r.Header.Get("X-CSRF-TOKEN") == f.token
	if valid && f.expire > 0 {
		f.expire--
		f.current = ""
		valid = false
	}
	handler := f.handler
	f.mu.Unlock()

	if !valid {
		http.Redirect(w, r, "/hac/login.jsp?error", http.StatusFound)
		return
	}
	handler(w, r)
}

func (f *fakeConsole) counts() (loginPosts, protected int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginPosts, f.protected
}

func (f *fakeConsole) setPassword(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = p
}

func (f *fakeConsole) setExpire(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expire = n
}

// countingObserver records backend events for assertions.
type countingObserver struct {
	mu       sync.Mutex
	logins   int
	failed   int
	expired  int
	requests map[string]int
}

func (o *countingObserver) LoginFinished(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins++
	if err != nil {
		o.failed++
	}
}

func (o *countingObserver) SessionExpired() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expired++
}

func (o *countingObserver) RequestFinished(surface string, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.requests == nil {
		o.requests = map[string]int{}
	}
	o.requests[surface]++
}
