package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"domaincheck/internal/alert"
	"domaincheck/internal/model"
	"domaincheck/internal/utils"

	"github.com/benbjohnson/clock"
)

func init() {
	utils.TestInitLogger()
}

func newTestController(t *testing.T, h http.HandlerFunc, online Connectivity) (*Controller, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(ts.Close)

	c := New(Options{
		BaseURL:      ts.URL,
		HTTPClient:   ts.Client(),
		Alerts:       alert.NewStore(alert.WithClock(clock.NewMock())),
		Connectivity: online,
	})
	return c, &calls
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}
}

func currentAlert(t *testing.T, c *Controller) model.Alert {
	t.Helper()
	a, ok := c.Alerts().Current()
	if !ok {
		t.Fatal("Expected an alert to be raised")
	}
	return a
}

func TestSubmitEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		c, calls := newTestController(t, jsonHandler(200, `{"success":true}`), AlwaysOnline)

		err := c.Submit(context.Background(), input)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected ValidationError for %q, got %v", input, err)
		}
		if atomic.LoadInt32(calls) != 0 {
			t.Errorf("Empty input %q issued a request", input)
		}

		a := currentAlert(t, c)
		if a.Severity != model.SeverityDestructive || a.Description != MsgEmptyDomain {
			t.Errorf("Unexpected alert for %q: %+v", input, a)
		}
		if c.Loading() {
			t.Error("Loading set by a rejected submission")
		}
	}
}

func TestSubmitSuccess(t *testing.T) {
	var gotPath string
	c, calls := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		jsonHandler(200, `{"success": true, "data": {"available": true}}`)(w, r)
	}, AlwaysOnline)

	if err := c.Submit(context.Background(), "example.com"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("Expected exactly one request, got %d", *calls)
	}
	if gotPath != "/api/check-domain/example.com" {
		t.Errorf("Unexpected request path %s", gotPath)
	}

	res := c.Result()
	if len(res) != 1 || res["available"] != true {
		t.Errorf("Expected result {available:true}, got %v", res)
	}

	a := currentAlert(t, c)
	if a.Severity != model.SeverityInformational || !strings.Contains(a.Description, "successfully") {
		t.Errorf("Unexpected alert: %+v", a)
	}
	if c.Loading() {
		t.Error("Loading still set after settlement")
	}
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error, desc string)
	}{
		{
			name:    "status 404",
			handler: jsonHandler(404, `{"success":false}`),
			check: func(t *testing.T, err error, desc string) {
				var terr *TransportError
				if !errors.As(err, &terr) || terr.Status != 404 {
					t.Errorf("Expected TransportError 404, got %v", err)
				}
				if !strings.Contains(desc, "404") {
					t.Errorf("Description %q does not mention 404", desc)
				}
			},
		},
		{
			name: "html body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = fmt.Fprint(w, "<!DOCTYPE html><html><body>oops</body></html>")
			},
			check: func(t *testing.T, err error, desc string) {
				var cerr *UnexpectedContentTypeError
				if !errors.As(err, &cerr) {
					t.Fatalf("Expected UnexpectedContentTypeError, got %v", err)
				}
				if !strings.HasPrefix(cerr.Detected, "text/html") {
					t.Errorf("Expected sniffed kind text/html, got %s", cerr.Detected)
				}
				if !strings.Contains(desc, "non-JSON") {
					t.Errorf("Description %q does not mention non-JSON content", desc)
				}
			},
		},
		{
			name: "missing content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header()["Content-Type"] = nil
				_, _ = fmt.Fprint(w, `{"success":true}`)
			},
			check: func(t *testing.T, err error, desc string) {
				var cerr *UnexpectedContentTypeError
				if !errors.As(err, &cerr) {
					t.Errorf("Expected UnexpectedContentTypeError, got %v", err)
				}
			},
		},
		{
			name:    "malformed json",
			handler: jsonHandler(200, `{"success": tru`),
			check: func(t *testing.T, err error, desc string) {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Errorf("Expected ParseError, got %v", err)
				}
				if desc != err.Error() {
					t.Errorf("Expected description %q, got %q", err.Error(), desc)
				}
			},
		},
		{
			name:    "application error",
			handler: jsonHandler(200, `{"success": false, "error": "Domain is taken"}`),
			check: func(t *testing.T, err error, desc string) {
				var aerr *ApplicationError
				if !errors.As(err, &aerr) {
					t.Errorf("Expected ApplicationError, got %v", err)
				}
				if desc != "Domain is taken" {
					t.Errorf("Expected description %q, got %q", "Domain is taken", desc)
				}
			},
		},
		{
			name:    "application error without message",
			handler: jsonHandler(200, `{"success": false}`),
			check: func(t *testing.T, err error, desc string) {
				if desc != MsgDefaultFailure {
					t.Errorf("Expected default description, got %q", desc)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, tt.handler, AlwaysOnline)
			// Seed a previous result so clearing is observable.
			c.mu.Lock()
			c.result = model.Result{"stale": true}
			c.mu.Unlock()

			err := c.Submit(context.Background(), "example.com")
			if err == nil {
				t.Fatal("Expected an error")
			}

			a := currentAlert(t, c)
			if a.Severity != model.SeverityDestructive || a.Title != TitleError {
				t.Errorf("Expected destructive error alert, got %+v", a)
			}
			if c.Result() != nil {
				t.Errorf("Result not cleared: %v", c.Result())
			}
			if c.Loading() {
				t.Error("Loading still set after failure")
			}
			tt.check(t, err, a.Description)
		})
	}
}

func TestSubmitNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(Options{
		BaseURL:      url,
		Alerts:       alert.NewStore(alert.WithClock(clock.NewMock())),
		Connectivity: AlwaysOnline,
	})

	err := c.Submit(context.Background(), "example.com")
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if a := currentAlert(t, c); a.Description != err.Error() {
		t.Errorf("Expected description %q, got %q", err.Error(), a.Description)
	}
}

func TestSubmitOfflineOverride(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"transport":    jsonHandler(500, `{}`),
		"content type": func(w http.ResponseWriter, r *http.Request) { w.Header().Set("Content-Type", "text/plain") },
		"parse":        jsonHandler(200, `not json`),
		"application":  jsonHandler(200, `{"success":false,"error":"Domain is taken"}`),
	}

	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestController(t, h, AlwaysOffline)
			if err := c.Submit(context.Background(), "example.com"); err == nil {
				t.Fatal("Expected an error")
			}
			if a := currentAlert(t, c); a.Description != MsgOffline {
				t.Errorf("Expected offline message, got %q", a.Description)
			}
		})
	}

	t.Run("success unaffected", func(t *testing.T) {
		c, _ := newTestController(t, jsonHandler(200, `{"success":true,"data":{"a":1}}`), AlwaysOffline)
		if err := c.Submit(context.Background(), "example.com"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if a := currentAlert(t, c); a.Description != MsgCheckSucceeded {
			t.Errorf("Offline probe changed a success alert: %q", a.Description)
		}
	})
}

func TestSubmitEscapesDomain(t *testing.T) {
	var gotPath, gotDomain string
	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotDomain = strings.TrimPrefix(r.URL.Path, CheckPath)
		jsonHandler(200, `{"success":true,"data":{}}`)(w, r)
	}, AlwaysOnline)

	if err := c.Submit(context.Background(), "a b/c?.com"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if gotPath != "/api/check-domain/a%20b%2Fc%3F.com" {
		t.Errorf("Unexpected escaped path %s", gotPath)
	}
	if gotDomain != "a b/c?.com" {
		t.Errorf("Domain did not round-trip, got %q", gotDomain)
	}
}

func TestLoadingWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		jsonHandler(200, `{"success":true,"data":{"available":false}}`)(w, r)
	}, AlwaysOnline)

	updates, cancel := c.Subscribe()
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Submit(context.Background(), "example.com") }()

	<-arrived
	if !c.Loading() || !c.State().Loading {
		t.Error("Loading not set while request is in flight")
	}
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Error("No update published on dispatch")
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	st := c.State()
	if st.Loading || st.Domain != "example.com" || st.Alert == nil || st.Result["available"] != false {
		t.Errorf("Unexpected final state %+v", st)
	}
}

// Without cancellation the response that settles last decides the state.
func TestLastSettledWins(t *testing.T) {
	slowArrived := make(chan struct{})
	releaseSlow := make(chan struct{})
	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "slow.com") {
			close(slowArrived)
			<-releaseSlow
			jsonHandler(200, `{"success":true,"data":{"domain":"slow.com"}}`)(w, r)
			return
		}
		jsonHandler(200, `{"success":true,"data":{"domain":"fast.com"}}`)(w, r)
	}, AlwaysOnline)

	slowErr := make(chan error, 1)
	go func() { slowErr <- c.Submit(context.Background(), "slow.com") }()
	<-slowArrived

	if err := c.Submit(context.Background(), "fast.com"); err != nil {
		t.Fatalf("fast submit failed: %v", err)
	}
	if !c.Loading() {
		t.Error("Loading cleared while the first submission is still in flight")
	}

	close(releaseSlow)
	if err := <-slowErr; err != nil {
		t.Fatalf("slow submit failed: %v", err)
	}
	if got := c.Result()["domain"]; got != "slow.com" {
		t.Errorf("Expected the later-settling response to win, got %v", got)
	}
}

func TestCancelInFlight(t *testing.T) {
	slowArrived := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "slow.com") {
			close(slowArrived)
			<-r.Context().Done()
			return
		}
		jsonHandler(200, `{"success":true,"data":{"domain":"fast.com"}}`)(w, r)
	}))
	defer ts.Close()

	c := New(Options{
		BaseURL:        ts.URL,
		HTTPClient:     ts.Client(),
		Alerts:         alert.NewStore(alert.WithClock(clock.NewMock())),
		Connectivity:   AlwaysOnline,
		CancelInFlight: true,
	})

	slowErr := make(chan error, 1)
	go func() { slowErr <- c.Submit(context.Background(), "slow.com") }()
	<-slowArrived

	if err := c.Submit(context.Background(), "fast.com"); err != nil {
		t.Fatalf("fast submit failed: %v", err)
	}

	select {
	case err := <-slowErr:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("Expected ErrSuperseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request was not cancelled")
	}

	if got := c.Result()["domain"]; got != "fast.com" {
		t.Errorf("Superseded request overwrote the result: %v", got)
	}
	if a := currentAlert(t, c); a.Severity != model.SeverityInformational {
		t.Errorf("Superseded request raised an alert: %+v", a)
	}
	if c.Loading() {
		t.Error("Loading still set after both submissions settled")
	}
}

func TestCommitDropsSupersededRequest(t *testing.T) {
	c := New(Options{
		Alerts:         alert.NewStore(alert.WithClock(clock.NewMock())),
		CancelInFlight: true,
	})

	_, oldID, oldDone := c.begin(context.Background())
	defer oldDone()
	_, newID, newDone := c.begin(context.Background())
	defer newDone()

	ran := false
	if c.commit(oldID, func() { ran = true }) {
		t.Error("commit accepted a superseded request")
	}
	if ran {
		t.Error("superseded request published its outcome")
	}

	if !c.commit(newID, func() { c.result = model.Result{"domain": "fast.com"} }) {
		t.Fatal("commit rejected the latest request")
	}
	if got := c.Result()["domain"]; got != "fast.com" {
		t.Errorf("Expected the latest result, got %v", got)
	}
}

func TestCommitLastSettledWins(t *testing.T) {
	c := New(Options{Alerts: alert.NewStore(alert.WithClock(clock.NewMock()))})

	_, oldID, oldDone := c.begin(context.Background())
	defer oldDone()
	_, _, newDone := c.begin(context.Background())
	defer newDone()

	if !c.commit(oldID, func() { c.result = model.Result{"domain": "slow.com"} }) {
		t.Error("Without CancelInFlight every settled request publishes")
	}
	if got := c.Result()["domain"]; got != "slow.com" {
		t.Errorf("got %v", got)
	}
}

func TestAlertMessage(t *testing.T) {
	if got := alertMessage(&TransportError{Status: 500}, true); got != "HTTP error! status: 500" {
		t.Errorf("Unexpected message %q", got)
	}
	if got := alertMessage(errors.New(""), true); got != MsgUnknownFailure {
		t.Errorf("Expected fallback message, got %q", got)
	}
	if got := alertMessage(&TransportError{Status: 500}, false); got != MsgOffline {
		t.Errorf("Expected offline message, got %q", got)
	}
}
