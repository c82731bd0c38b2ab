// Package checker drives one domain query at a time from a form: it validates
// the input, calls the check endpoint and turns the outcome into a result and
// an alert.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"domaincheck/internal/alert"
	"domaincheck/internal/metrics"
	"domaincheck/internal/model"
	"domaincheck/internal/utils"

	"github.com/gabriel-vasile/mimetype"
)

const CheckPath = "/api/check-domain/"

// ErrSuperseded is returned by a submission cancelled by a newer one.
var ErrSuperseded = errors.New("superseded by a newer submission")

type Options struct {
	// BaseURL is prefixed to CheckPath, e.g. http://127.0.0.1:5000.
	BaseURL    string
	HTTPClient *http.Client
	Alerts     *alert.Store
	// Connectivity defaults to InterfaceProbe.
	Connectivity Connectivity
	// CancelInFlight aborts the previous request when a new one starts.
	CancelInFlight bool
	Metrics        *metrics.Metrics
}

type Controller struct {
	baseURL        string
	client         *http.Client
	alerts         *alert.Store
	online         Connectivity
	cancelInFlight bool
	metrics        *metrics.Metrics

	mu       sync.Mutex
	domain   string
	result   model.Result
	inFlight int
	latest   uint64
	cancel   context.CancelFunc
	subs     map[chan struct{}]struct{}
}

func New(opts Options) *Controller {
	c := &Controller{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		client:         opts.HTTPClient,
		alerts:         opts.Alerts,
		online:         opts.Connectivity,
		cancelInFlight: opts.CancelInFlight,
		metrics:        opts.Metrics,
		subs:           make(map[chan struct{}]struct{}),
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.alerts == nil {
		c.alerts = alert.NewStore()
	}
	if c.online == nil {
		c.online = InterfaceProbe{}
	}
	return c
}

// Submit runs one check for input and blocks until it settles. The outcome is
// also published as an alert, and on success as the held result. The returned
// error is the one the alert describes.
func (c *Controller) Submit(ctx context.Context, input string) error {
	c.mu.Lock()
	c.domain = input
	c.mu.Unlock()

	if strings.TrimSpace(input) == "" {
		c.alerts.Raise(TitleError, MsgEmptyDomain, model.SeverityDestructive)
		c.metrics.ObserveSubmission(outcome(&ValidationError{}))
		return &ValidationError{Input: input}
	}

	ctx, id, done := c.begin(ctx)
	defer done()

	start := time.Now()
	result, err := c.fetch(ctx, input)

	if err != nil {
		online := c.online.Online()
		msg := alertMessage(err, online)
		if !c.commit(id, func() {
			c.result = nil
			c.alerts.Raise(TitleError, msg, model.SeverityDestructive)
		}) {
			utils.Log.Debug("dropping superseded check", utils.Field("domain", input))
			return ErrSuperseded
		}
		c.metrics.ObserveSubmission(outcome(err))
		utils.Log.Warn("domain check failed",
			utils.Field("domain", input),
			utils.Field("outcome", outcome(err)),
			utils.Field("online", online),
			utils.Field("error", err.Error()),
			utils.Field("elapsed", time.Since(start).String()),
		)
		return err
	}

	if !c.commit(id, func() {
		c.result = result
		c.alerts.Raise(TitleSuccess, MsgCheckSucceeded, model.SeverityInformational)
	}) {
		utils.Log.Debug("dropping superseded check", utils.Field("domain", input))
		return ErrSuperseded
	}
	c.metrics.ObserveSubmission(outcome(nil))
	utils.Log.Info("domain check completed",
		utils.Field("domain", input),
		utils.Field("fields", len(result)),
		utils.Field("elapsed", time.Since(start).String()),
	)
	return nil
}

// begin marks a request in flight and, with CancelInFlight, aborts the one
// before it. done must be called when the request settles.
func (c *Controller) begin(parent context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	c.latest++
	id := c.latest
	c.inFlight++
	if c.cancelInFlight {
		if c.cancel != nil {
			c.cancel()
		}
		c.cancel = cancel
	}
	c.mu.Unlock()
	c.notify()

	return ctx, id, func() {
		cancel()
		c.mu.Lock()
		c.inFlight--
		if c.latest == id {
			c.cancel = nil
		}
		c.mu.Unlock()
		c.notify()
	}
}

// commit publishes the outcome of request id with publish, unless a newer
// request has superseded it under CancelInFlight. The check and the publish
// happen under one lock, so a superseding begin cannot slip in between.
func (c *Controller) commit(id uint64, publish func()) bool {
	c.mu.Lock()
	if c.cancelInFlight && id != c.latest {
		c.mu.Unlock()
		return false
	}
	publish()
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Controller) fetch(ctx context.Context, domain string) (model.Result, error) {
	endpoint := c.baseURL + CheckPath + url.PathEscape(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || !strings.Contains(strings.ToLower(contentType), jsonContentTypeToken) {
		head := make([]byte, 512)
		n, _ := io.ReadFull(resp.Body, head)
		return nil, &UnexpectedContentTypeError{
			ContentType: contentType,
			Detected:    mimetype.Detect(head[:n]).String(),
		}
	}

	var body model.CheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ParseError{Err: err}
	}
	if !body.Success {
		return nil, &ApplicationError{Message: body.Error}
	}
	return model.Result(body.Data), nil
}

// State returns a snapshot of the form for rendering.
func (c *Controller) State() model.ViewState {
	c.mu.Lock()
	st := model.ViewState{
		Domain:  c.domain,
		Loading: c.inFlight > 0,
		Result:  c.result.Clone(),
	}
	c.mu.Unlock()

	if a, ok := c.alerts.Current(); ok {
		st.Alert = &a
	}
	return st
}

func (c *Controller) Result() model.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Clone()
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

func (c *Controller) Alerts() *alert.Store {
	return c.alerts
}

// Subscribe returns a channel signalled when loading or the result changes.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
