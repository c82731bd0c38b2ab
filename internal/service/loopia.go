package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"domaincheck/internal/utils"

	"github.com/kolo/xmlrpc"
	"golang.org/x/time/rate"
)

const (
	LoopiaEndpoint = "https://api.loopia.se/RPCSERV"
	// Loopia allows 60 API calls per hour per account.
	loopiaHourlyBudget = 60
)

var ErrLoopiaBudget = errors.New("loopia: hourly API call budget exhausted")

// LoopiaClient answers availability from the registrar's own API. It prepends
// the credentials to every call and keeps under the hourly call budget.
type LoopiaClient struct {
	username string
	password string
	rpc      *xmlrpc.Client
	budget   *rate.Limiter
	now      func() time.Time
}

func NewLoopiaClient(endpoint, username, password string) (*LoopiaClient, error) {
	if endpoint == "" {
		endpoint = LoopiaEndpoint
	}
	transport := &http.Transport{ResponseHeaderTimeout: 15 * time.Second}
	rpc, err := xmlrpc.NewClient(endpoint, transport)
	if err != nil {
		return nil, err
	}
	return &LoopiaClient{
		username: username,
		password: password,
		rpc:      rpc,
		budget:   rate.NewLimiter(rate.Every(time.Hour/loopiaHourlyBudget), loopiaHourlyBudget),
		now:      time.Now,
	}, nil
}

func (c *LoopiaClient) reserveCall() error {
	if !c.budget.AllowN(c.now(), 1) {
		return ErrLoopiaBudget
	}
	return nil
}

// IsFree reports whether domain can be registered.
func (c *LoopiaClient) IsFree(ctx context.Context, domain string) (bool, error) {
	if err := c.reserveCall(); err != nil {
		return false, err
	}

	type reply struct {
		status string
		err    error
	}
	ch := make(chan reply, 1)
	go func() {
		var status string
		err := c.rpc.Call("domainIsFree", []interface{}{c.username, c.password, domain}, &status)
		ch <- reply{status, err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		utils.Log.Warn("loopia call failed", utils.Field("domain", domain), utils.Field("error", r.err.Error()))
		return false, fmt.Errorf("loopia domainIsFree: %w", r.err)
	}

	switch r.status {
	case "OK":
		return true, nil
	case "DOMAIN_OCCUPIED":
		return false, nil
	default:
		return false, fmt.Errorf("loopia domainIsFree: %s", r.status)
	}
}

func (c *LoopiaClient) Close() error {
	return c.rpc.Close()
}
