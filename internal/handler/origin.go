package handler

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"domaincheck/internal/utils"
)

// checkOrigin accepts same-host websocket upgrades, the forwarded host behind a
// trusted proxy, and ALLOWED_DOMAIN with its subdomains.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.Config.SkipOriginCheck {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if u.Host == r.Host {
		return true
	}
	if h.Config.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" && fwd == u.Host {
			return true
		}
	}

	originName := u.Hostname()
	if d := h.Config.AllowedDomain; d != "" {
		if originName == d || strings.HasSuffix(originName, "."+d) {
			return true
		}
	}
	if originName == "localhost" && hostOnly(r.Host) == "localhost" {
		return true
	}

	utils.Log.Warn("websocket origin rejected", utils.Field("origin", origin), utils.Field("host", r.Host))
	return false
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
