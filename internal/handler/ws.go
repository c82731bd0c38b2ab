package handler

import (
	"net/http"
	"sync"
	"time"

	"domaincheck/internal/model"
	"domaincheck/internal/session"
	"domaincheck/internal/utils"

	"github.com/labstack/echo/v4"
)

const wsWriteTimeout = 5 * time.Second

type WSMessage struct {
	Type string          `json:"type"`
	Data model.ViewState `json:"data"`
}

// HandleWS pushes a ViewState snapshot on connect and after every change to
// the session's result, loading flag or alert.
func (h *Handler) HandleWS(c echo.Context) error {
	var id string
	if ck, err := c.Cookie(session.CookieName); err == nil {
		id = ck.Value
	}
	ctrl, sid, created := h.Sessions.Acquire(id)
	header := http.Header{}
	if created {
		header.Add("Set-Cookie", h.sessionCookie(sid).String())
	}

	ws, err := h.Upgrader.Upgrade(c.Response(), c.Request(), header)
	if err != nil {
		return err
	}
	defer func() {
		_ = ws.Close()
	}()

	stateCh, unsubState := ctrl.Subscribe()
	defer unsubState()
	alertCh, unsubAlert := ctrl.Alerts().Subscribe()
	defer unsubAlert()

	// The client never sends anything; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var wsMu sync.Mutex
	send := func(msgType string) error {
		wsMu.Lock()
		defer wsMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return ws.WriteJSON(WSMessage{Type: msgType, Data: ctrl.State()})
	}

	if err := send("snapshot"); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		var msgType string
		select {
		case <-closed:
			return nil
		case <-ctx.Done():
			return nil
		case <-stateCh:
			msgType = "state"
		case <-alertCh:
			msgType = "alert"
		}
		if err := send(msgType); err != nil {
			utils.Log.Debug("websocket write failed", utils.Field("error", err.Error()))
			return nil
		}
	}
}
