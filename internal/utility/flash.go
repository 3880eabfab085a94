package utility

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const flashSessionName = "lifelog-flash"

var sessionStore = sessions.NewCookieStore([]byte("development-only-secret"))

// InitSessions configures the cookie store used for flash messages.
func InitSessions(secret string, secure bool) {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(600)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	sessionStore = store
}

// SetFlash queues a one-time message for the next rendered page.
func SetFlash(c echo.Context, msg string) {
	session, err := sessionStore.Get(c.Request(), flashSessionName)
	if err != nil {
		log.Warn().Err(err).Msg("SetFlash: discarding unreadable session")
	}
	session.AddFlash(msg)
	if err := session.Save(c.Request(), c.Response()); err != nil {
		log.Error().Err(err).Msg("SetFlash: failed to save session")
	}
}

// PopFlashes returns and clears queued messages.
func PopFlashes(c echo.Context) []string {
	session, err := sessionStore.Get(c.Request(), flashSessionName)
	if err != nil {
		return nil
	}

	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(c.Request(), c.Response()); err != nil {
		log.Error().Err(err).Msg("PopFlashes: failed to save session")
	}

	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs
}
