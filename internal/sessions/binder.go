package sessions

import (
	"crypto/rand"
	"net/http"
	"time"

	gsessions "github.com/gorilla/sessions"

	"github.com/kylevidrine/portal/pkg/logger"
)

const sidKey = "sid"

// Binder maps a browser to its server-side Session. The cookie carries only the
// opaque session id.
type Binder struct {
	store gsessions.Store
	name  string
	svc   *Service
}

// NewBinder creates a cookie binder. An empty secret gets a random per-process
// key, which invalidates cookies on restart.
func NewBinder(svc *Service, name string, secret []byte, maxAge time.Duration, secure bool) *Binder {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
		logger.Warnf("session cookie secret not configured; using a random key")
	}
	store := gsessions.NewCookieStore(secret)
	store.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		// Lax so the cookie survives the provider's top-level redirect back to us.
		SameSite: http.SameSiteLaxMode,
	}
	if name == "" {
		name = "portal_session"
	}
	return &Binder{store: store, name: name, svc: svc}
}

// Service exposes the underlying session service.
func (b *Binder) Service() *Service { return b.svc }

// Peek returns the request's session without creating one; nil when absent.
func (b *Binder) Peek(r *http.Request) (*Session, error) {
	cs, err := b.store.Get(r, b.name)
	if err != nil {
		// undecodable cookie: treat as no session
		return nil, nil
	}
	sid, _ := cs.Values[sidKey].(string)
	return b.svc.Load(r.Context(), sid)
}

// Current returns the request's session, starting one and setting the cookie
// when none exists.
func (b *Binder) Current(w http.ResponseWriter, r *http.Request) (*Session, error) {
	sess, err := b.Peek(r)
	if err != nil || sess != nil {
		return sess, err
	}
	sess, err = b.svc.Start(r.Context())
	if err != nil {
		return nil, err
	}
	cs, _ := b.store.New(r, b.name)
	cs.Values[sidKey] = sess.ID
	if err := cs.Save(r, w); err != nil {
		return nil, err
	}
	return sess, nil
}

// Clear expires the cookie and drops the server-side session.
func (b *Binder) Clear(w http.ResponseWriter, r *http.Request, sess *Session) error {
	cs, _ := b.store.New(r, b.name)
	cs.Options.MaxAge = -1
	if err := cs.Save(r, w); err != nil {
		return err
	}
	return b.svc.Forget(r.Context(), sess)
}
