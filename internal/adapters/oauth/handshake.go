// Package oauth runs the OAuth 1.0a three-legged handshake against
// MotorsportReg and signs API requests.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
	"github.com/okian/hpde-analytics/pkg/metrics"
)

// Token endpoints relative to the API base URL.
const (
	RequestTokenPath = "/rest/tokens/request"
	AccessTokenPath  = "/rest/tokens/access"
)

// Defaults applied by New.
const (
	DefaultAuthorizeURL = "https://www.motorsportreg.com/index.cfm/event/oauth"
	DefaultTimeout      = 300 * time.Second
)

// defaultListenHosts covers both loopback families, since the callback URL
// names "localhost" and browsers may resolve it to either.
var defaultListenHosts = []string{"127.0.0.1", "::1"} //nolint:gochecknoglobals // static default

// State is a handshake state.
type State int

// Handshake states. AccessTokenObtained and Failed are terminal.
const (
	StateStart State = iota
	StateRequestTokenObtained
	StateAwaitingAuthorization
	StateAccessTokenObtained
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateRequestTokenObtained:
		return "REQUEST_TOKEN_OBTAINED"
	case StateAwaitingAuthorization:
		return "AWAITING_USER_AUTHORIZATION"
	case StateAccessTokenObtained:
		return "ACCESS_TOKEN_OBTAINED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateAccessTokenObtained || s == StateFailed
}

// TokenSaver persists a confirmed access token.
type TokenSaver interface {
	Save(ctx context.Context, tok model.TokenPair) error
}

// ProfileEnricher fills profile data on a freshly issued token.
type ProfileEnricher func(ctx context.Context, tok model.TokenPair) (model.TokenPair, error)

// Handshake obtains an access token for the user. A Handshake may be run
// any number of times; each Run is independent.
type Handshake struct {
	creds        model.Credentials
	store        TokenSaver
	client       *http.Client
	authorizeURL string
	timeout      time.Duration
	opener       BrowserOpener
	listenHosts  []string
	enrich       ProfileEnricher
	onTransition func(from, to State)
	logger       logger.Logger
	now          func() time.Time
}

// New returns a handshake for creds that saves tokens to store.
func New(creds model.Credentials, store TokenSaver, opts ...Option) *Handshake {
	h := &Handshake{
		creds:        creds,
		store:        store,
		client:       &http.Client{Timeout: 30 * time.Second},
		authorizeURL: DefaultAuthorizeURL,
		timeout:      DefaultTimeout,
		opener:       PrintOpener{W: os.Stdout},
		listenHosts:  defaultListenHosts,
		logger:       logger.Get().Named("oauth"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// flow is the per-run state carried between transitions.
type flow struct {
	state         State
	requestToken  string
	requestSecret string
	listener      *listener
	token         model.TokenPair
	err           error
}

func (f *flow) release() {
	if f.listener != nil {
		f.listener.Close()
		f.listener = nil
	}
}

// fail records the failure. An *Error already carrying a kind keeps it.
func (f *flow) fail(kind Kind, err error) State {
	var oe *Error
	if errors.As(err, &oe) {
		oe.State = f.state
		f.err = oe
		return StateFailed
	}
	f.err = newError(kind, f.state, err)
	return StateFailed
}

// Run drives the handshake to a terminal state. On success the returned
// token has already been saved. The callback listener is released before
// Run returns on every path.
func (h *Handshake) Run(ctx context.Context) (model.TokenPair, error) {
	start := h.now()
	f := &flow{state: StateStart}
	defer f.release()

	for !f.state.Terminal() {
		var next State
		switch f.state {
		case StateStart:
			next = h.fromStart(ctx, f)
		case StateRequestTokenObtained:
			next = h.fromRequestTokenObtained(ctx, f)
		case StateAwaitingAuthorization:
			next = h.fromAwaiting(ctx, f)
		}
		h.transition(ctx, f, next)
	}

	seconds := h.now().Sub(start).Seconds()
	if f.state == StateFailed {
		metrics.RecordHandshake(metrics.OutcomeFailure, seconds)
		h.logger.Error(ctx, "authorization failed", logger.Error(f.err))
		return model.TokenPair{}, f.err
	}
	metrics.RecordHandshake(metrics.OutcomeSuccess, seconds)
	h.logger.Info(ctx, "authorization complete", logger.String("profile_id", f.token.ProfileID))
	return f.token, nil
}

func (h *Handshake) transition(ctx context.Context, f *flow, next State) {
	h.logger.Debug(ctx, "handshake transition",
		logger.String("from", f.state.String()),
		logger.String("to", next.String()))
	if h.onTransition != nil {
		h.onTransition(f.state, next)
	}
	f.state = next
}

// fromStart obtains the request token.
func (h *Handshake) fromStart(ctx context.Context, f *flow) State {
	if !h.creds.Valid() {
		return f.fail(KindSigningFailure, fmt.Errorf("consumer key and secret are not configured"))
	}

	token, secret, err := h.tokenClient(ctx).RequestToken()
	if err != nil {
		return f.fail(KindRequestTokenFailed, err)
	}
	f.requestToken, f.requestSecret = token, secret
	return StateRequestTokenObtained
}

// fromRequestTokenObtained binds the callback listener and presents the
// authorization URL.
func (h *Handshake) fromRequestTokenObtained(ctx context.Context, f *flow) State {
	l, err := startListener(h.listenHosts, h.creds.CallbackPort, h.logger)
	if err != nil {
		return f.fail(KindCallbackUnavailable, err)
	}
	f.listener = l

	authURL, err := Consumer(h.creds, h.authorizeURL).AuthorizationURL(f.requestToken)
	if err != nil {
		return f.fail(KindRequestTokenFailed, err)
	}
	if err := h.opener.Open(ctx, authURL.String()); err != nil {
		h.logger.Warn(ctx, "could not open browser, open the printed URL manually", logger.Error(err))
	}
	h.logger.Info(ctx, "waiting for authorization callback",
		logger.Int("port", l.Port()),
		logger.Duration("timeout", h.timeout))
	return StateAwaitingAuthorization
}

// fromAwaiting waits for the redirect, then exchanges the verifier and
// persists the access token.
func (h *Handshake) fromAwaiting(ctx context.Context, f *flow) State {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	var res callbackResult
	for {
		select {
		case <-ctx.Done():
			f.release()
			return f.fail(KindInterrupted, ctx.Err())
		case <-timer.C:
			f.release()
			return f.fail(KindAuthorizationTimeout, fmt.Errorf("no callback within %s", h.timeout))
		case res = <-f.listener.results:
		}
		if res.Denied == "" && res.Token != "" && res.Token != f.requestToken {
			h.logger.Warn(ctx, "ignoring callback for a different request token")
			continue
		}
		break
	}
	f.release()

	if res.Denied != "" {
		return f.fail(KindAuthorizationDenied, fmt.Errorf("%s: %s", res.Denied, res.Description))
	}

	access, accessSecret, err := h.tokenClient(ctx).AccessToken(f.requestToken, f.requestSecret, res.Verifier)
	if err != nil {
		return f.fail(KindAccessTokenFailed, err)
	}
	tok := model.TokenPair{
		AccessToken:       access,
		AccessTokenSecret: accessSecret,
		ObtainedAt:        h.now().UTC(),
	}

	if h.enrich != nil {
		enriched, err := h.enrich(ctx, tok)
		if err != nil {
			h.logger.Warn(ctx, "profile lookup failed, saving token without profile", logger.Error(err))
		} else {
			tok = enriched
		}
	}

	if err := h.store.Save(ctx, tok); err != nil {
		return f.fail(KindStorageError, err)
	}
	f.token = tok
	return StateAccessTokenObtained
}
