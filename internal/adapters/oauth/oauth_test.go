package oauth_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/hpde-analytics/internal/adapters/oauth"
	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestSignedClient(t *testing.T) {
	Convey("Given consumer credentials and an access token", t, func() {
		var auth, query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			query = r.URL.RawQuery
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		creds := model.Credentials{ConsumerKey: "ck", ConsumerSecret: "cs", BaseURL: srv.URL}

		Convey("When a request goes through the signed client", func() {
			client, err := oauth.SignedClient(context.Background(), creds, srv.Client(),
				model.TokenPair{AccessToken: "tok", AccessTokenSecret: "sec"})
			So(err, ShouldBeNil)
			resp, err := client.Get(srv.URL + "/rest/me.json?page=2")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()

			Convey("Then an HMAC-SHA1 Authorization header should carry the token", func() {
				So(auth, ShouldStartWith, "OAuth ")
				So(auth, ShouldContainSubstring, `oauth_consumer_key="ck"`)
				So(auth, ShouldContainSubstring, `oauth_token="tok"`)
				So(auth, ShouldContainSubstring, `oauth_signature_method="HMAC-SHA1"`)
				So(auth, ShouldContainSubstring, `oauth_signature="`)
				So(auth, ShouldNotContainSubstring, "page")
				So(query, ShouldEqual, "page=2")
			})
		})

		Convey("When the consumer secret is missing", func() {
			_, err := oauth.SignedClient(context.Background(), model.Credentials{ConsumerKey: "ck"}, nil, model.TokenPair{})

			Convey("Then a SigningFailure should be reported", func() {
				So(errors.Is(err, oauth.ErrSigningFailure), ShouldBeTrue)
			})
		})
	})
}

func TestConsumer(t *testing.T) {
	Convey("Given credentials with a trailing slash on the base URL", t, func() {
		cfg := oauth.Consumer(model.Credentials{ConsumerKey: "ck", ConsumerSecret: "cs",
			BaseURL: "https://api.example.com/", CallbackPort: 8089}, "")

		So(cfg.Endpoint.RequestTokenURL, ShouldEqual, "https://api.example.com"+oauth.RequestTokenPath)
		So(cfg.Endpoint.AccessTokenURL, ShouldEqual, "https://api.example.com"+oauth.AccessTokenPath)
		So(cfg.Endpoint.AuthorizeURL, ShouldEqual, oauth.DefaultAuthorizeURL)
		So(cfg.CallbackURL, ShouldEqual, "http://localhost:8089/callback")
	})
}

// fakeMSR serves the two token endpoints.
type fakeMSR struct {
	mu            sync.Mutex
	requestStatus int
	requestAuth   string
	accessAuth    string
}

func (f *fakeMSR) lastRequestAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestAuth
}

func (f *fakeMSR) lastAccessAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessAuth
}

func (f *fakeMSR) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(oauth.RequestTokenPath, func(w http.ResponseWriter, r *http.Request) {
		if f.requestStatus != 0 {
			w.WriteHeader(f.requestStatus)
			return
		}
		f.mu.Lock()
		f.requestAuth = r.Header.Get("Authorization")
		f.mu.Unlock()
		if !strings.Contains(r.Header.Get("Authorization"), "oauth_callback=") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("oauth_token=rt&oauth_token_secret=rts&oauth_callback_confirmed=true"))
	})
	mux.HandleFunc(oauth.AccessTokenPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.accessAuth = r.Header.Get("Authorization")
		f.mu.Unlock()
		_, _ = w.Write([]byte("oauth_token=at&oauth_token_secret=ats"))
	})
	return mux
}

// redirectOpener simulates the browser following the authorization redirect.
type redirectOpener struct {
	host    string
	port    int
	queries []string
	opened  chan string
}

func (o *redirectOpener) Open(_ context.Context, u string) error {
	if o.opened != nil {
		o.opened <- u
	}
	host := o.host
	if host == "" {
		host = "127.0.0.1"
	}
	go func() {
		for _, q := range o.queries {
			resp, err := http.Get(fmt.Sprintf("http://%s%s", net.JoinHostPort(host, strconv.Itoa(o.port)), q))
			if err == nil {
				_ = resp.Body.Close()
			}
		}
	}()
	return nil
}

type memStore struct {
	mu    sync.Mutex
	saved []model.TokenPair
	err   error
}

func (m *memStore) Save(_ context.Context, tok model.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, tok)
	return nil
}

func freePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func loopbackV6() bool {
	ln, err := net.Listen("tcp", "[::1]:0")
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

func TestHandshake(t *testing.T) {
	Convey("Given a fake MSR token service and a free callback port", t, func() {
		fake := &fakeMSR{}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		port := freePort()
		creds := model.Credentials{ConsumerKey: "ck", ConsumerSecret: "cs", BaseURL: srv.URL, CallbackPort: port}
		store := &memStore{}
		var states []oauth.State
		hook := oauth.WithTransitionHook(func(_, to oauth.State) { states = append(states, to) })
		quiet := oauth.WithLogger(logger.NewNop())

		Convey("When the user authorizes in the browser", func() {
			opener := &redirectOpener{port: port, opened: make(chan string, 1), queries: []string{
				"/favicon.ico",
				"/callback",
				"/callback?oauth_token=rt&oauth_verifier=v123",
			}}
			enricher := oauth.WithProfileEnricher(func(_ context.Context, tok model.TokenPair) (model.TokenPair, error) {
				tok.ProfileID = "P-42"
				tok.Organizations = []model.Organization{{ID: "ORG-7", Name: "Club"}}
				return tok, nil
			})
			hs := oauth.New(creds, store, oauth.WithOpener(opener), oauth.WithTimeout(5*time.Second),
				oauth.WithAuthorizeURL("https://auth.example.com/oauth"), hook, quiet, enricher)

			tok, err := hs.Run(context.Background())

			Convey("Then the token should be saved and every state visited in order", func() {
				So(err, ShouldBeNil)
				So(tok.AccessToken, ShouldEqual, "at")
				So(tok.AccessTokenSecret, ShouldEqual, "ats")
				So(tok.ProfileID, ShouldEqual, "P-42")
				So(tok.DefaultOrganizationID(), ShouldEqual, "ORG-7")
				So(tok.ObtainedAt.IsZero(), ShouldBeFalse)
				So(store.saved, ShouldHaveLength, 1)
				So(store.saved[0], ShouldResemble, tok)
				So(states, ShouldResemble, []oauth.State{
					oauth.StateRequestTokenObtained,
					oauth.StateAwaitingAuthorization,
					oauth.StateAccessTokenObtained,
				})
				So(<-opener.opened, ShouldEqual, "https://auth.example.com/oauth?oauth_token=rt")
				So(fake.lastRequestAuth(), ShouldContainSubstring,
					fmt.Sprintf(`oauth_callback="http%%3A%%2F%%2Flocalhost%%3A%d%%2Fcallback"`, port))
				So(fake.lastAccessAuth(), ShouldContainSubstring, `oauth_verifier="v123"`)
				So(fake.lastAccessAuth(), ShouldContainSubstring, `oauth_token="rt"`)
				So(portFree(port), ShouldBeTrue)
			})
		})

		Convey("When the browser resolves localhost to the IPv6 loopback", func() {
			if !loopbackV6() {
				return
			}
			opener := &redirectOpener{host: "::1", port: port, queries: []string{"/callback?oauth_token=rt&oauth_verifier=v6"}}
			hs := oauth.New(creds, store, oauth.WithOpener(opener), oauth.WithTimeout(5*time.Second), quiet)

			tok, err := hs.Run(context.Background())

			Convey("Then the callback should still be received", func() {
				So(err, ShouldBeNil)
				So(tok.AccessToken, ShouldEqual, "at")
				So(fake.lastAccessAuth(), ShouldContainSubstring, `oauth_verifier="v6"`)
			})
		})

		Convey("When the callback port is already taken", func() {
			busy, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
			So(err, ShouldBeNil)
			defer busy.Close()
			hs := oauth.New(creds, store, oauth.WithOpener(&redirectOpener{port: port}),
				oauth.WithListenHosts("127.0.0.1"), hook, quiet)

			_, err = hs.Run(context.Background())

			Convey("Then the failure should name the callback port, not the request token", func() {
				So(errors.Is(err, oauth.ErrCallbackUnavailable), ShouldBeTrue)
				So(errors.Is(err, oauth.ErrRequestToken), ShouldBeFalse)
				var oe *oauth.Error
				So(errors.As(err, &oe), ShouldBeTrue)
				So(oe.State, ShouldEqual, oauth.StateRequestTokenObtained)
				So(err.Error(), ShouldContainSubstring, strconv.Itoa(port))
				So(store.saved, ShouldBeEmpty)
			})
		})

		Convey("When the user never authorizes", func() {
			hs := oauth.New(creds, store, oauth.WithOpener(&redirectOpener{port: port}),
				oauth.WithTimeout(150*time.Millisecond), hook, quiet)

			_, err := hs.Run(context.Background())

			Convey("Then the handshake should fail with AuthorizationTimeout and free the port", func() {
				So(errors.Is(err, oauth.ErrAuthorizationTimeout), ShouldBeTrue)
				var oe *oauth.Error
				So(errors.As(err, &oe), ShouldBeTrue)
				So(oe.Kind, ShouldEqual, oauth.KindAuthorizationTimeout)
				So(oe.State, ShouldEqual, oauth.StateAwaitingAuthorization)
				So(states[len(states)-1], ShouldEqual, oauth.StateFailed)
				So(store.saved, ShouldBeEmpty)
				So(portFree(port), ShouldBeTrue)
			})
		})

		Convey("When the run is interrupted while waiting", func() {
			ctx, cancel := context.WithCancel(context.Background())
			opener := &redirectOpener{port: port, opened: make(chan string, 1)}
			go func() {
				<-opener.opened
				cancel()
			}()
			hs := oauth.New(creds, store, oauth.WithOpener(opener), oauth.WithTimeout(5*time.Second), quiet)

			_, err := hs.Run(ctx)

			Convey("Then the handshake should report Interrupted and free the port", func() {
				So(errors.Is(err, oauth.ErrInterrupted), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(portFree(port), ShouldBeTrue)
			})
		})

		Convey("When the user denies access", func() {
			opener := &redirectOpener{port: port, queries: []string{"/callback?error=access_denied&error_description=nope"}}
			hs := oauth.New(creds, store, oauth.WithOpener(opener), oauth.WithTimeout(5*time.Second), quiet)

			_, err := hs.Run(context.Background())

			Convey("Then the handshake should report AuthorizationDenied", func() {
				So(errors.Is(err, oauth.ErrAuthorizationDenied), ShouldBeTrue)
				So(store.saved, ShouldBeEmpty)
			})
		})

		Convey("When the token cannot be persisted", func() {
			store.err = errors.New("disk full")
			opener := &redirectOpener{port: port, queries: []string{"/callback?oauth_token=rt&oauth_verifier=v"}}
			hs := oauth.New(creds, store, oauth.WithOpener(opener), oauth.WithTimeout(5*time.Second), hook, quiet)

			_, err := hs.Run(context.Background())

			Convey("Then the handshake should fail with StorageError", func() {
				So(errors.Is(err, oauth.ErrStorage), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "disk full")
				So(states[len(states)-1], ShouldEqual, oauth.StateFailed)
			})
		})

		Convey("When the request token is refused", func() {
			fake.requestStatus = http.StatusUnauthorized
			hs := oauth.New(creds, store, oauth.WithOpener(&redirectOpener{port: port}), hook, quiet)

			_, err := hs.Run(context.Background())

			Convey("Then the handshake should fail before binding the listener", func() {
				So(errors.Is(err, oauth.ErrRequestToken), ShouldBeTrue)
				So(states, ShouldResemble, []oauth.State{oauth.StateFailed})
				So(portFree(port), ShouldBeTrue)
			})
		})

		Convey("When consumer credentials are missing", func() {
			hs := oauth.New(model.Credentials{BaseURL: srv.URL, CallbackPort: port}, store, quiet)

			_, err := hs.Run(context.Background())

			Convey("Then a SigningFailure should be reported", func() {
				So(errors.Is(err, oauth.ErrSigningFailure), ShouldBeTrue)
			})
		})
	})
}

func TestStateNames(t *testing.T) {
	Convey("Given handshake states", t, func() {
		So(oauth.StateStart.String(), ShouldEqual, "START")
		So(oauth.StateAwaitingAuthorization.String(), ShouldEqual, "AWAITING_USER_AUTHORIZATION")
		So(oauth.StateAccessTokenObtained.Terminal(), ShouldBeTrue)
		So(oauth.StateFailed.Terminal(), ShouldBeTrue)
		So(oauth.StateRequestTokenObtained.Terminal(), ShouldBeFalse)
	})
}
