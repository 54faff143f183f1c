package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/okian/hpde-analytics/pkg/logger"
	"github.com/okian/hpde-analytics/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500
)

const callbackPath = "/callback"

// callbackResult is what the browser redirect carried.
type callbackResult struct {
	Token       string
	Verifier    string
	Denied      string
	Description string
}

// listener is the local HTTP server receiving the authorization redirect.
// It lives from REQUEST_TOKEN_OBTAINED until the awaiting state exits.
type listener struct {
	srv     *http.Server
	lns     []net.Listener
	results chan callbackResult
	served  sync.WaitGroup
	once    sync.Once
	logger  logger.Logger
}

// startListener binds hosts[0] on port, then the remaining hosts on the
// port actually bound. Only the first bind is required.
func startListener(hosts []string, port int, log logger.Logger) (*listener, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no callback listen host")
	}
	first, err := net.Listen("tcp", net.JoinHostPort(hosts[0], strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("bind callback port %d: %w", port, err)
	}

	l := &listener{
		lns:     []net.Listener{first},
		results: make(chan callbackResult, 1),
		logger:  log,
	}
	bound := first.Addr().(*net.TCPAddr).Port
	for _, host := range hosts[1:] {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(bound)))
		if err != nil {
			log.Debug(context.Background(), "optional callback address unavailable",
				logger.String("host", host), logger.Error(err))
			continue
		}
		l.lns = append(l.lns, ln)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(callbackMetrics)
	r.Get(callbackPath, l.handleCallback)
	r.NotFound(l.handleWaiting)

	l.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, ln := range l.lns {
		l.served.Add(1)
		go func(ln net.Listener) {
			defer l.served.Done()
			if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(context.Background(), "callback listener stopped", logger.Error(err))
			}
		}(ln)
	}
	return l, nil
}

// Port returns the bound port.
func (l *listener) Port() int {
	return l.lns[0].Addr().(*net.TCPAddr).Port
}

// Close shuts the server down and waits until every socket is released.
// Safe to call more than once.
func (l *listener) Close() {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.srv.Shutdown(ctx); err != nil {
			_ = l.srv.Close()
		}
		l.served.Wait()
	})
}

func (l *listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := callbackResult{
		Token:       q.Get("oauth_token"),
		Verifier:    q.Get("oauth_verifier"),
		Denied:      q.Get("error"),
		Description: q.Get("error_description"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case res.Verifier != "":
		l.deliver(res)
		writePage(w, http.StatusOK, "Authorization Successful",
			"You can close this window and return to the terminal.")
	case res.Denied != "":
		l.deliver(res)
		writePage(w, http.StatusOK, "Authorization Denied",
			fmt.Sprintf("Error: %s. %s", res.Denied, res.Description))
	default:
		writePage(w, http.StatusBadRequest, "Missing Verification Code",
			"The callback did not include an oauth_verifier parameter.")
	}
}

func (l *listener) handleWaiting(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	writePage(w, http.StatusOK, "Waiting",
		"Waiting for the MotorsportReg authorization callback.")
}

// deliver hands the result to the handshake without blocking; extra
// redirects after the first are dropped.
func (l *listener) deliver(res callbackResult) {
	select {
	case l.results <- res:
	default:
		l.logger.Debug(context.Background(), "dropping duplicate callback")
	}
}

func writePage(w http.ResponseWriter, status int, title, body string) {
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w,
		`<html><head><title>%s</title></head>`+
			`<body style="font-family: Arial, sans-serif; text-align: center; padding: 50px;">`+
			`<h1>%s</h1><p>%s</p></body></html>`,
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
}

// callbackMetrics records one metric per request served by the listener.
func callbackMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		metrics.RecordCallbackRequest(wrapped.statusCode, getErrorType(wrapped.statusCode))
	})
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "none"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
