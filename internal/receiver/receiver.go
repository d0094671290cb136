// Package receiver is an example HTTP endpoint for webhook style callbacks.
//
// It logs every POST or PUT it receives (method, path, headers and the
// JSON body) and answers 204. Documents start it in the background and embed
// its log once the examples that call it have run.
package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPort is the port documents expect the receiver on.
const DefaultPort = 8080

// ReadyMessage prefixes the log line written once the listener is bound.
const ReadyMessage = "Starting example server at"

const maxBody = 1 << 20

type handler struct {
	log zerolog.Logger
}

// NewHandler returns the request logging handler.
func NewHandler(log zerolog.Logger) http.Handler {
	return &handler{log: log}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.Header().Set("Allow", "POST, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h.log.Info().Msgf("Incoming %s request on %s", r.Method, r.URL.Path)
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.log.Info().Msgf("Header '%s' -> '%s'", name, strings.Join(r.Header[name], ", "))
	}

	content, err := readJSON(r.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("could not read request content")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.log.Info().Msgf("Content: %s", content)
	w.WriteHeader(http.StatusNoContent)
}

func readJSON(body io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

// Serve listens on addr and serves until ctx is canceled.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return ServeListener(ctx, ln, log)
}

// ServeListener serves on an existing listener until ctx is canceled, then
// shuts down gracefully.
func ServeListener(ctx context.Context, ln net.Listener, log zerolog.Logger) error {
	srv := &http.Server{
		Handler:           NewHandler(log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Msgf("%s %s", ReadyMessage, ln.Addr())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
