// Package httpd is the HTTP transport that carries RPC requests to a
// session's dispatcher: a JSON value posted to /transmission/rpc, and the
// dispatcher's response JSON-encoded back. The wire transport is
// deliberately thin — request/response shape, method resolution, and
// argument validation all live in internal/rpc and session.
package httpd

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/variant"
)

// Dispatcher answers one decoded RPC request, the shape session.Session
// implements via its Dispatch method.
type Dispatcher interface {
	Dispatch(req variant.Value) variant.Value
}

// maxRequestSize bounds a single RPC POST body; torrent-add's base64
// metainfo is the largest legitimate payload and comfortably fits.
const maxRequestSize = 32 << 20

// New builds the RPC HTTP handler, routing every method through d.
func New(d Dispatcher, log logger.Logger) http.Handler {
	r := mux.NewRouter()
	h := &handler{d: d, log: log}
	r.HandleFunc("/transmission/rpc", h.serveRPC).Methods(http.MethodPost)
	r.HandleFunc("/rpc", h.serveRPC).Methods(http.MethodPost)
	return r
}

type handler struct {
	d   Dispatcher
	log logger.Logger
}

func (h *handler) serveRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestSize {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	req, err := variant.DecodeJSON(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := h.d.Dispatch(req)
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(variant.EncodeJSON(resp)); err != nil {
		h.log.Warningln("rpc: error writing response:", err)
	}
}
