// Package httpapi is the server component's HTTP surface: it publishes
// posts through the handler package and serves resolved posts from the
// SQL-backed index (spec §6). It is not part of the core — the core is
// usable as a library without ever importing this package.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"garden.dev/garden/handler"
	"garden.dev/garden/protocol"
	"garden.dev/garden/sqlindex"
)

// Server wires the publish path and the query index into an HTTP router.
type Server struct {
	handler *handler.Handler
	index   *sqlindex.Store
	address protocol.BlockchainAddress
}

// New returns a Server that publishes to h and serves queries from idx for
// the chain identified by addr.
func New(h *handler.Handler, idx *sqlindex.Store, addr protocol.BlockchainAddress) *Server {
	return &Server{handler: h, index: idx, address: addr}
}

// Router builds the mux.Router for this server, with request logging
// applied to every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	// Standard base64 may contain '/' (even "//"), so the hash segment
	// matches the rest of the path and paths are not cleaned.
	r.SkipClean(true)
	r.Use(loggingMiddleware)
	r.HandleFunc("/api/v1/post", s.createPost).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/post/{hash:.+}", s.getPost).Methods(http.MethodGet)
	return r
}
