/**
 * @description
 * This package implements the CoinPay gateway: a path-prefix reverse proxy in front of
 * the backend services. It carries no business logic; routing is pure configuration.
 *
 * @dependencies
 * - net/http/httputil: For the reverse proxy.
 * - github.com/go-chi/chi/v5, github.com/go-chi/cors: For the gateway router and CORS.
 */

package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

const correlationIDHeader = "X-Correlation-ID"

// Welcome is the document served at the gateway root.
type Welcome struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func defaultWelcome() Welcome {
	return Welcome{
		Service: "CoinPay Gateway",
		Version: "1.0.0",
		Endpoints: map[string]string{
			"api":           "/api/transactions",
			"swagger":       "/swagger",
			"documentation": "/docs",
		},
	}
}

// Proxy forwards requests to the upstream selected by its route table.
type Proxy struct {
	table   *RouteTable
	proxies map[string]*httputil.ReverseProxy
}

func NewProxy(table *RouteTable) *Proxy {
	p := &Proxy{table: table, proxies: make(map[string]*httputil.ReverseProxy)}
	for _, route := range table.Routes() {
		p.proxies[route.Prefix] = newReverseProxy(route)
	}
	return p
}

func newReverseProxy(route Route) *httputil.ReverseProxy {
	upstream := route.Upstream
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Host = upstream.Host
			if pr.In.Header.Get(correlationIDHeader) == "" {
				pr.Out.Header.Set(correlationIDHeader, uuid.NewString())
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("level=warn component=gateway prefix=%s upstream=%s path=%s msg=\"upstream request failed\" err=%v", route.Prefix, upstream.Host, r.URL.Path, err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
		},
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := p.table.Match(r.URL.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no route for path"})
		return
	}
	p.proxies[route.Prefix].ServeHTTP(w, r)
}

// Routes builds the gateway router: the welcome document at "/" and the proxy for every
// other path.
func Routes(table *RouteTable, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	welcome := defaultWelcome()
	proxy := NewProxy(table)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Location", correlationIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, welcome)
	})
	r.Handle("/*", proxy)
	return r
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
