// Package local serves the API Gateway handlers over plain HTTP for development.
package local

import (
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/globoclima/backend/internal/api/handlers"
	"github.com/globoclima/backend/internal/api/middleware"
)

// RequestIDHeader carries a caller-supplied request id
const RequestIDHeader = "X-Request-Id"

// maxBodyBytes bounds request bodies the way API Gateway does
const maxBodyBytes = 10 << 20

// Options configures the local server
type Options struct {
	// DevUser is used as the authorizer subject when a request has no Authorization header
	DevUser string
}

// NewRouter returns a chi router exposing the favorites API, /metrics and /healthz
func NewRouter(h middleware.APIGatewayHandler, logger *slog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	proxy := proxyHandler(h, logger, opts)
	r.Handle(handlers.BasePath, proxy)
	r.Handle(handlers.BasePath+"/*", proxy)

	return r
}

func proxyHandler(h middleware.APIGatewayHandler, logger *slog.Logger, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := toProxyRequest(r, opts)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		resp, err := h(r.Context(), logger, request)
		if err != nil {
			logger.Error("handler returned an error", "error", err, "requestId", request.RequestContext.RequestID)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		writeProxyResponse(w, resp)
	}
}

// toProxyRequest converts an HTTP request into the event API Gateway would send
func toProxyRequest(r *http.Request, opts Options) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}

	headers := make(map[string]string, len(r.Header))
	multiHeaders := make(map[string][]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
		multiHeaders[name] = values
	}

	query := make(map[string]string)
	multiQuery := make(map[string][]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
		multiQuery[name] = values
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = ulid.Make().String()
	}

	request := events.APIGatewayProxyRequest{
		HTTPMethod:                      r.Method,
		Resource:                        routePattern(r),
		Path:                            r.URL.EscapedPath(),
		Headers:                         headers,
		MultiValueHeaders:               multiHeaders,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: multiQuery,
		Body:                            string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:  requestID,
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Stage:      "local",
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  sourceIP(r.RemoteAddr),
				UserAgent: r.UserAgent(),
			},
		},
	}

	if opts.DevUser != "" && r.Header.Get("Authorization") == "" {
		request.RequestContext.Authorizer = map[string]interface{}{
			"claims": map[string]interface{}{"sub": opts.DevUser},
		}
	}

	return request, nil
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	for name, values := range resp.MultiValueHeaders {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// routePattern is the matched chi pattern, used like an API Gateway resource
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// sourceIP strips the port from direct connections; RealIP leaves a bare address
func sourceIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
