package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Route binds a handler to a method and path behind a guard chain.
type Route struct {
	Method  string
	Path    string
	Name    string
	Guards  GuardChain
	Handler router.HandlerFunc
}

// RouteRegistrar is the part of router.Router the route table needs.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RegisterRoutes mounts routes on r. Every route goes through the same
// dispatcher, which runs the route's guards before its handler.
func RegisterRoutes(r RouteRegistrar, routes []Route) {
	for _, route := range routes {
		var info router.RouteInfo
		switch route.Method {
		case http.MethodGet:
			info = r.Get(route.Path, dispatch(route))
		case http.MethodPost:
			info = r.Post(route.Path, dispatch(route))
		case http.MethodDelete:
			info = r.Delete(route.Path, dispatch(route))
		default:
			panic(fmt.Sprintf("auth: unsupported method %q for route %s", route.Method, route.Name))
		}
		if route.Name != "" {
			info.SetName(route.Name)
		}
	}
}

func dispatch(route Route) router.HandlerFunc {
	return func(c router.Context) error {
		if err := route.Guards.Run(c); err != nil {
			return err
		}
		return route.Handler(c)
	}
}

// ErrorHandler renders errors as ErrorResponse with the status derived from
// the error. Internal details are logged, not returned.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
		}

		status := StatusCode(err)
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			logger.Error("unhandled request error",
				"path", c.Path(),
				"error", err,
			)
			return c.Status(status).JSON(ErrorResponse{Error: "internal server error"})
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"path", c.Path(),
				"error", richErr.Message,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
				"source", richErr.Source,
			)
			return c.Status(status).JSON(ErrorResponse{Error: "internal server error"})
		}

		logger.Debug("request rejected",
			"path", c.Path(),
			"error", richErr.Message,
			"text_code", richErr.TextCode,
		)
		return c.Status(status).JSON(ErrorResponse{
			Error: richErr.Message,
			Code:  richErr.TextCode,
		})
	}
}

// MetricsHandler serves the Prometheus exposition of gatherer.
func MetricsHandler(gatherer prometheus.Gatherer) fiber.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
