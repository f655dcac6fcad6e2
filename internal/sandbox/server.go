package sandbox

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/transport"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// APIPrefix is the path under which the server exposes the gateway API.
const APIPrefix = "/v1/"

// Server exposes a Gateway over HTTP with the same wire format, authentication
// and error bodies as the real gateway.
type Server struct {
	echo    *echo.Echo
	gateway *Gateway
	logger  logging.Logger
}

// NewServer wraps g. Requests must authenticate with privateKey as the basic-auth
// user name.
func NewServer(g *Gateway, privateKey string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	s := &Server{echo: echo.New(), gateway: g, logger: logger}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("Sandbox request",
				logging.F(logging.FieldMethod, v.Method),
				logging.F(logging.FieldPath, v.URI),
				logging.F(logging.FieldStatus, v.Status),
				logging.F(logging.FieldDuration, v.Latency.Milliseconds()))
			return nil
		},
	}))
	s.echo.Use(middleware.BasicAuth(func(user, _ string, c echo.Context) (bool, error) {
		return subtle.ConstantTimeCompare([]byte(user), []byte(privateKey)) == 1, nil
	}))

	s.echo.Any(APIPrefix+"*", s.handle)
	return s
}

// Handler returns the server as an http.Handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Sandbox gateway listening", logging.F(logging.FieldAddress, addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handle(c echo.Context) error {
	req := c.Request()
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return s.fail(c, invalidRequest("reading body: "+err.Error()))
	}
	var body transport.Snapshot
	if len(bytes.TrimSpace(raw)) > 0 {
		if body, err = transport.Decode(raw); err != nil {
			return s.fail(c, invalidRequest("body is not a JSON object: "+err.Error()))
		}
	}

	ctx := req.Context()
	if key := req.Header.Get(transport.IdempotencyHeader); key != "" {
		ctx = transport.WithIdempotencyKey(ctx, key)
	}
	resp, err := s.gateway.Send(ctx, transport.Method(req.Method), c.Param("*"), body)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) fail(c echo.Context, err error) error {
	status, body := transport.ErrorBody(err)
	return c.JSON(status, body)
}
