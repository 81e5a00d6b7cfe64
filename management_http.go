package histcache

import (
	"context"
	"net"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/aggregate"
	"github.com/hyp3rd/histcache/pkg/catalog"
)

// ManagementHTTPOption configures the management HTTP server.
type ManagementHTTPOption func(*ManagementHTTPServer)

// ManagementHTTPServer holds Fiber app and settings.
type ManagementHTTPServer struct {
	addr         string
	app          *fiber.App
	readTimeout  time.Duration
	writeTimeout time.Duration
	authFunc     func(fiber.Ctx) error
	ln           net.Listener
	started      bool
}

// WithMgmtAuth sets an auth function (return error to block).
func WithMgmtAuth(fn func(fiber.Ctx) error) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.authFunc = fn }
}

// WithMgmtReadTimeout sets read timeout.
func WithMgmtReadTimeout(d time.Duration) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.readTimeout = d }
}

// WithMgmtWriteTimeout sets write timeout.
func WithMgmtWriteTimeout(d time.Duration) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.writeTimeout = d }
}

const (
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// NewManagementHTTPServer builds an HTTP server holder (lazy start).
func NewManagementHTTPServer(addr string, opts ...ManagementHTTPOption) *ManagementHTTPServer {
	srv := &ManagementHTTPServer{
		addr:         addr,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts { // apply options
		opt(srv)
	}

	srv.app = fiber.New(fiber.Config{
		ReadTimeout:  srv.readTimeout,
		WriteTimeout: srv.writeTimeout,
	})

	return srv
}

// managementCollection is what the endpoints read. The collection must not
// be filled while it is served.
type managementCollection interface {
	Stats() Stats
	Catalog() *catalog.Catalog
	Keys() []Key
	Get(identifier, name string) (*aggregate.Aggregate, bool)
	EstimateSize() int64
	Count() int
}

// ObjectInfo summarizes one aggregate for the /objects endpoint.
type ObjectInfo struct {
	Identifier string           `json:"identifier"`
	Name       string           `json:"name"`
	Kind       string           `json:"kind"`
	Axes       []aggregate.Axis `json:"axes"`
	Entries    int64            `json:"entries"`
	SumW       float64          `json:"sumW"`
	SizeBytes  int              `json:"sizeBytes"`
}

// Start launches listener (idempotent).
func (s *ManagementHTTPServer) Start(ctx context.Context, hc managementCollection) error {
	if s.started { // idempotent
		return nil
	}

	s.mountRoutes(hc)

	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return ewrap.Wrap(err, "mgmt listen")
	}

	s.ln = ln

	go func() { // serve in background; the listener error surfaces on Shutdown
		_ = s.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	s.started = true

	return nil
}

// Address returns the bound address (useful when passing ":0" for ephemeral port). Empty if not started yet.
func (s *ManagementHTTPServer) Address() string {
	if s.ln == nil {
		return ""
	}

	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *ManagementHTTPServer) Shutdown(ctx context.Context) error {
	if !s.started {
		return nil
	}

	ch := make(chan error, 1)

	go func() {
		ch <- s.app.Shutdown()
	}()

	select {
	case <-ctx.Done():
		return sentinel.ErrMgmtHTTPShutdownTimeout
	case err := <-ch:
		return err
	}
}

func (s *ManagementHTTPServer) mountRoutes(hc managementCollection) {
	useAuth := s.wrapAuth
	s.registerBasic(useAuth, hc)
	s.registerObjects(useAuth, hc)
}

// wrapAuth returns an auth-wrapped handler if authFunc provided.
func (s *ManagementHTTPServer) wrapAuth(handler fiber.Handler) fiber.Handler { //nolint:ireturn
	if s.authFunc == nil {
		return handler
	}

	return func(fiberCtx fiber.Ctx) error {
		authErr := s.authFunc(fiberCtx)
		if authErr != nil {
			return authErr
		}

		return handler(fiberCtx)
	}
}

func (s *ManagementHTTPServer) registerBasic(useAuth func(fiber.Handler) fiber.Handler, hc managementCollection) {
	s.app.Get("/health", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.SendString("ok") }))
	s.app.Get("/stats", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.JSON(hc.Stats()) }))
	s.app.Get("/catalog", useAuth(func(fiberCtx fiber.Ctx) error {
		return fiberCtx.JSON(fiber.Map{"objects": hc.Catalog().Entries()})
	}))
}

func (s *ManagementHTTPServer) registerObjects(useAuth func(fiber.Handler) fiber.Handler, hc managementCollection) {
	s.app.Get("/objects", useAuth(func(fiberCtx fiber.Ctx) error {
		filter := fiberCtx.Query("identifier")
		keys := hc.Keys()
		out := make([]ObjectInfo, 0, len(keys))

		for _, key := range keys {
			if filter != "" && key.Identifier != filter {
				continue
			}

			agg, ok := hc.Get(key.Identifier, key.Name)
			if !ok {
				continue
			}

			out = append(out, ObjectInfo{
				Identifier: key.Identifier,
				Name:       key.Name,
				Kind:       agg.Kind().String(),
				Axes:       agg.Axes(),
				Entries:    agg.Entries(),
				SumW:       agg.SumW(),
				SizeBytes:  agg.SizeBytes(),
			})
		}

		return fiberCtx.JSON(fiber.Map{"count": len(out), "objects": out})
	}))
	s.app.Get("/objects/size", useAuth(func(fiberCtx fiber.Ctx) error {
		size := hc.EstimateSize()

		return fiberCtx.JSON(fiber.Map{
			"objects": hc.Count(),
			"bytes":   size,
			"mb":      float64(size) / bytesPerMB,
		})
	}))
}
