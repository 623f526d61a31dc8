package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ObjectHandler describes the component serving cache object requests. It
// allows injecting fake handlers during tests.
type ObjectHandler interface {
	Get(fiber.Ctx) error
	Head(fiber.Ctx) error
	Delete(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Handler    ObjectHandler
	ListenPort int
}

const contextKeyRequestID = "_fetchcache_request_id"

// NewApp builds a Fiber application with request-ID middleware and the
// object routes attached.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("object handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	// HEAD 先于 GET 注册：fiber 会为 GET 路由自动补一条 HEAD，
	// 先注册的显式 HEAD 才能确保不触发回源。
	app.Head("/object", opts.Handler.Head)
	app.Get("/object", opts.Handler.Get)
	app.Delete("/object", opts.Handler.Delete)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 UUID 并写入响应头，日志与响应按此关联。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
