package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/fetch-cache/fetch-cache/internal/cache"
	"github.com/fetch-cache/fetch-cache/internal/fetch"
	"github.com/fetch-cache/fetch-cache/internal/logging"
)

// ObjectCache 是 handler 依赖的缓存门面子集，测试可注入替身。
type ObjectCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Has(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) (bool, error)
	Fresh(key string) bool
}

// CacheHandler 将 /object 路由映射到缓存门面：GET 透传 fetch-on-miss 语义，
// HEAD 仅报告存在性，DELETE 同时移除索引与正文。
type CacheHandler struct {
	cache  ObjectCache
	logger *logrus.Logger
}

// NewCacheHandler constructs the object handler with shared cache/logger.
func NewCacheHandler(objectCache ObjectCache, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cache:  objectCache,
		logger: logger,
	}
}

// Get 返回 key 对应正文；未命中/过期时由缓存同步回源，上游失败以 502 反馈。
func (h *CacheHandler) Get(c fiber.Ctx) error {
	started := time.Now()
	requestID := RequestID(c)
	key, err := objectKey(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_key")
	}

	hit := h.cache.Fresh(key)
	data, err := h.cache.Get(c.Context(), key)
	h.logResult(c, "object_get", key, hit, started, requestID, err)
	if err != nil {
		var invalidKey cache.InvalidKeyError
		var fetchErr *fetch.Error
		switch {
		case errors.As(err, &invalidKey):
			return writeError(c, fiber.StatusBadRequest, "invalid_key")
		case errors.As(err, &fetchErr):
			return writeError(c, fiber.StatusBadGateway, "upstream_failed")
		default:
			return writeError(c, fiber.StatusInternalServerError, "cache_read_failed")
		}
	}

	if contentType := inferContentType(key); contentType != "" {
		c.Set("Content-Type", contentType)
	}
	c.Set("X-Fetch-Cache-Hit", boolHeader(hit))
	return c.Send(data)
}

// Head 只回答正文是否存在，不触发回源，也不检查新鲜度。
func (h *CacheHandler) Head(c fiber.Ctx) error {
	key, err := objectKey(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_key")
	}
	if !h.cache.Has(c.Context(), key) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendStatus(fiber.StatusOK)
}

// Delete 删除正文与索引，正文本就不存在时返回 404。
func (h *CacheHandler) Delete(c fiber.Ctx) error {
	started := time.Now()
	requestID := RequestID(c)
	key, err := objectKey(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_key")
	}

	removed, err := h.cache.Delete(c.Context(), key)
	h.logResult(c, "object_delete", key, false, started, requestID, err)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "cache_delete_failed")
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"removed": false})
	}
	return c.JSON(fiber.Map{"removed": true})
}

func (h *CacheHandler) logResult(c fiber.Ctx, action, key string, hit bool, started time.Time, requestID string, err error) {
	if h.logger == nil {
		return
	}
	fields := logging.RequestFields(key, cache.DeriveID(key), hit)
	fields["action"] = action
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("object_failed")
		return
	}
	h.logger.WithFields(fields).Info("object_complete")
}

func objectKey(c fiber.Ctx) (string, error) {
	key := strings.TrimSpace(c.Query("url"))
	if key == "" {
		return "", errors.New("url query parameter required")
	}
	return key, nil
}

func writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func boolHeader(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// inferContentType 按 key 的扩展名推断常见类型，未知时交给客户端自行处理。
func inferContentType(key string) string {
	clean := key
	if idx := strings.IndexByte(clean, '?'); idx >= 0 {
		clean = clean[:idx]
	}
	switch {
	case strings.HasSuffix(clean, ".json"):
		return "application/json"
	case strings.HasSuffix(clean, ".xml"):
		return "application/xml"
	case strings.HasSuffix(clean, ".txt"):
		return "text/plain"
	case strings.HasSuffix(clean, ".html"), strings.HasSuffix(clean, ".htm"):
		return "text/html"
	case strings.HasSuffix(clean, ".zip"):
		return "application/zip"
	case strings.HasSuffix(clean, ".tar.gz"), strings.HasSuffix(clean, ".tgz"):
		return "application/x-tar"
	}
	return ""
}
