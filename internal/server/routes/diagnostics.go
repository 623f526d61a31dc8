package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/fetch-cache/fetch-cache/internal/version"
)

// PurgeableCache 是诊断路由需要的缓存能力子集。
type PurgeableCache interface {
	PurgeExpired() int
	Len() int
}

// RegisterDiagnosticsRoutes 暴露 /-/ 前缀的诊断接口：健康检查、条目统计与
// 手动触发过期清理。
func RegisterDiagnosticsRoutes(app *fiber.App, objectCache PurgeableCache, logger *logrus.Logger) {
	if app == nil || objectCache == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version.Full(),
		})
	})

	app.Get("/-/stats", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"entries": objectCache.Len(),
		})
	})

	app.Post("/-/purge", func(c fiber.Ctx) error {
		removed := objectCache.PurgeExpired()
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"action":  "manual_purge",
				"removed": removed,
			}).Info("purge_complete")
		}
		return c.JSON(fiber.Map{"removed": removed})
	})
}
