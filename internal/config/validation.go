package config

import (
	"errors"
	"strings"
)

var supportedLogLevels = map[string]struct{}{
	"panic": {},
	"fatal": {},
	"error": {},
	"warn":  {},
	"info":  {},
	"debug": {},
	"trace": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.CacheDir == "" {
		return newFieldError("Global.CacheDir", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.PurgeThreshold < 0 {
		return newFieldError("Global.PurgeThreshold", "不能为负数")
	}
	if level := strings.ToLower(strings.TrimSpace(g.LogLevel)); level != "" {
		if _, ok := supportedLogLevels[level]; !ok {
			return newFieldError("Global.LogLevel", "仅支持 panic/fatal/error/warn/info/debug/trace")
		}
	}

	f := c.Fetch
	if f.MaxRetries < 0 {
		return newFieldError("Fetch.MaxRetries", "不能为负数")
	}
	if f.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Fetch.InitialBackoff", "必须大于 0")
	}
	if f.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Fetch.UpstreamTimeout", "必须大于 0")
	}

	return nil
}
