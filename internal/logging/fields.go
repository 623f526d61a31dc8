package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 key/条目 ID/命中状态字段，供缓存请求日志复用。
func RequestFields(key, entryID string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"key":       key,
		"entry_id":  entryID,
		"cache_hit": cacheHit,
	}
}
