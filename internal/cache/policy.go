package cache

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MinValidSize 是正文被视为完整抓取结果的最小字节数，小于该值的文件按失败/
// 截断处理，即使仍在 TTL 内也会触发重新抓取。
const MinValidSize = 10

// DefaultPurgeThreshold 是未配置时触发自动清理的目录条目数阈值。
const DefaultPurgeThreshold = 4

// Policy 封装新鲜度判定与过期清理。判定永远基于 (当前时间, 文件 ModTime,
// 条目 TTL) 现场计算，不缓存任何布尔结果，因此与进程内状态无关。
type Policy struct {
	storage        Storage
	defaultTTL     time.Duration
	purgeThreshold int
	logger         *logrus.Logger
	now            func() time.Time
}

// NewPolicy 构造策略，purgeThreshold <= 0 时回退到 DefaultPurgeThreshold。
func NewPolicy(storage Storage, defaultTTL time.Duration, purgeThreshold int, logger *logrus.Logger) *Policy {
	if purgeThreshold <= 0 {
		purgeThreshold = DefaultPurgeThreshold
	}
	return &Policy{
		storage:        storage,
		defaultTTL:     defaultTTL,
		purgeThreshold: purgeThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// Fresh 报告条目正文当前是否可直接复用：文件存在、未超过条目自身 TTL、
// 且大小达到 MinValidSize。
func (p *Policy) Fresh(entry *Entry) bool {
	size, modTime, err := p.storage.Stat(entry.Path)
	if err != nil {
		return false
	}
	if size < MinValidSize {
		return false
	}
	return p.now().Sub(modTime) < entry.TTL
}

// PurgeExpired 扫描缓存目录并删除所有超过默认 TTL 的正文文件，返回删除数量。
// 批量清理刻意使用全局默认 TTL 而非逐条目 TTL，换取一次 stat 即可判定；
// 单文件删除失败直接跳过，清理是尽力而为的。
func (p *Policy) PurgeExpired() int {
	paths, err := p.storage.List()
	if err != nil {
		if p.logger != nil {
			p.logger.WithError(err).WithField("action", "purge").Warn("purge_list_failed")
		}
		return 0
	}

	removed := 0
	now := p.now()
	for _, path := range paths {
		_, modTime, statErr := p.storage.Stat(path)
		if statErr != nil {
			continue
		}
		if now.Sub(modTime) < p.defaultTTL {
			continue
		}
		if removeErr := p.storage.Remove(path); removeErr != nil {
			continue
		}
		removed++
	}

	if p.logger != nil && removed > 0 {
		p.logger.WithFields(logrus.Fields{
			"action":  "purge",
			"removed": removed,
		}).Info("purge_complete")
	}
	return removed
}

// MaybeAutoPurge 在写入成功后调用：目录中正文文件数达到阈值时同步执行一次
// PurgeExpired。代价是偶尔让一次写操作承担整个目录的扫描与 stat。
func (p *Policy) MaybeAutoPurge() bool {
	paths, err := p.storage.List()
	if err != nil || len(paths) < p.purgeThreshold {
		return false
	}
	p.PurgeExpired()
	return true
}
