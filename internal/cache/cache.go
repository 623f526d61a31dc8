package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Fetcher 是远程抓取协作方：按 key 取回完整正文字节，失败时返回错误。
// 具体实现（HTTP 回源、测试桩等）由调用方注入。
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// FetchFunc 将普通函数适配为 Fetcher。
type FetchFunc func(ctx context.Context, key string) ([]byte, error)

// Fetch 使 FetchFunc 满足 Fetcher。
func (f FetchFunc) Fetch(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

// InvalidKeyError 表示调用方传入的 key 不是合法字符串（当前唯一情形：空串）。
type InvalidKeyError struct {
	Key string
}

func (e InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid cache key: %q", e.Key)
}

// Options 控制 Cache 的构造；Dir 与 DefaultTTL 必填，其余为可选覆盖。
type Options struct {
	// Dir 是缓存根目录，构造后固定。
	Dir string
	// DefaultTTL 是未显式覆盖时条目的有效期，同时作为批量清理的判定基准。
	DefaultTTL time.Duration
	// PurgeThreshold 是触发自动清理的目录条目数，<= 0 时使用 DefaultPurgeThreshold。
	PurgeThreshold int
	// Fetcher 在 Get 未命中/过期时被调用；为 nil 时 Get 直接报错。
	Fetcher Fetcher
	// Logger 为空时不输出日志。
	Logger *logrus.Logger
	// Storage 为空时使用以 Dir 为根的磁盘实现，测试可注入替身。
	Storage Storage
}

// Cache 是对外门面：持有注册表、策略与存储适配器，每个缓存命名空间一个实例。
type Cache struct {
	registry *Registry
	policy   *Policy
	storage  Storage
	fetcher  Fetcher
	logger   *logrus.Logger
}

// New 构造 Cache 并从磁盘恢复既有条目的索引。
func New(opts Options) (*Cache, error) {
	if opts.DefaultTTL <= 0 {
		return nil, errors.New("default ttl must be positive")
	}

	storage := opts.Storage
	if storage == nil {
		var err error
		storage, err = NewDiskStorage(opts.Dir)
		if err != nil {
			return nil, err
		}
	}

	registry := NewRegistry(opts.Dir, opts.DefaultTTL)
	registry.Load(storage)

	return &Cache{
		registry: registry,
		policy:   NewPolicy(storage, opts.DefaultTTL, opts.PurgeThreshold, opts.Logger),
		storage:  storage,
		fetcher:  opts.Fetcher,
		logger:   opts.Logger,
	}, nil
}

// Get 返回 key 对应的正文。条目不新鲜（不存在 / 超过 TTL / 小于 MinValidSize）
// 时同步调用 Fetcher 抓取并写入缓存，随后读取并返回刚写入的内容。抓取失败
// 向上传播，而不是静默返回空内容掩盖上游故障。
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, InvalidKeyError{Key: key}
	}

	entry := c.registry.GetOrCreate(key, 0)
	if !c.policy.Fresh(entry) {
		if c.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for stale key %q", key)
		}
		data, err := c.fetcher.Fetch(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("fetch %q: %w", key, err)
		}
		if err := c.Set(ctx, key, data, 0); err != nil {
			return nil, fmt.Errorf("store fetched content for %q: %w", key, err)
		}
	}

	return c.storage.Read(entry.Path)
}

// Set 将 value 写入 key 对应的正文文件。ttlOverride 仅在条目首次登记时生效，
// 对已注册条目不改变其 TTL（改名会留下孤儿文件，首次登记者胜出）。
// 写入成功后执行自动清理检查。
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlOverride time.Duration) error {
	if key == "" {
		return InvalidKeyError{Key: key}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := c.registry.GetOrCreate(key, ttlOverride)
	if err := c.storage.Write(entry.Path, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("write cache entry %s: %w", entry.ID, err)
	}

	c.policy.MaybeAutoPurge()
	return nil
}

// Delete 将 key 移出索引并删除其正文文件；仅当正文确实存在且删除成功时返回 true。
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, InvalidKeyError{Key: key}
	}

	entry := c.registry.GetOrCreate(key, 0)
	c.registry.Remove(key)

	if err := c.storage.Remove(entry.Path); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Has 仅报告正文文件当前是否存在，不检查新鲜度。结果在返回后随时可能因
// 其他进程删除而失效，这里不提供任何原子性保证。与 Get/Set/Delete 不同，
// Has 是纯存在性查询，不设错误通道：空 key 对应的正文必然不存在，
// 直接回答 false 而不是 InvalidKeyError。
func (c *Cache) Has(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	entry := c.registry.GetOrCreate(key, 0)
	return c.storage.Exists(entry.Path)
}

// Fresh 报告 key 对应的正文当前是否新鲜（存在、未超过 TTL、达到最小大小）。
// 每次调用现场计算，不缓存结果。
func (c *Cache) Fresh(key string) bool {
	if key == "" {
		return false
	}
	return c.policy.Fresh(c.registry.GetOrCreate(key, 0))
}

// PurgeExpired 手动触发一次过期清理，返回删除数量。
func (c *Cache) PurgeExpired() int {
	return c.policy.PurgeExpired()
}

// Len 返回索引中的条目数。
func (c *Cache) Len() int {
	return c.registry.Len()
}

// BatchItem 记录批量操作中单个 key 的结果。
type BatchItem struct {
	Key string
	Err error
}

// BatchResult 汇总批量操作的逐项结果，由调用方决定部分失败是否可接受。
type BatchResult struct {
	Items []BatchItem
}

// OK 报告是否全部成功。
func (r BatchResult) OK() bool {
	for _, item := range r.Items {
		if item.Err != nil {
			return false
		}
	}
	return true
}

// Failed 返回所有失败项。
func (r BatchResult) Failed() []BatchItem {
	var failed []BatchItem
	for _, item := range r.Items {
		if item.Err != nil {
			failed = append(failed, item)
		}
	}
	return failed
}

// Err 聚合首个失败并标注失败总数，全部成功时为 nil。
func (r BatchResult) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d keys failed, first %q: %w",
		len(failed), len(r.Items), failed[0].Key, failed[0].Err)
}

// Clear 遍历所有已注册条目并删除。expiredOnly 为 true 时只删除自身 TTL 已
// 过期的条目，为 false 时全量删除。逐项结果通过 BatchResult 返回。
// 快照中指向同一条目的多个别名只处理一次，每个条目恰好产生一个结果项。
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) BatchResult {
	var result BatchResult
	seen := make(map[string]struct{})
	for key, entry := range c.registry.Snapshot() {
		if _, dup := seen[entry.ID]; dup {
			continue
		}
		seen[entry.ID] = struct{}{}
		if expiredOnly && c.policy.Fresh(entry) {
			continue
		}
		c.registry.Remove(key)
		err := c.storage.Remove(entry.Path)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		result.Items = append(result.Items, BatchItem{Key: key, Err: err})
	}
	return result
}

// GetMultiple 对每个 key 独立执行 Get，没有批量优化；单个 key 的抓取失败
// 记入结果但不中断其余 key。
func (c *Cache) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, BatchResult) {
	values := make(map[string][]byte, len(keys))
	var result BatchResult
	for _, key := range keys {
		data, err := c.Get(ctx, key)
		if err == nil {
			values[key] = data
		}
		result.Items = append(result.Items, BatchItem{Key: key, Err: err})
	}
	return values, result
}

// SetMultiple 对每个键值对独立执行 Set。
func (c *Cache) SetMultiple(ctx context.Context, values map[string][]byte, ttlOverride time.Duration) BatchResult {
	var result BatchResult
	for key, value := range values {
		result.Items = append(result.Items, BatchItem{Key: key, Err: c.Set(ctx, key, value, ttlOverride)})
	}
	return result
}

// DeleteMultiple 对每个 key 独立执行 Delete，正文不存在不算失败。
func (c *Cache) DeleteMultiple(ctx context.Context, keys []string) BatchResult {
	var result BatchResult
	for _, key := range keys {
		_, err := c.Delete(ctx, key)
		result.Items = append(result.Items, BatchItem{Key: key, Err: err})
	}
	return result
}
