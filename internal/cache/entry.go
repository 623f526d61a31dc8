package cache

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fileSuffix 是所有缓存正文文件的统一扩展名。
const fileSuffix = ".cache"

// Entry 描述注册表中的一个缓存条目。正文字节只存在于 Storage，Entry 仅持有
// 指向正文文件的路径；创建后 ID/TTL/Path 不再变化，Set 只会更新磁盘内容与时间戳。
type Entry struct {
	ID   string
	TTL  time.Duration
	Path string
}

// Registry 维护 key → Entry 的内存索引。key 用原始字符串（而非派生 ID）做索引，
// 命中时原样返回已注册条目；启动时可通过 Load 从磁盘文件名恢复每条目的 TTL。
type Registry struct {
	dir        string
	defaultTTL time.Duration

	mu      sync.Mutex
	entries map[string]*Entry
	byID    map[string]*Entry
}

// NewRegistry 创建空注册表，dir 与 defaultTTL 在构造后固定。
func NewRegistry(dir string, defaultTTL time.Duration) *Registry {
	return &Registry{
		dir:        dir,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*Entry),
		byID:       make(map[string]*Entry),
	}
}

// GetOrCreate 按 key 查找条目；未注册时派生 ID、确定 TTL（ttlOverride > 0 时
// 优先于默认值）并登记。命中已注册条目时 ttlOverride 被忽略——首次登记者生效。
// 派生 ID 已存在（通常是 Load 从磁盘恢复的条目）时复用该条目，保证重启后按
// 原始 key 访问仍指向同一个正文文件。
func (r *Registry) GetOrCreate(key string, ttlOverride time.Duration) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[key]; ok {
		return entry
	}

	id := DeriveID(key)
	if entry, ok := r.byID[id]; ok {
		r.entries[key] = entry
		return entry
	}

	ttl := r.defaultTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}

	entry := &Entry{
		ID:   id,
		TTL:  ttl,
		Path: filepath.Join(r.dir, entryFileName(id, ttl)),
	}
	r.entries[key] = entry
	r.byID[id] = entry
	return entry
}

// Load 扫描磁盘上已有的正文文件并按文件名恢复条目，使重启后的进程无需重新
// 抓取即可拿到准确的逐条目 TTL。磁盘条目只知道 ID，因此以 ID 作为索引 key——
// DeriveID 对合法 ID 原样透传，后续按原始 key 访问会命中同一个正文文件。
func (r *Registry) Load(storage Storage) {
	paths, err := storage.List()
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, path := range paths {
		id, ttl, ok := parseEntryFileName(filepath.Base(path), r.defaultTTL)
		if !ok {
			continue
		}
		if _, exists := r.byID[id]; exists {
			continue
		}
		entry := &Entry{ID: id, TTL: ttl, Path: path}
		r.entries[id] = entry
		r.byID[id] = entry
	}
}

// Remove 将 key 指向的条目整体移出索引，返回被移除的条目（未注册时为 nil）。
// 同一条目可能有多个 key 指向它（Load 以 ID 登记，之后按原始 key 访问会补一个
// 别名），因此这里按条目删除：所有别名连同 ID 索引一并清掉，不留悬挂引用。
func (r *Registry) Remove(key string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[key]
	if entry == nil {
		return nil
	}
	for alias, candidate := range r.entries {
		if candidate == entry {
			delete(r.entries, alias)
		}
	}
	delete(r.byID, entry.ID)
	return entry
}

// Snapshot 返回当前索引的 key → Entry 副本，供 Clear 等批量操作遍历。
func (r *Registry) Snapshot() map[string]*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]*Entry, len(r.entries))
	for key, entry := range r.entries {
		snapshot[key] = entry
	}
	return snapshot
}

// Len 返回已注册条目数。以 ID 索引计数，指向同一条目的多个 key 只算一条。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// entryFileName 生成 <id>-<ttl 秒>.cache 形式的文件名。
func entryFileName(id string, ttl time.Duration) string {
	return fmt.Sprintf("%s-%d%s", id, int64(ttl.Seconds()), fileSuffix)
}

// parseEntryFileName 解析 <id>-<ttl>.cache 或遗留的 <id>.cache（后者视为
// 默认 TTL）。ID 非法时整个文件被跳过，TTL 段无法解析时退化为仅含 ID 处理。
func parseEntryFileName(name string, defaultTTL time.Duration) (string, time.Duration, bool) {
	stem, found := strings.CutSuffix(name, fileSuffix)
	if !found {
		return "", 0, false
	}

	if IsEntryID(stem) {
		return stem, defaultTTL, true
	}

	idx := strings.LastIndex(stem, "-")
	if idx <= 0 {
		return "", 0, false
	}
	id := stem[:idx]
	if !IsEntryID(id) {
		return "", 0, false
	}

	seconds, err := strconv.ParseInt(stem[idx+1:], 10, 64)
	if err != nil || seconds < 0 {
		return id, defaultTTL, true
	}
	return id, time.Duration(seconds) * time.Second, true
}
