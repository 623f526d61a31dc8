package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotFound 表示缓存正文不存在。
var ErrNotFound = errors.New("cache entry not found")

// Storage 抽象缓存正文所需的文件原语。handle 即 Entry.Path（绝对路径），
// 实现可以替换为任意 blob 后端而不影响上层的新鲜度与清理策略。
type Storage interface {
	// Exists 报告正文文件当前是否存在。
	Exists(path string) bool

	// Stat 返回正文大小与最后修改时间，不存在时返回 ErrNotFound。
	Stat(path string) (size int64, modTime time.Time, err error)

	// Read 读取完整正文字节，不存在时返回 ErrNotFound。
	Read(path string) ([]byte, error)

	// Write 原子写入正文（临时文件 + rename），并把文件时间戳定到 modTime。
	Write(path string, data []byte, modTime time.Time) error

	// Remove 删除正文文件；文件本就不存在时同样返回 ErrNotFound。
	Remove(path string) error

	// List 枚举缓存目录下所有 *.cache 正文文件的绝对路径。
	List() ([]string, error)
}

// NewDiskStorage 以 dir 为根目录构建磁盘存储，目录不存在时自动创建。
func NewDiskStorage(dir string) (Storage, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &diskStorage{
		dir:   abs,
		locks: make(map[string]*entryLock),
	}, nil
}

// diskStorage 通过 entryLock 避免同一路径并发写入；锁用完即回收。
type diskStorage struct {
	dir string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *diskStorage) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *diskStorage) Stat(path string) (int64, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, time.Time{}, ErrNotFound
		}
		return 0, time.Time{}, err
	}
	if info.IsDir() {
		return 0, time.Time{}, ErrNotFound
	}
	return info.Size(), info.ModTime(), nil
}

func (s *diskStorage) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *diskStorage) Write(path string, data []byte, modTime time.Time) error {
	unlock := s.lockEntry(path)
	defer unlock()

	tempFile, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}

	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	return os.Chtimes(path, modTime, modTime)
}

func (s *diskStorage) Remove(path string) error {
	unlock := s.lockEntry(path)
	defer unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *diskStorage) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		info, statErr := os.Stat(match)
		if statErr != nil || info.IsDir() {
			continue
		}
		paths = append(paths, match)
	}
	return paths, nil
}

func (s *diskStorage) lockEntry(path string) func() {
	s.mu.Lock()
	lock := s.locks[path]
	if lock == nil {
		lock = &entryLock{}
		s.locks[path] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, path)
		}
		s.mu.Unlock()
	}
}
