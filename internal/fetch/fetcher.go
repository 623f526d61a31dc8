// Package fetch 实现缓存未命中时的远程回源：共享 http.Client、指数退避重试，
// 并把上游失败统一包装为 *Error 反馈给缓存门面。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Error 表示一次远程抓取失败，携带 key 与上游状态码（网络错误时为 0）。
type Error struct {
	Key    string
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: upstream status %d", e.Key, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Cause)
}

// Unwrap 暴露底层网络错误，便于调用方 errors.Is 判断。
func (e *Error) Unwrap() error {
	return e.Cause
}

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Options 控制 HTTP 回源行为。
type Options struct {
	// Timeout 是单次上游请求的整体超时，<= 0 时取 30s。
	Timeout time.Duration
	// MaxRetries 是首次请求之外的最大重试次数。
	MaxRetries int
	// InitialBackoff 是第一次重试前的等待时间，之后逐次翻倍；<= 0 时取 1s。
	InitialBackoff time.Duration
	// UserAgent 为空时不设置 UA 头。
	UserAgent string
	// Logger 为空时不输出日志。
	Logger *logrus.Logger
	// Client 允许测试注入；为空时基于共享 transport 构造。
	Client *http.Client
}

// HTTPFetcher 按 key（必须是合法 http/https URL）执行 GET 并返回完整正文。
type HTTPFetcher struct {
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	userAgent      string
	logger         *logrus.Logger
}

// NewHTTPFetcher 构造共享 client 的回源器，所有 key 复用同一连接池。
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport.Clone(),
		}
	}

	return &HTTPFetcher{
		client:         client,
		maxRetries:     opts.MaxRetries,
		initialBackoff: backoff,
		userAgent:      opts.UserAgent,
		logger:         opts.Logger,
	}
}

// Fetch 执行带重试的 GET。5xx 与网络错误会按指数退避重试，4xx 视为确定性
// 失败立即返回；所有尝试耗尽后返回最后一次的 *Error。
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	if _, err := parseFetchURL(key); err != nil {
		return nil, &Error{Key: key, Cause: err}
	}

	var lastErr error
	backoff := f.initialBackoff
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			f.logRetry(key, attempt, lastErr)
			select {
			case <-ctx.Done():
				return nil, &Error{Key: key, Cause: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		data, retryable, err := f.fetchOnce(ctx, key)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, http.NoBody)
	if err != nil {
		return nil, false, &Error{Key: key, Cause: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, !errors.Is(err, context.Canceled), &Error{Key: key, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 消费残余正文以归还连接。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode >= http.StatusInternalServerError,
			&Error{Key: key, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, &Error{Key: key, Cause: err}
	}
	return data, false, nil
}

func (f *HTTPFetcher) logRetry(key string, attempt int, err error) {
	if f.logger == nil {
		return
	}
	fields := logrus.Fields{
		"action":  "fetch_retry",
		"key":     key,
		"attempt": attempt,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	f.logger.WithFields(fields).Warn("fetch_retry")
}

func parseFetchURL(key string) (*url.URL, error) {
	parsed, err := url.Parse(key)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("missing host: %s", key)
	}
	return parsed, nil
}
