package integration

import (
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

// upstreamStub 模拟一个可观测的上游 HTTP 服务，供集成测试复用：
// 记录每次请求并允许测试中途更新响应内容或注入失败。
type upstreamStub struct {
	server   *http.Server
	listener net.Listener
	URL      string

	mu       sync.Mutex
	requests []RecordedRequest
	body     []byte
	status   int
	failures int
}

// RecordedRequest 捕获每次请求的方法/路径/Headers，便于断言回源行为。
type RecordedRequest struct {
	Method  string
	Path    string
	Headers http.Header
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()

	stub := &upstreamStub{
		body:   []byte("upstream payload body"),
		status: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", stub.handle)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start stub listener: %v", err)
	}

	server := &http.Server{Handler: mux}
	stub.server = server
	stub.listener = listener
	stub.URL = "http://" + listener.Addr().String()

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(stub.Close)
	return stub
}

func (s *upstreamStub) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if s.server != nil {
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *upstreamStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
	})
	body := s.body
	status := s.status
	if s.failures > 0 {
		s.failures--
		status = http.StatusBadGateway
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	if status == http.StatusOK {
		_, _ = w.Write(body)
	}
}

// Hits 返回截至目前记录到的请求数。
func (s *upstreamStub) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// UpdateBody 替换后续响应正文，模拟上游内容变更。
func (s *upstreamStub) UpdateBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

// FailNext 让接下来 n 次请求返回 502，之后恢复正常。
func (s *upstreamStub) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// AlwaysFail 让所有后续请求返回 500。
func (s *upstreamStub) AlwaysFail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = http.StatusInternalServerError
}
