package integration

import (
	"io"
	"net/http"
	"testing"
	"time"
)

// 进程重启后，磁盘上的条目必须可以按原始 URL 继续命中，且不触发回源。
func TestRestartServesFromDisk(t *testing.T) {
	upstream := newUpstreamStub(t)
	dir := t.TempDir()
	target := upstream.URL + "/pkg/restart"

	app, _ := newTestStack(t, dir, time.Minute, 0)
	resp := objectRequest(t, app, http.MethodGet, target)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on initial fetch, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// 上游失效以证明第二个进程完全依赖磁盘
	upstream.AlwaysFail()

	app2, _ := newTestStack(t, dir, time.Minute, 0)
	resp2 := objectRequest(t, app2, http.MethodGet, target)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from rebuilt cache, got %d", resp2.StatusCode)
	}
	if resp2.Header.Get("X-Fetch-Cache-Hit") != "true" {
		t.Fatalf("expected hit after restart")
	}
	body, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if string(body) != "upstream payload body" {
		t.Fatalf("unexpected body after restart: %s", string(body))
	}

	if upstream.Hits() != 1 {
		t.Fatalf("expected no upstream traffic after restart, got %d", upstream.Hits())
	}
}
