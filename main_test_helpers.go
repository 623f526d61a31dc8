package main

import (
	"bytes"
	"testing"
)

// captureCLIOutput 在测试期间把 stdOut/stdErr 换成内存缓冲区，结束后恢复，
// 使 run/printVersion 的输出可以直接断言而不会混进测试日志。
func captureCLIOutput(t *testing.T) {
	t.Helper()

	prevOut, prevErr := stdOut, stdErr
	stdOut = &bytes.Buffer{}
	stdErr = &bytes.Buffer{}

	t.Cleanup(func() {
		stdOut = prevOut
		stdErr = prevErr
	})
}

// capturedStdOut 返回 captureCLIOutput 生效期间积累的 stdout 内容。
func capturedStdOut() string {
	if buf, ok := stdOut.(*bytes.Buffer); ok {
		return buf.String()
	}
	return ""
}

// capturedStdErr 返回 captureCLIOutput 生效期间积累的 stderr 内容。
func capturedStdErr() string {
	if buf, ok := stdErr.(*bytes.Buffer); ok {
		return buf.String()
	}
	return ""
}
