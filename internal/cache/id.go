package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// idPattern 匹配已派生的 EntryID：sha256 十六进制输出，固定 64 位小写。
var idPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// DeriveID 将任意 key（通常是 URL）映射为文件系统安全的固定长度标识。
// 相同 key 永远得到相同 ID；若传入的字符串本身已是合法 ID 则原样返回，
// 方便调用方绕过 key 哈希直接按 ID 定位条目。纯函数，无副作用。
func DeriveID(key string) string {
	if idPattern.MatchString(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IsEntryID reports whether the string already looks like a derived id.
func IsEntryID(s string) bool {
	return idPattern.MatchString(s)
}
