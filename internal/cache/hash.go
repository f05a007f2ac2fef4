package cache

import (
	"crypto/sha1"
	"encoding/hex"
)

// HashKey 将原始 URL 映射为 40 位十六进制摘要。URL 按原样参与计算，不做任何
// 归一化，保证同一 URL 在进程重启后仍落到同一路径。
func HashKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
