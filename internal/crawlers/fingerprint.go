package crawlers

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint 计算页面原始字节的SHA-256摘要(十六进制)
// 相同字节总是得到相同摘要
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
