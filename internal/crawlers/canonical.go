package crawlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// BuildCanonicalKey 构造跨运行稳定的去重键
// 有源站ID时格式为 site:id;无ID时退化为位置+标题哈希:
// site:index_{position}_hash_{标题SHA-256前8位}
// 同一运行内同一列表快照下,退化键也是确定且唯一的
func BuildCanonicalKey(site, sourceItemID string, position int, title string) string {
	if sourceItemID != "" {
		return fmt.Sprintf("%s:%s", site, sourceItemID)
	}
	return fmt.Sprintf("%s:index_%d_hash_%s", site, position, TitleHash(title))
}

// TitleHash 标题SHA-256十六进制摘要的前8位
func TitleHash(title string) string {
	sum := sha256.Sum256([]byte(title))
	return hex.EncodeToString(sum[:])[:8]
}

// ContentHash 正文内容的完整SHA-256十六进制摘要,用于变更检测
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
