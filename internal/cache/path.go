package cache

import "path/filepath"

const (
	dataSuffix = ".data"
	metaSuffix = ".meta"
)

// entryPath 返回条目的基础路径 <root>/<hash[0:2]>/<hash>。前两位十六进制字符
// 作为分片目录，把单目录文件数限制在 256 个子目录内。本函数不创建目录。
func entryPath(root, hash string) string {
	return filepath.Join(root, hash[:2], hash)
}

func dataPath(base string) string { return base + dataSuffix }
func metaPath(base string) string { return base + metaSuffix }
