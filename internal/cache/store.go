package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotFound 是统一的未命中信号，涵盖条目缺失、过期与数据损坏三种情况。
var ErrNotFound = errors.New("cache entry not found")

// Entry 表示一次缓存命中结果，正文已解压。
type Entry struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Store 负责磁盘缓存条目的读写与删除。磁盘布局遵循：
//
//	<CachePath>/<hash[0:2]>/<hash>.data    # gzip 压缩正文
//	<CachePath>/<hash[0:2]>/<hash>.meta    # JSON 状态码 + 头部
//
// 过期判定以 .meta 文件的 ModTime 为准，两个文件总是成对写入、成对删除。
type Store interface {
	// Get 返回未过期的缓存条目；缺失、过期或损坏一律返回 ErrNotFound。
	Get(ctx context.Context, url string) (*Entry, error)

	// Set 写入条目（先 .data 后 .meta），并向 Sweeper 注册到期删除。
	Set(ctx context.Context, url string, statusCode int, headers map[string]string, body []byte) error

	// Delete 幂等地删除条目的两个文件，并在分片目录为空时移除目录。
	Delete(ctx context.Context, url string) error
}

// Options 控制 Store 的构造参数。Sweeper 可以为 nil，此时不注册到期定时器。
type Options struct {
	Root    string
	TTL     time.Duration
	Logger  *logrus.Logger
	Sweeper *Sweeper
}
