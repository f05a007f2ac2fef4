package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prerender-hub/prerender-hub/internal/metrics"
)

// NewStore 以 opts.Root 为根目录构建磁盘缓存，整个进程复用一份实例。
func NewStore(opts Options) (Store, error) {
	if opts.Root == "" {
		return nil, errors.New("cache root required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}

	abs, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &fileStore{
		root:    abs,
		ttl:     opts.TTL,
		logger:  logger,
		sweeper: opts.Sweeper,
	}, nil
}

// fileStore 不对条目加锁：同一 URL 的并发 set/set 接受“后写覆盖”，set 与
// delete/过期竞争最多造成一次多余的未命中。缓存只是优化层，不是事实来源。
type fileStore struct {
	root    string
	ttl     time.Duration
	logger  *logrus.Logger
	sweeper *Sweeper
}

func (s *fileStore) Get(ctx context.Context, url string) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	hash := HashKey(url)
	base := entryPath(s.root, hash)

	info, err := os.Stat(metaPath(base))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithError(err).WithField("hash", hash).Warn("cache_stat_failed")
		}
		return nil, ErrNotFound
	}
	if _, err := os.Stat(dataPath(base)); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithError(err).WithField("hash", hash).Warn("cache_stat_failed")
		}
		return nil, ErrNotFound
	}

	if time.Since(info.ModTime()) >= s.ttl {
		// 同步取消待触发的定时器，否则它稍后空触发并重复计入过期数。
		if s.sweeper != nil {
			s.sweeper.Cancel(hash)
		}
		removeEntryFiles(s.logger, s.root, hash)
		removeShardIfEmpty(s.logger, s.root, hash)
		metrics.IncExpired()
		return nil, ErrNotFound
	}

	rawMeta, err := os.ReadFile(metaPath(base))
	if err != nil {
		s.logger.WithError(err).WithField("hash", hash).Warn("cache_read_failed")
		return nil, ErrNotFound
	}
	rawData, err := os.ReadFile(dataPath(base))
	if err != nil {
		s.logger.WithError(err).WithField("hash", hash).Warn("cache_read_failed")
		return nil, ErrNotFound
	}

	meta, err := decodeMeta(rawMeta)
	if err != nil {
		s.logger.WithError(err).WithField("hash", hash).Warn("cache_decode_failed")
		return nil, ErrNotFound
	}
	body, err := decodeBody(rawData)
	if err != nil {
		s.logger.WithError(err).WithField("hash", hash).Warn("cache_decode_failed")
		return nil, ErrNotFound
	}

	return &Entry{
		StatusCode: meta.StatusCode,
		Headers:    meta.Headers,
		Body:       body,
	}, nil
}

func (s *fileStore) Set(ctx context.Context, url string, statusCode int, headers map[string]string, body []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	hash := HashKey(url)
	base := entryPath(s.root, hash)

	// MkdirAll 天然容忍并发写入者的 "already exists" 竞争。
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}

	compressed, err := encodeBody(body)
	if err != nil {
		return err
	}
	rawMeta, err := encodeMeta(statusCode, headers)
	if err != nil {
		return err
	}

	// 写入顺序即提交协议：.meta 落盘才算条目完成。只看到 .data 的读者
	// 仍会因 .meta 缺失而未命中。
	if err := os.WriteFile(dataPath(base), compressed, 0o644); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	if err := os.WriteFile(metaPath(base), rawMeta, 0o644); err != nil {
		if rmErr := os.Remove(dataPath(base)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.WithError(rmErr).WithField("hash", hash).Warn("cache_cleanup_failed")
		}
		return fmt.Errorf("write meta file: %w", err)
	}

	if s.sweeper != nil {
		s.sweeper.Schedule(hash, s.ttl)
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, url string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	hash := HashKey(url)
	if s.sweeper != nil {
		s.sweeper.Cancel(hash)
	}
	removeEntryFiles(s.logger, s.root, hash)
	removeShardIfEmpty(s.logger, s.root, hash)
	return nil
}

// removeEntryFiles 尽力删除条目的两个文件。文件缺失不是错误，其余失败只记日志。
func removeEntryFiles(logger *logrus.Logger, root, hash string) {
	base := entryPath(root, hash)
	for _, path := range []string{dataPath(base), metaPath(base)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WithError(err).WithField("hash", hash).Warn("cache_cleanup_failed")
		}
	}
}

// removeShardIfEmpty 在分片目录清空后移除目录本身。与并发写入者竞争导致的
// "directory not empty" 属于正常现象，直接吞掉。
func removeShardIfEmpty(logger *logrus.Logger, root, hash string) {
	dir := filepath.Join(root, hash[:2])
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WithError(err).WithField("dir", dir).Warn("cache_cleanup_failed")
		}
		return
	}
	if len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil &&
		!errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTEMPTY) {
		logger.WithError(err).WithField("dir", dir).Warn("cache_cleanup_failed")
	}
}
