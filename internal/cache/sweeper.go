package cache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prerender-hub/prerender-hub/internal/metrics"
)

// SweeperOptions 控制 Sweeper 的构造参数。Interval 为 0 时只做启动清扫，
// 不开启周期清扫。
type SweeperOptions struct {
	Root     string
	TTL      time.Duration
	Interval time.Duration
	Logger   *logrus.Logger
}

// Sweeper 负责回收过期条目：启动（及可选周期）清扫整棵缓存树，同时为每次
// 写入维护一只可取消的一次性定时器。两条路径可能竞争删除同一条目，
// 删除本身幂等，重复触发是无害的空操作。
type Sweeper struct {
	root     string
	ttl      time.Duration
	interval time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSweeper 构造 Sweeper，不会立即执行任何清扫。
func NewSweeper(opts SweeperOptions) *Sweeper {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sweeper{
		root:     opts.Root,
		ttl:      opts.TTL,
		interval: opts.Interval,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
}

// Start 异步执行启动清扫；Interval > 0 时继续按周期清扫，直到 Close。
func (w *Sweeper) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Sweep()

		if w.interval <= 0 {
			return
		}
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Sweep()
			case <-w.done:
				return
			}
		}
	}()
}

// Close 停止周期清扫并取消所有待触发的定时器。
func (w *Sweeper) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for hash, timer := range w.timers {
		timer.Stop()
		delete(w.timers, hash)
	}
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
}

// Schedule 为条目登记 delay 之后的到期删除；同一 hash 重复登记会刷新定时器。
func (w *Sweeper) Schedule(hash string, delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if existing, ok := w.timers[hash]; ok {
		existing.Stop()
	}
	w.timers[hash] = time.AfterFunc(delay, func() { w.expire(hash) })
}

// Cancel 撤销条目的到期定时器。显式 Delete 时调用，避免多余的空触发。
func (w *Sweeper) Cancel(hash string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[hash]; ok {
		timer.Stop()
		delete(w.timers, hash)
	}
}

func (w *Sweeper) expire(hash string) {
	w.mu.Lock()
	delete(w.timers, hash)
	w.mu.Unlock()

	removeEntryFiles(w.logger, w.root, hash)
	removeShardIfEmpty(w.logger, w.root, hash)
	metrics.IncExpired()
	w.logger.WithFields(logrus.Fields{
		"action": "cache_expire",
		"hash":   hash,
	}).Debug("条目到期删除")
}

// Sweep 平铺遍历所有分片目录（缓存树固定两层，无需递归）：过期条目立即删除，
// 未过期条目按剩余 TTL 补登记定时器，保证进程重启后磁盘上的每个文件仍有
// 到期触发点。单个目录或文件的错误只记日志，不中断整体遍历。
func (w *Sweeper) Sweep() {
	shards, err := os.ReadDir(w.root)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.WithError(err).WithField("dir", w.root).Warn("sweep_failed")
		}
		return
	}

	removed := 0
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		removed += w.sweepShard(filepath.Join(w.root, shard.Name()))
	}

	metrics.AddSweepRemoved(removed)
	w.logger.WithFields(logrus.Fields{
		"action":  "cache_sweep",
		"removed": removed,
	}).Info("清扫完成")
}

// sweepShard 处理单个分片目录，返回删除的条目数。目录可能在遍历中途被并发
// 删除，相关错误一律按单目录隔离处理。
func (w *Sweeper) sweepShard(dir string) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.WithError(err).WithField("dir", dir).Warn("sweep_dir_failed")
		}
		return 0
	}

	removed := 0
	hasMeta := make(map[string]bool)
	for _, file := range files {
		if strings.HasSuffix(file.Name(), metaSuffix) {
			hasMeta[strings.TrimSuffix(file.Name(), metaSuffix)] = true
		}
	}

	for _, file := range files {
		name := file.Name()
		switch {
		case strings.HasSuffix(name, metaSuffix):
			hash := strings.TrimSuffix(name, metaSuffix)
			info, err := file.Info()
			if err != nil {
				continue
			}
			age := time.Since(info.ModTime())
			if age >= w.ttl {
				w.Cancel(hash)
				removeEntryFiles(w.logger, filepath.Dir(dir), hash)
				removed++
			} else {
				w.Schedule(hash, w.ttl-age)
			}
		case strings.HasSuffix(name, dataSuffix):
			// 只剩 .data 的孤儿文件来自中断的写入，过龄后直接清理。
			hash := strings.TrimSuffix(name, dataSuffix)
			if hasMeta[hash] {
				continue
			}
			info, err := file.Info()
			if err != nil {
				continue
			}
			if time.Since(info.ModTime()) >= w.ttl {
				if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
					w.logger.WithError(err).WithField("file", name).Warn("sweep_remove_failed")
				}
			}
		}
	}

	if remaining, err := os.ReadDir(dir); err == nil && len(remaining) == 0 {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			w.logger.WithError(err).WithField("dir", dir).Warn("sweep_rmdir_failed")
		}
	}
	return removed
}
