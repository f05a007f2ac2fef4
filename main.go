package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/prerender-hub/prerender-hub/internal/cache"
	"github.com/prerender-hub/prerender-hub/internal/config"
	"github.com/prerender-hub/prerender-hub/internal/facade"
	"github.com/prerender-hub/prerender-hub/internal/logging"
	"github.com/prerender-hub/prerender-hub/internal/metrics"
	"github.com/prerender-hub/prerender-hub/internal/proxy"
	"github.com/prerender-hub/prerender-hub/internal/server"
	"github.com/prerender-hub/prerender-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_path"] = cfg.CachePath
		fields["ttl"] = cfg.CacheTTL.DurationValue().String()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	metrics.Init()

	// 启动顺序固定为“配置 → Sweeper → 磁盘缓存 → Facade → Fiber server”，
	// 保证所有请求共享同一份存储与定时器实例。
	sweeper := cache.NewSweeper(cache.SweeperOptions{
		Root:     cfg.CachePath,
		TTL:      cfg.CacheTTL.DurationValue(),
		Interval: cfg.SweepInterval.DurationValue(),
		Logger:   logger,
	})
	store, err := cache.NewStore(cache.Options{
		Root:    cfg.CachePath,
		TTL:     cfg.CacheTTL.DurationValue(),
		Logger:  logger,
		Sweeper: sweeper,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}
	sweeper.Start()
	defer sweeper.Close()

	codes, err := cfg.StatusCodes()
	if err != nil {
		fmt.Fprintf(stdErr, "解析状态码白名单失败: %v\n", err)
		return 1
	}
	cacheFacade := facade.New(store, codes, logger)
	defer cacheFacade.Flush()

	httpClient := server.NewUpstreamClient(cfg)
	forwarder, err := proxy.NewForwarder(cfg.Upstream, httpClient, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化上游转发失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["cache_path"] = cfg.CachePath
	fields["ttl"] = cfg.CacheTTL.DurationValue().String()
	fields["listen_port"] = cfg.ListenPort
	fields["upstream"] = cfg.Upstream
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, cacheFacade, forwarder, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("prerender-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认仅用环境变量，可被 PRERENDER_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PRERENDER_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, cacheFacade *facade.Facade, forwarder *proxy.Forwarder, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Cache:      cacheFacade.Handler(),
		Proxy:      forwarder,
		ListenPort: cfg.ListenPort,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.ListenPort,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", cfg.ListenPort))
}
