// Package main 提供 corestore 命令行入口
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	corestore "github.com/dep2p/go-corestore"
	"github.com/dep2p/go-corestore/internal/core/metrics"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("corestore/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 设计原则：
//
//   全局参数：选定 Store（数据目录、根密钥、命名空间）
//   子命令参数：单次操作的细节（端口、超时、公钥）
//   JSON 配置文件：长期运行的固定配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// Store 定位参数
	// ─────────────────────────────────────────────────────────────────────
	dataDir    = flag.String("data-dir", "", "数据目录（默认: ./data）")
	inMemory   = flag.Bool("mem", false, "使用内存存储（进程退出即丢弃）")
	configFile = flag.String("config", "", "配置文件路径（JSON）")
	primaryKey = flag.String("primary-key", "", "根密钥（64 位十六进制，覆盖已持久化的记录）")
	namespace  = flag.String("namespace", "", "命名空间路径（以 / 分隔多段）")

	// ─────────────────────────────────────────────────────────────────────
	// 日志参数
	// ─────────────────────────────────────────────────────────────────────
	logFile = flag.String("log", "", "日志文件路径（默认输出到 stderr）")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	if err := setupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "警告: %v\n", err)
		fmt.Fprintln(os.Stderr, "将继续使用控制台输出日志")
	}

	args := flag.Args()
	if len(args) == 0 {
		printHelp()
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return cmdCreate(rest)
	case "append":
		return cmdAppend(rest)
	case "read":
		return cmdRead(rest)
	case "list":
		return cmdList(rest)
	case "serve":
		return cmdServe(rest)
	case "sync":
		return cmdSync(rest)
	case "version":
		printVersion()
		return nil
	case "help":
		printHelp()
		return nil
	default:
		return fmt.Errorf("未知命令: %s（corestore help 查看用法）", cmd)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Store 打开
// ═══════════════════════════════════════════════════════════════════════════

// openStore 按全局参数打开 Store 并定位到命名空间视图
//
// 返回根 Store（调用方负责 Close）和命名空间视图。
func openStore() (*corestore.Store, *corestore.Store, error) {
	opts, err := buildOptions()
	if err != nil {
		return nil, nil, fmt.Errorf("配置错误: %w", err)
	}

	root, err := corestore.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("打开 Store 失败: %w", err)
	}

	view := root
	for _, segment := range namespacePath() {
		view = view.Namespace(segment)
	}
	return root, view, nil
}

// buildOptions 构建 Store 选项
//
// 配置优先级（从高到低）：
//  1. 命令行参数（运行时覆盖）
//  2. 环境变量（CORESTORE_* 前缀）
//  3. 配置文件（持久化配置）
//  4. 默认值
func buildOptions() ([]corestore.Option, error) {
	var opts []corestore.Option

	if *configFile != "" {
		cfg, err := loadConfigFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		opts = append(opts, corestore.WithConfig(cfg))
	}

	// 数据目录（命令行 > 环境变量 > 配置文件内的值）
	dir := *dataDir
	if dir == "" {
		dir = os.Getenv(envDataDir)
	}
	if dir != "" {
		opts = append(opts, corestore.WithStorage(dir))
	}

	if *inMemory {
		opts = append(opts, corestore.WithInMemoryStorage())
	}

	// 根密钥（命令行 > 环境变量）
	keyHex := *primaryKey
	if keyHex == "" {
		keyHex = os.Getenv(envPrimaryKey)
	}
	if keyHex != "" {
		secret, err := parseSecretHex(keyHex)
		if err != nil {
			return nil, err
		}
		opts = append(opts, corestore.WithPrimaryKey(secret))
	}

	return opts, nil
}

// namespacePath 解析命名空间路径（命令行 > 环境变量）
func namespacePath() []string {
	ns := *namespace
	if ns == "" {
		ns = os.Getenv(envNamespace)
	}
	if ns == "" {
		return nil
	}
	return splitAndTrim(ns, "/")
}

// ═══════════════════════════════════════════════════════════════════════════
// 子命令
// ═══════════════════════════════════════════════════════════════════════════

// cmdCreate 创建（或打开）一条命名日志并打印其身份
func cmdCreate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("用法: corestore create <name>")
	}

	root, view, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	core, err := view.GetByName(context.Background(), args[0])
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()

	fmt.Printf("名字:   %s\n", args[0])
	if path := view.Path(); len(path) > 0 {
		fmt.Printf("空间:   %s\n", strings.Join(path, "/"))
	}
	fmt.Printf("公钥:   %s\n", core.Key())
	fmt.Printf("发现键: %s\n", core.DiscoveryKey())
	fmt.Printf("长度:   %d\n", core.Length())
	return nil
}

// cmdAppend 追加块
//
// 块内容来自命令行参数；没有参数时逐行读取标准输入。
func cmdAppend(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("用法: corestore append <name> [data ...]")
	}
	name, blocks := args[0], args[1:]

	root, view, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	core, err := view.GetByName(context.Background(), name)
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()

	var payload [][]byte
	if len(blocks) > 0 {
		for _, b := range blocks {
			payload = append(payload, []byte(b))
		}
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			payload = append(payload, []byte(line))
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("读取标准输入失败: %w", err)
		}
	}
	if len(payload) == 0 {
		return fmt.Errorf("没有可追加的内容")
	}

	first, err := core.Append(payload...)
	if err != nil {
		return err
	}
	fmt.Printf("已追加 %d 块（序号 %d..%d），当前长度 %d\n",
		len(payload), first, first+uint64(len(payload))-1, core.Length())
	return nil
}

// cmdRead 读取块并写到标准输出
//
// 按名字或公钥定位日志；给定序号读单块，否则顺序输出全部块。
// 本地缺失的块会等待复制补齐，超时由 -timeout 控制。
func cmdRead(args []string) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	keyStr := fs.String("key", "", "按公钥读取（Base58）")
	timeout := fs.Duration("timeout", 10*time.Second, "等待远端补块的超时")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	root, view, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	var core *corestore.Core
	if *keyStr != "" {
		key, err := types.ParseCoreKey(*keyStr)
		if err != nil {
			return fmt.Errorf("公钥格式错误: %w", err)
		}
		core, err = view.GetByKey(context.Background(), key)
		if err != nil {
			return err
		}
	} else {
		if len(rest) < 1 {
			return fmt.Errorf("用法: corestore read <name> [index] 或 corestore read -key <base58> [index]")
		}
		core, err = view.GetByName(context.Background(), rest[0])
		if err != nil {
			return err
		}
		rest = rest[1:]
	}
	defer func() { _ = core.Close() }()

	readOne := func(index uint64) error {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		block, err := core.Get(ctx, index)
		if err != nil {
			return fmt.Errorf("读取块 %d 失败: %w", index, err)
		}
		if _, err := os.Stdout.Write(block); err != nil {
			return err
		}
		fmt.Println()
		return nil
	}

	if len(rest) == 1 {
		index, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("序号格式错误: %w", err)
		}
		return readOne(index)
	}

	length := core.Length()
	for i := uint64(0); i < length; i++ {
		if err := readOne(i); err != nil {
			return err
		}
	}
	return nil
}

// cmdList 列出本地已持久化的日志
func cmdList(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("用法: corestore list")
	}

	root, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	infos, err := root.Cores()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("（空）")
		return nil
	}

	for _, info := range infos {
		name := info.Name
		if name == "" {
			name = "-"
		}
		access := "只读"
		if info.Writable {
			access = "可写"
		}
		fmt.Printf("%-20s %s  长度=%d %s\n", name, info.Key, info.Length, access)
	}
	return nil
}

// cmdServe 监听 TCP 端口并为入站连接提供复制服务
func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", ":9350", "监听地址")
	passive := fs.Bool("passive", false, "被动模式（不主动宣告本地日志）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	root, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}
	defer func() { _ = ln.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go acceptLoop(ctx, ln, root, *passive)

	printServeInfo(root, ln.Addr().String())
	fmt.Println("服务已启动，按 Ctrl+C 退出")
	waitForSignal()

	fmt.Println("\n正在关闭...")
	printStats(root.Stats())
	return nil
}

// acceptLoop 接受入站连接并逐条启动复制流
func acceptLoop(ctx context.Context, ln net.Listener, store *corestore.Store, passive bool) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		logger.Info("接受复制连接", "remote", conn.RemoteAddr().String())

		stream, err := store.Replicate(ctx, conn, false,
			corestore.WithStreamPassive(passive))
		if err != nil {
			logger.Warn("启动复制失败", "error", err)
			_ = conn.Close()
			continue
		}
		go func(remote string) {
			<-stream.Done()
			logger.Info("复制连接结束", "remote", remote, "error", stream.Err())
		}(conn.RemoteAddr().String())
	}
}

// cmdSync 连接远端 Store 并同步
func cmdSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	wait := fs.Duration("wait", 0, "同步时长（0 = 持续同步直到 Ctrl+C）")
	passive := fs.Bool("passive", false, "被动模式（不主动宣告本地日志）")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("用法: corestore sync [-wait 10s] <host:port>")
	}
	addr := rest[0]

	root, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("连接 %s 失败: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := root.Replicate(ctx, conn, true,
		corestore.WithStreamPassive(*passive))
	if err != nil {
		_ = conn.Close()
		return err
	}

	fmt.Printf("已连接 %s，正在同步...\n", addr)
	if *wait > 0 {
		select {
		case <-time.After(*wait):
		case <-stream.Done():
		}
	} else {
		fmt.Println("按 Ctrl+C 结束同步")
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-signals:
		case <-stream.Done():
		}
	}

	_ = stream.Close()
	if err := stream.Err(); err != nil {
		return fmt.Errorf("同步中断: %w", err)
	}
	printStats(root.Stats())
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 输出辅助
// ═══════════════════════════════════════════════════════════════════════════

// printServeInfo 打印服务信息（美化输出）
func printServeInfo(store *corestore.Store, addr string) {
	infos, _ := store.Cores()

	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  Corestore Serving (%s)                            ║\n", corestore.Version)
	fmt.Println("╠════════════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Listen:  %-60s ║\n", addr)
	fmt.Printf("║  Cores:   %-60d ║\n", len(infos))
	fmt.Println("║                                                                        ║")

	if len(infos) > 0 {
		fmt.Println("║  Keys (copy to share):                                                 ║")
		for _, info := range infos {
			printWrappedLine(info.Key.String(), 66)
		}
		fmt.Println("║                                                                        ║")
	}

	fmt.Println("╚════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printWrappedLine 打印可复制的长行内容（不截断）
func printWrappedLine(text string, width int) {
	if width <= 0 {
		fmt.Printf("║    %s  ║\n", text)
		return
	}
	for len(text) > width {
		fmt.Printf("║    %-*s  ║\n", width, text[:width])
		text = text[width:]
	}
	fmt.Printf("║    %-*s  ║\n", width, text)
}

// printStats 打印复制统计
func printStats(stats types.ReplicationStats) {
	fmt.Printf("接收 %d 块 / %s，发送 %d 块 / %s\n",
		stats.BlocksIn, metrics.FormatBytes(stats.BytesIn),
		stats.BlocksOut, metrics.FormatBytes(stats.BytesOut))
}

// waitForSignal 等待退出信号
func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}

// setupLogging 设置日志输出
//
// 指定 -log（或 CORESTORE_LOG_FILE）时日志写入文件，否则输出到 stderr。
func setupLogging() error {
	path := *logFile
	if path == "" {
		path = os.Getenv(envLogFile)
	}
	if path == "" {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.SetOutput(file)
	return nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("corestore %s\n", corestore.Version)
	if corestore.GitCommit != "" {
		fmt.Printf("  commit: %s\n", corestore.GitCommit)
	}
	if corestore.BuildDate != "" {
		fmt.Printf("  built:  %s\n", corestore.BuildDate)
	}
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("corestore - 多日志存储管理器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  corestore [全局选项] <命令> [命令选项]")
	fmt.Println()
	fmt.Println("命令:")
	fmt.Println("  create <name>             创建（或打开）一条命名日志并打印其公钥")
	fmt.Println("  append <name> [data ...]  追加块（无参数时逐行读取标准输入）")
	fmt.Println("  read   <name> [index]     读取块（-key 按公钥读取只读日志）")
	fmt.Println("  list                      列出本地已持久化的日志")
	fmt.Println("  serve                     监听 TCP 端口提供复制服务")
	fmt.Println("  sync   <host:port>        连接远端并同步")
	fmt.Println("  version                   显示版本信息")
	fmt.Println()
	fmt.Println("全局选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println("环境变量")
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println("  CORESTORE_DATA_DIR     数据目录")
	fmt.Println("  CORESTORE_PRIMARY_KEY  根密钥（64 位十六进制）")
	fmt.Println("  CORESTORE_NAMESPACE    命名空间路径（以 / 分隔）")
	fmt.Println("  CORESTORE_LOG_FILE     日志文件路径")
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println("使用示例")
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println("  # 创建日志并追加内容")
	fmt.Println("  corestore -data-dir ./alice create journal")
	fmt.Println("  corestore -data-dir ./alice append journal \"first entry\"")
	fmt.Println()
	fmt.Println("  # 在命名空间下操作")
	fmt.Println("  corestore -data-dir ./alice -namespace app/v1 append journal \"scoped\"")
	fmt.Println()
	fmt.Println("  # Alice 对外提供复制服务")
	fmt.Println("  corestore -data-dir ./alice serve -listen :9350")
	fmt.Println()
	fmt.Println("  # Bob 按公钥登记兴趣并同步")
	fmt.Println("  corestore -data-dir ./bob read -key <base58-key> 0 &")
	fmt.Println("  corestore -data-dir ./bob sync -wait 10s alice:9350")
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println("配置文件示例 (config.json)")
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println(`  {`)
	fmt.Println(`    "storage": {`)
	fmt.Println(`      "directory": "/var/lib/corestore",`)
	fmt.Println(`      "sync_writes": true`)
	fmt.Println(`    },`)
	fmt.Println(`    "registry": {`)
	fmt.Println(`      "eviction_delay": "5s"`)
	fmt.Println(`    },`)
	fmt.Println(`    "replication": {`)
	fmt.Println(`      "passive": false,`)
	fmt.Println(`      "handshake_timeout": "15s"`)
	fmt.Println(`    }`)
	fmt.Println(`  }`)
}
