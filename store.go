package corestore

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dep2p/go-corestore/config"
	"github.com/dep2p/go-corestore/internal/core/appendlog"
	"github.com/dep2p/go-corestore/internal/core/eventbus"
	"github.com/dep2p/go-corestore/internal/core/keymanager"
	"github.com/dep2p/go-corestore/internal/core/metrics"
	"github.com/dep2p/go-corestore/internal/core/registry"
	"github.com/dep2p/go-corestore/internal/core/replicator"
	"github.com/dep2p/go-corestore/internal/core/storage"
	"github.com/dep2p/go-corestore/internal/core/storage/engine"
	"github.com/dep2p/go-corestore/internal/core/storage/kv"
	"github.com/dep2p/go-corestore/pkg/interfaces"
	"github.com/dep2p/go-corestore/pkg/lib/log"
	"github.com/dep2p/go-corestore/pkg/types"
)

var logger = log.Logger("corestore")

// 启动与停止超时
const (
	startTimeout = 30 * time.Second
	stopTimeout  = 10 * time.Second
)

// 设置键空间（与日志数据的 c/ 前缀隔离）
var (
	settingsPrefix = []byte("s/")
	primaryKeyName = []byte("primary-key")
)

// ════════════════════════════════════════════════════════════════════════════
//                              Store
// ════════════════════════════════════════════════════════════════════════════

// Store 多日志存储管理器
//
// 一个 Store 管理任意数量的追加日志：按名字从根密钥确定性派生
// 可写日志，按公钥打开只读日志。同一公钥的日志在 Store 内只有
// 一个底层实例，所有获取途径共享该实例并分别计数。
//
// Namespace 与 Session 返回的派生视图共享同一套底层组件
// （注册表、存储引擎、复制器），仅派生路径与根密钥不同。
// 关闭视图只释放视图自己登记的句柄，关闭根 Store 停止一切。
//
// 所有方法并发安全。
type Store struct {
	// shared 全部视图共享的底层组件
	shared *shared

	// 视图状态（创建后不再修改）
	secret types.RootSecret
	path   []string
	root   bool

	mu     sync.Mutex
	cores  map[*Core]struct{}
	closed bool
}

// shared 根 Store 与其派生视图共享的组件集合
type shared struct {
	cfg     *config.Config
	app     *fx.App
	eng     engine.InternalEngine
	km      *keymanager.Manager
	bus     interfaces.EventBus
	reg     *registry.Registry
	rep     *replicator.Replicator
	counter *metrics.Counter
	catalog *appendlog.Catalog

	// closed 根 Store 关闭后置位，所有视图失效
	closed atomic.Bool
}

// New 创建并启动 Store
//
// 依次应用选项（非法参数同步报错）、合并校验配置、组装并启动
// 全部内部模块。根密钥按 WithPrimaryKey 选项、配置项、存储中
// 已持久化记录的顺序取第一个可用值，都没有则生成新密钥；选定
// 的密钥写回存储，同一目录再次打开派生结果不变。
//
// 参数:
//   - opts: 配置选项
//
// 返回值:
//   - *Store: 已就绪的存储管理器
//   - error: 选项、配置或启动错误
func New(opts ...Option) (*Store, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.toConfig()
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	store := &Store{
		root:  true,
		cores: make(map[*Core]struct{}),
	}
	app := buildFxApp(o, cfg, store)

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logger.Error("Store 启动失败", "error", err)
		return nil, fmt.Errorf("start store: %w", err)
	}
	store.shared.app = app

	logger.Info("Store 已启动",
		"in_memory", cfg.Storage.InMemory,
		"passive", cfg.Replication.Passive)
	return store, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              Fx 应用组装
// ════════════════════════════════════════════════════════════════════════════

// buildFxApp 组装 Fx 应用
func buildFxApp(o *options, cfg *config.Config, store *Store) *fx.App {
	modules := []fx.Option{
		// 配置注入
		fx.Supply(cfg),

		// 基础组件
		storage.Module(),    // 存储引擎（BadgerDB / 内存）
		keymanager.Module(), // 密钥派生
		eventbus.Module(),   // 事件总线

		// 根密钥
		fx.Provide(providePrimaryKey(o)),

		// 默认日志实现与本地目录
		appendlog.Module(),
		fx.Provide(bindCollaborators(o)),

		// 注册表、统计与复制
		registry.Module(),
		metrics.Module(),
		replicator.Module(),

		// Store 组件注入
		fx.Invoke(injectStoreComponents(store)),
	}

	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.NopLogger,
	)

	return fx.New(modules...)
}

// providePrimaryKey 创建根密钥提供函数
//
// 优先级: WithPrimaryKey 选项 > 配置项 Identity.PrimaryKey >
// 存储中已持久化的记录 > 新生成。前两种来源会覆盖持久化记录。
func providePrimaryKey(o *options) interface{} {
	return func(eng engine.InternalEngine, cfg *config.Config) (types.RootSecret, error) {
		settings := kv.New(eng, settingsPrefix)

		if !o.primaryKey.IsEmpty() {
			if err := settings.Put(primaryKeyName, o.primaryKey.Bytes()); err != nil {
				return types.RootSecret{}, fmt.Errorf("persist primary key: %w", err)
			}
			return o.primaryKey, nil
		}

		if cfg.Identity.PrimaryKey != "" {
			secret, err := types.RootSecretFromHex(cfg.Identity.PrimaryKey)
			if err != nil {
				return types.RootSecret{}, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
			}
			if err := settings.Put(primaryKeyName, secret.Bytes()); err != nil {
				return types.RootSecret{}, fmt.Errorf("persist primary key: %w", err)
			}
			return secret, nil
		}

		stored, err := settings.Get(primaryKeyName)
		if err == nil {
			secret, err := types.RootSecretFromBytes(stored)
			if err != nil {
				return types.RootSecret{}, fmt.Errorf("stored primary key corrupted: %w", err)
			}
			return secret, nil
		}
		if !engine.IsNotFound(err) {
			return types.RootSecret{}, fmt.Errorf("load primary key: %w", err)
		}

		secret := types.GenerateRootSecret()
		if err := settings.Put(primaryKeyName, secret.Bytes()); err != nil {
			return types.RootSecret{}, fmt.Errorf("persist primary key: %w", err)
		}
		logger.Info("已生成新的根密钥")
		return secret, nil
	}
}

// bindCollaborators 创建协作接口绑定函数
//
// 用户通过 WithOpener / WithResolver 注入的实现优先，
// 缺省绑定内置追加日志的打开器与目录。
func bindCollaborators(o *options) interface{} {
	return func(opener *appendlog.Opener, catalog *appendlog.Catalog) (interfaces.Opener, interfaces.Resolver) {
		var op interfaces.Opener = opener
		if o.opener != nil {
			op = o.opener
		}
		var res interfaces.Resolver = catalog
		if o.resolver != nil {
			res = o.resolver
		}
		return op, res
	}
}

// storeInjectParams Store 组件注入参数
type storeInjectParams struct {
	fx.In

	Cfg        *config.Config
	Engine     engine.InternalEngine
	Secret     types.RootSecret
	KeyManager *keymanager.Manager
	Bus        interfaces.EventBus
	Registry   *registry.Registry
	Replicator *replicator.Replicator
	Counter    *metrics.Counter
	Catalog    *appendlog.Catalog
}

// injectStoreComponents 创建 Store 组件注入函数
func injectStoreComponents(store *Store) interface{} {
	return func(p storeInjectParams) {
		store.shared = &shared{
			cfg:     p.Cfg,
			eng:     p.Engine,
			km:      p.KeyManager,
			bus:     p.Bus,
			reg:     p.Registry,
			rep:     p.Replicator,
			counter: p.Counter,
			catalog: p.Catalog,
		}
		store.secret = p.Secret
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              日志获取
// ════════════════════════════════════════════════════════════════════════════

// GetRequest 日志获取请求
//
// Name 与 Key 必须且只能设置其一:
//   - Name: 在当前命名空间下按名字确定性派生密钥对，得到可写日志
//   - Key: 按公钥打开，没有私钥，得到只读日志
type GetRequest struct {
	// Name 日志名字
	Name string
	// Key 日志公钥
	Key types.CoreKey
}

// Get 获取日志句柄
//
// 同一公钥的日志在整个 Store 内只有一个底层实例，重复获取返回
// 指向同一实例的新句柄，句柄各自独立关闭。按名字派生对相同的
// (根密钥, 命名空间, 名字) 总是得到相同的密钥对。
//
// 参数:
//   - ctx: 控制打开过程的上下文
//   - req: 获取请求，Name 与 Key 二选一
//
// 返回值:
//   - *Core: 日志句柄
//   - error: 请求非法、派生失败或打开失败
func (s *Store) Get(ctx context.Context, req GetRequest) (*Core, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	hasName := req.Name != ""
	hasKey := !req.Key.IsEmpty()
	if hasName == hasKey {
		return nil, ErrInvalidGetRequest
	}

	var ref interfaces.CoreRef
	if hasName {
		kp, err := s.shared.km.Derive(s.secret, s.path, req.Name)
		if err != nil {
			return nil, fmt.Errorf("derive key: %w", err)
		}
		ref = interfaces.CoreRef{
			Key:       keymanager.PublicKeyOf(kp),
			KeyPair:   kp,
			Namespace: s.path,
			Name:      req.Name,
		}
	} else {
		ref = interfaces.CoreRef{Key: req.Key}
	}

	dk := s.shared.km.DiscoveryKeyOf(ref.Key)
	h, err := s.shared.reg.Acquire(ctx, dk, ref)
	if err != nil {
		return nil, err
	}
	return s.adopt(h)
}

// GetByName 按名字获取可写日志
func (s *Store) GetByName(ctx context.Context, name string) (*Core, error) {
	return s.Get(ctx, GetRequest{Name: name})
}

// GetByKey 按公钥获取只读日志
func (s *Store) GetByKey(ctx context.Context, key types.CoreKey) (*Core, error) {
	return s.Get(ctx, GetRequest{Key: key})
}

// adopt 把注册表句柄包装为用户句柄并登记到本视图
func (s *Store) adopt(h *registry.Handle) (*Core, error) {
	c := &Core{owner: s, handle: h}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.Release()
		return nil, ErrStoreClosed
	}
	s.cores[c] = struct{}{}
	s.mu.Unlock()
	return c, nil
}

// forget 从视图中移除句柄登记
func (s *Store) forget(c *Core) {
	s.mu.Lock()
	delete(s.cores, c)
	s.mu.Unlock()
}

// usable 检查视图与底层组件是否仍然可用
func (s *Store) usable() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.shared.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              复制
// ════════════════════════════════════════════════════════════════════════════

// ReplicateOption 单条复制流的配置选项
type ReplicateOption = replicator.StreamOption

// WithStreamPassive 设置本条流的被动模式，覆盖 Store 级默认值
func WithStreamPassive(passive bool) ReplicateOption {
	return replicator.WithPassive(passive)
}

// WithHandshakeTimeout 设置本条流的握手超时，0 表示不限制
func WithHandshakeTimeout(d time.Duration) ReplicateOption {
	return replicator.WithHandshakeTimeout(d)
}

// Replicate 在给定的双向传输上启动复制
//
// 传输可以是任意 io.ReadWriteCloser（TCP 连接、管道等），两端
// 必须恰好一端 isInitiator=true。握手成功后自动为两端共同持有
// 的日志建立复制通道；流的生命周期独立于本方法返回，取消 ctx
// 或关闭返回的流句柄都会终止复制并关闭底层传输。
//
// 参数:
//   - ctx: 流的生命周期上下文
//   - rwc: 底层双向传输
//   - isInitiator: 是否为发起端
//   - opts: 流级覆盖选项
//
// 返回值:
//   - interfaces.ReplicationStream: 复制流句柄
//   - error: Store 已关闭或参数非法
func (s *Store) Replicate(ctx context.Context, rwc io.ReadWriteCloser, isInitiator bool, opts ...ReplicateOption) (interfaces.ReplicationStream, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	st, err := s.shared.rep.Replicate(ctx, rwc, isInitiator, opts...)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询
// ════════════════════════════════════════════════════════════════════════════

// Cores 列出本地已持久化的全部日志信息
//
// 结果来自内置目录，与当前打开状态无关。
func (s *Store) Cores() ([]types.CoreInfo, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	return s.shared.catalog.List()
}

// Stats 返回累计复制统计
func (s *Store) Stats() types.ReplicationStats {
	if s.shared.closed.Load() {
		return types.ReplicationStats{}
	}
	return s.shared.counter.Totals()
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

// Close 关闭 Store
//
// 视图关闭只释放本视图登记的句柄；根 Store 关闭还会停止全部
// 内部模块（复制器、注册表、存储引擎），之后所有派生视图均
// 返回 ErrStoreClosed。幂等，重复调用返回 nil。
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cores := make([]*Core, 0, len(s.cores))
	for c := range s.cores {
		cores = append(cores, c)
	}
	s.cores = nil
	s.mu.Unlock()

	var errs error
	for _, c := range cores {
		errs = multierr.Append(errs, c.Close())
	}

	if !s.root {
		return errs
	}

	if s.shared.closed.CompareAndSwap(false, true) {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := s.shared.app.Stop(stopCtx); err != nil {
			logger.Error("Store 停止失败", "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	logger.Info("Store 已关闭")
	return errs
}
