package corestore

import (
	"fmt"

	"github.com/dep2p/go-corestore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              命名空间与会话
// ════════════════════════════════════════════════════════════════════════════

// Namespace 返回在当前路径上追加一段的派生视图
//
// 视图共享根 Store 的全部底层组件，仅派生路径不同：同名日志
// 在不同命名空间下派生出不同的密钥对。段内容不做限制，按字节
// 参与派生。视图登记的句柄需要单独 Close。
func (s *Store) Namespace(segment string) *Store {
	path := make([]string, 0, len(s.path)+1)
	path = append(path, s.path...)
	path = append(path, segment)
	return s.newView(s.secret, path)
}

// SessionOption 会话配置选项
type SessionOption func(*sessionOptions) error

// sessionOptions 会话选项集合
type sessionOptions struct {
	secret  *types.RootSecret
	path    []string
	pathSet bool
}

// WithSessionPrimaryKey 会话改用另一把根密钥
//
// 用于在同一 Store 上代管他人的派生空间：会话按给定密钥派生，
// 数据仍落在本 Store 的存储引擎里。
//
// 参数:
//   - secret: 32 字节根密钥
func WithSessionPrimaryKey(secret []byte) SessionOption {
	return func(o *sessionOptions) error {
		rs, err := types.RootSecretFromBytes(secret)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSecret, err)
		}
		o.secret = &rs
		return nil
	}
}

// WithSessionNamespace 会话使用全新的命名空间路径
//
// 路径从根开始替换而不是在当前路径上追加；不带段调用得到根
// 命名空间。显式路径中的段不能为空。
func WithSessionNamespace(path ...string) SessionOption {
	return func(o *sessionOptions) error {
		for _, segment := range path {
			if segment == "" {
				return ErrInvalidNamespace
			}
		}
		o.path = path
		o.pathSet = true
		return nil
	}
}

// Session 创建派生会话
//
// 会话与源视图共享底层组件，可以通过选项改用另一把根密钥或
// 替换命名空间路径；不带选项时与源视图等价。选项非法时同步
// 返回错误。会话需要单独 Close。
//
// 参数:
//   - opts: 会话选项
//
// 返回值:
//   - *Store: 派生会话视图
//   - error: 源视图已关闭或选项非法
func (s *Store) Session(opts ...SessionOption) (*Store, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	so := &sessionOptions{}
	for _, opt := range opts {
		if err := opt(so); err != nil {
			return nil, err
		}
	}

	secret := s.secret
	if so.secret != nil {
		secret = *so.secret
	}
	path := s.path
	if so.pathSet {
		path = so.path
	}
	return s.newView(secret, path), nil
}

// newView 创建共享底层组件的派生视图
func (s *Store) newView(secret types.RootSecret, path []string) *Store {
	return &Store{
		shared: s.shared,
		secret: secret,
		path:   clonePath(path),
		cores:  make(map[*Core]struct{}),
	}
}

// Path 返回当前视图的命名空间路径
func (s *Store) Path() []string {
	return clonePath(s.path)
}

// clonePath 复制路径切片
func clonePath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}
