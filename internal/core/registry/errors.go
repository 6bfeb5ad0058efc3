package registry

import "errors"

var (
	// ErrRegistryClosed 注册表已关闭
	ErrRegistryClosed = errors.New("registry: registry is closed")

	// ErrNilOpener 缺少日志打开器
	ErrNilOpener = errors.New("registry: opener is required")

	// ErrNilBus 缺少事件总线
	ErrNilBus = errors.New("registry: event bus is required")
)
