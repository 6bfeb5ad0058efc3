package noise

import "errors"

var (
	// ErrIdentityNotWritable 复制身份没有私钥，无法签名握手 payload
	ErrIdentityNotWritable = errors.New("noise: replication identity has no private key")

	// ErrInvalidIdentityBinding 对端静态密钥未正确绑定到其声称的身份
	ErrInvalidIdentityBinding = errors.New("noise: remote static key not bound to identity key")
)
