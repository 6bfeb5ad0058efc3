// Package interfaces - Storage 存储引擎接口
//
// 本文件定义存储引擎的公共接口。
// 允许用户提供自定义存储后端（可选）。
//
// # 设计原则
//
// 1. 最小化接口：仅暴露必要的基础操作
// 2. 可替换性：用户可以实现自定义存储后端
// 3. 无状态方法：所有方法都是幂等的
package interfaces

// Engine 存储引擎基础接口
//
// 提供键值存储的基本操作。Corestore 内部使用 BadgerDB 实现，
// 但用户可以提供自定义实现来替换默认存储后端。
//
// 线程安全：实现必须保证所有方法的线程安全性。
//
// 示例:
//
//	engine, err := badger.New(badger.DefaultConfig("/data/storage"))
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	if err := engine.Put([]byte("key"), []byte("value")); err != nil {
//	    return err
//	}
//	value, err := engine.Get([]byte("key"))
type Engine interface {
	// Get 获取指定键的值
	//
	// 参数:
	//   - key: 键（不能为空）
	//
	// 返回:
	//   - []byte: 值的副本（调用者可以安全修改）
	//   - error: 键不存在或存储故障
	Get(key []byte) ([]byte, error)

	// Put 设置键值对
	//
	// 如果键已存在，则覆盖旧值。
	Put(key, value []byte) error

	// Delete 删除指定键
	//
	// 键不存在时不报错。
	Delete(key []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// Close 关闭存储引擎
	//
	// 多次调用 Close 是安全的。
	Close() error
}
