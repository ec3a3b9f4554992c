// 版权所有 2024 BatchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package cache 管理共享结果缓存使用的 Redis 连接。llm/cache 的 RedisStore
通过 GetJSON / SetJSON / Delete 使用它。

NewManager 会立即 PING，Redis 不可达时直接返回错误，批处理在发起任何
Provider 调用前就能失败。HealthCheckInterval > 0 时后台定期 PING，
只在状态变化（可达 ↔ 不可达）时记日志。

错误语义：

  - ErrCacheMiss      键不存在或已过期
  - ErrManagerClosed  Close 之后的任何调用
*/
package cache
