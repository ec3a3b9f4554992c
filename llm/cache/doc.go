// Copyright (c) BatchFlow Authors
// Licensed under the MIT License.

/*
包 cache 提供批处理响应缓存：缓存键（指纹）的推导，以及
文件、内存、Redis、SQL、MongoDB 等多种 Store 实现。

# 概述

每个成功（且通过校验）的条目响应都会写入缓存，下次以相同输入
运行时可直接复用，避免重复调用 Provider。缓存键由条目 ID、消息
内容、模型名称、temperature 与 max_tokens 共同决定，任一字段变化
都会得到不同的键，因此不会为变化后的请求返回过期结果。

# 核心接口

  - Store：Get / Put / Invalidate，Put 必须原子。
  - KeyStrategy：缓存键生成策略，内置 hash 与 item 两种。
  - Entry：缓存条目，包含响应文本、模型、结束原因与 Token 用量。

# 存储实现

  - FileStore：每键一个 JSON 文件，临时文件 + rename 原子写入。
  - MemoryStore：进程内 LRU，可选 TTL。
  - RedisStore：基于 internal/cache.Manager，键前缀 "batchflow:cache:"。
  - SQLStore：GORM upsert，支持 PostgreSQL / MySQL / SQLite。
  - MongoStore：ReplaceOne(upsert)，_id 即缓存键。
  - MultiLevel：L1 MemoryStore + 任意 L2，L2 命中回填 L1。

# 使用方式

	store, _ := cache.NewFileStore(".batchflow-cache", logger)
	key := cache.NewItemKeyStrategy().GenerateKey(cache.KeyInput{...})
	entry, err := store.Get(ctx, key)
	if cache.IsMiss(err) { ... }
*/
package cache
