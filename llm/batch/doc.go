// Copyright (c) BatchFlow Authors
// Licensed under the MIT License.

/*
包 batch 是 BatchFlow 的批处理引擎：把一批 prompt 或对话送给 LLM Provider，
在受限并发下逐条生成、校验并缓存响应。

# 概述

每个条目独立经过以下状态机：

	START → CACHE_CHECK → (CACHE_HIT_RETURN | INVOKE) → VERIFY → (ACCEPT_AND_CACHE | RETRY | EXHAUSTED)

状态机的约束：

  - 缓存键由条目 ID、完整消息序列、模型、temperature 与 max_tokens 推导。
  - Force 跳过缓存读取，但成功结果仍会写回缓存。
  - 配置了 Verifier 时，缓存命中也要重新校验；被拒绝则重新生成，且不占用尝试次数。
  - MaxRetries 是总尝试次数。只有限流和超时这类瞬时错误才会指数退避。
  - 准入闸门只在 Provider 调用期间持有，退避中的条目不占用并发槽位。
  - 单个条目失败（包括 Verifier 或 Provider panic）不影响其他条目。

# 输入

Request 的 Prompts、Conversations、InputDir 三者必须且只能提供一个。
Prompt 支持三种形态：裸文本（ID 由内容哈希推导）、[id, text] 对、{id, text} 记录。
对话同理，消息列表可以不带 system 消息，此时自动补上 SystemInstruction。

# 使用方式

	store, _ := cache.NewFileStore(".batchflow-cache", logger)
	p, _ := batch.NewProcessor(provider, store, batch.WithLogger(logger))

	cfg := batch.DefaultModelConfig("gpt-4o-mini")
	cfg.Verifier = batch.MinLength(20)

	results, err := p.Run(ctx, cfg, batch.Request{
	    Prompts: batch.Prompts("What is Go?", "What is Rust?"),
	})
	for id, r := range results.All() {
	    fmt.Println(id, r.ResponseText, r.Err)
	}
*/
package batch
