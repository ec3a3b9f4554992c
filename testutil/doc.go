// Copyright (c) BatchFlow Authors
// Licensed under the MIT License.

/*
Package testutil 提供 BatchFlow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertJSONEqual / AssertEventuallyTrue
  - 数据工具: MustJSON / MustParseJSON / WriteFiles

# 子包

  - testutil/mocks: MockProvider，支持按调用顺序或按条目编排回复脚本、
    延迟与错误注入，并记录每个条目的调用次数与最大并发
  - testutil/fixtures: ChatResponse、已分类的 Provider 错误与对话样例

# 使用示例

	provider := mocks.NewMockProvider().
	    WithItemScript("q1", mocks.Fail(fixtures.RateLimitError()), mocks.Text("ok"))
	results, err := batch.Run(ctx, cfg, provider, store, req)
*/
package testutil
