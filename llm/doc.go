// 版权所有 2024 BatchFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供批处理引擎使用的 LLM 接入层：Provider 抽象、统一请求/响应
模型以及错误分类。

# 概述

批处理引擎只把 Provider 视为一次"发送内容、拿回文本或错误"的能力，
不在这里做跨厂商的统一 schema。不同厂商的 HTTP 细节位于 llm/providers 子包。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name

# 错误分类

Provider 返回的错误统一为 [*Error]，带有 [ErrorCode]、HTTP 状态与 Retryable
标记。[Classify] 把任意错误归入 限流 / 超时 / 请求非法 / 其他 四类，
[IsTransient] 决定 worker 在下一次尝试前是否需要退避。

# 子包

  - llm/providers：OpenAI / OpenRouter / Gemini 等 HTTP 实现
  - llm/factory：按名称创建 Provider
  - llm/retry：指数退避策略
  - llm/cache：缓存 key 指纹与多种存储后端
  - llm/tokenizer：Token 计数
  - llm/batch：批处理引擎
*/
package llm
