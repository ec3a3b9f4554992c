// Copyright 2026 BatchFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 providers 是各厂商实现共享的基础层：基础配置与错误映射。
具体协议位于子包：openaicompat（OpenAI Chat Completions 协议）、
openai、openrouter、gemini。

# 错误映射

  - MapHTTPError      状态码 → llm.Error；5xx、408、429 可重试，400/422 再按消息区分配额与上下文超长
  - MapTransportError 连接失败与超时，一律可重试
  - MapDecodeError    2xx 但响应体无法解析

任何实现都不在 Completion 内部重试，重试由批处理 worker 负责。
*/
package providers
