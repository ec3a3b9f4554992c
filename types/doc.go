// Copyright (c) BatchFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 BatchFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、llm/batch、llm/cache
等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Message / Role：对话消息（system / user / assistant）
  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - ValidationError：批处理入参校验失败（在任何 Provider 调用之前返回）
  - TokenUsage：Token 消耗统计（可累加）

# 主要能力

  - Context 传播：WithRunID / WithItemID
  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable
*/
package types
