// Copyright 2026 BatchFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 openai 提供 OpenAI 模型的 Provider 适配实现，基于 openaicompat
的 Chat Completions 实现，额外处理 Organization header 与
max_completion_tokens 字段。

# 核心结构体

  - OpenAIProvider：嵌入 openaicompat.Provider
*/
package openai
