// Copyright 2026 BatchFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现。该包直接对接
Gemini REST API（generativelanguage.googleapis.com）的 generateContent，
不依赖 openaicompat 兼容层。

# 核心结构体

  - GeminiProvider：持有 http.Client 与 GeminiConfig；使用 x-goog-api-key 认证
  - geminiRequest / geminiResponse：Gemini 原生请求/响应结构

# 构造函数

  - NewGeminiProvider(cfg, logger)：创建实例，默认模型 gemini-2.0-flash
*/
package gemini
