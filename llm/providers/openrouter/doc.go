// Package openrouter 提供 OpenRouter 网关的 Provider 实现。
//
// OpenRouter 使用 OpenAI 兼容协议，路径位于 /api/v1 下，模型名带厂商前缀
// （如 "anthropic/claude-3.5-sonnet"）。可选的 HTTP-Referer / X-Title 用于归因。
package openrouter
