// Package tokenizer 估算请求的 prompt token 数。
// Provider 未返回用量时，批处理用它补齐指标中的 prompt token。
package tokenizer
