// Package config 提供 BatchFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → BATCHFLOW_* 环境变量 的顺序叠加，
// 并提供到 batch.ModelConfig、factory.ProviderConfig 等运行时配置的转换。
package config
