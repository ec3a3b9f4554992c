// Package telemetry 初始化 OpenTelemetry 的 OTLP/gRPC 导出，为批处理引擎的
// batch.run / batch.item span 提供 tracer。未启用时不连接任何外部服务。
package telemetry
