// Copyright (c) BatchFlow Authors
// Licensed under the MIT License.

/*
Package server 提供批处理运行期间的 Prometheus 指标监听。

Manager 包装 http.Server，非阻塞启动、可重复关闭；Handler 构建
/metrics（promhttp）与 /healthz 路由。监听地址为 ":0" 时，
Addr 返回实际绑定的端口。
*/
package server
