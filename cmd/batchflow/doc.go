// Copyright (c) BatchFlow Authors
// Licensed under the MIT License.

/*
Package main 提供 BatchFlow 命令行入口。

# 概述

cmd/batchflow 把一批提示词或对话交给 llm/batch 处理，结果以
{item_id: {response_text, from_cache} | {error}} 的有序 JSON 输出。
配置按 默认值 → YAML → BATCHFLOW_* 环境变量 叠加，启动时会加载
当前目录下的 .env（若存在）。

# 子命令

  - run               运行批次，stderr 显示单行进度，存在失败条目时退出码为 2
  - cache invalidate  重新计算缓存键并删除对应条目（--dry-run 只打印键）
  - health            调用 Provider.HealthCheck
  - version           版本信息，Version/BuildTime/GitCommit 通过 ldflags 注入

# 组件装配

缓存后端按 cache.backend 选择 file / memory / redis / sql / mongo，
远端后端在 cache.local_size > 0 时前置本地 LRU。metrics.enabled 时
在 metrics.addr 暴露 /metrics 与 /healthz。
*/
package main
