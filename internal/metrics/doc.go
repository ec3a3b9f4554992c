// Copyright (c) BatchFlow Authors
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的批处理指标采集能力，覆盖
批次、条目、LLM 调用、缓存与数据库连接五个维度。

# 概述

Collector 通过 promauto 注册全部指标，默认注册到全局 Registry，
也可通过 NewCollectorWithRegisterer 指定独立 Registry（测试常用）。
nil *Collector 上的所有 Record 方法均为空操作，调用方无需判空。

# 主要能力

  - 批次指标：运行次数（completed/invalid/cancelled）与耗时。
  - 条目指标：按最终状态（generated/cached/failed）计数与耗时，
    每次尝试的结果分类，校验拒绝次数，在途请求 Gauge。
  - LLM 指标：请求总数、请求耗时、Token 用量（prompt/completion），
    按 provider/model 分组。
  - 缓存指标：命中、未命中与 I/O 错误，按 cache_type 分组。
  - 数据库指标：SQL 缓存后端的活跃/空闲连接数。
*/
package metrics
