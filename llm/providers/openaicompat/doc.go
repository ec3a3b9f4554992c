// Package openaicompat 实现 OpenAI Chat Completions 协议，供 openai、
// openrouter 以及任意自建的兼容端点（vLLM、Ollama 等）复用。
//
// 各厂商只需要声明差异：名称、BaseURL、路径、附加请求头和请求体钩子。
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "local",
//	    BaseURL:      "http://localhost:8000",
//	    DefaultModel: "qwen2.5-7b-instruct",
//	}, logger)
package openaicompat
