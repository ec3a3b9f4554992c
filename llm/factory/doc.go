// Package factory 按名称构建 llm.Provider。
//
// 配置文件只写 provider.name 与少量字段，factory 负责选择具体实现：
// openai、openrouter、gemini 为内置名称；其他名称配合 base_url 时走
// openaicompat。厂商特有字段通过 Extra 传入：
//
//	openai      organization
//	openrouter  site_url, app_name
//	其他        chat_path, models_path, headers, max_completion_tokens
//
// 未配置 api_key 时读取 <NAME>_API_KEY 环境变量，见 APIKeyEnv。
package factory
