package gemini

import (
	"strings"
	"time"

	"github.com/BaSui01/batchflow/llm"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user | model
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Index        int           `json:"index"`
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	ResponseID    string            `json:"responseId,omitempty"`
	ModelVersion  string            `json:"modelVersion,omitempty"`
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
}

// Gemini 的结束原因统一成 OpenAI 的取值，未知值原样转小写
var finishReasons = map[string]string{
	"STOP":       "stop",
	"MAX_TOKENS": "length",
	"SAFETY":     "content_filter",
	"RECITATION": "content_filter",
}

func normalizeFinish(reason string) string {
	if r, ok := finishReasons[reason]; ok {
		return r
	}
	return strings.ToLower(reason)
}

// convertToGeminiContents system 消息合并为 systemInstruction，assistant 改名为 model。
func convertToGeminiContents(msgs []llm.Message) (*geminiContent, []geminiContent) {
	var system *geminiContent
	contents := make([]geminiContent, 0, len(msgs))
	for _, m := range msgs {
		part := geminiPart{Text: m.Content}
		switch m.Role {
		case llm.RoleSystem:
			if system == nil {
				system = &geminiContent{}
			}
			system.Parts = append(system.Parts, part)
		case llm.RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{part}})
		default:
			contents = append(contents, geminiContent{Role: string(m.Role), Parts: []geminiPart{part}})
		}
	}
	return system, contents
}

func (gr geminiResponse) toChat(provider, model string) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:        gr.ResponseID,
		Provider:  provider,
		Model:     model,
		Choices:   make([]llm.ChatChoice, len(gr.Candidates)),
		CreatedAt: time.Now(),
	}
	if gr.ModelVersion != "" {
		resp.Model = gr.ModelVersion
	}
	for i, c := range gr.Candidates {
		var text strings.Builder
		for _, p := range c.Content.Parts {
			text.WriteString(p.Text)
		}
		resp.Choices[i] = llm.ChatChoice{
			Index:        c.Index,
			FinishReason: normalizeFinish(c.FinishReason),
			Message:      llm.Message{Role: llm.RoleAssistant, Content: text.String()},
		}
	}
	if u := gr.UsageMetadata; u != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return resp
}
