package llm

// Text 返回第一个 choice 的内容。nil 响应或没有 choice 视为 ErrMalformedResponse。
func (r *ChatResponse) Text() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		e := &Error{Code: ErrMalformedResponse, Message: "response has no choices"}
		if r != nil {
			e.Provider = r.Provider
		}
		return "", e
	}
	return r.Choices[0].Message.Content, nil
}

// FinishReason 第一个 choice 的结束原因，没有时为空串
func (r *ChatResponse) FinishReason() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].FinishReason
}
