package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/BaSui01/batchflow/types"
)

// ErrRetriesExhausted 条目用尽了尝试预算
var ErrRetriesExhausted = errors.New("retries exhausted")

// Status 条目最终状态
type Status string

const (
	StatusGenerated Status = "generated"
	StatusCached    Status = "cached"
	StatusFailed    Status = "failed"
)

// Result 单个条目的结果：成功（文本 + 新鲜度）或失败（错误），二者互斥。
type Result struct {
	ItemID string

	// 成功时
	ResponseText string
	FromCache    bool
	Response     *ResponseData

	// 失败时
	Err       error
	Exhausted bool

	// 实际发起的 Provider 调用次数（命中缓存时为 0）
	Attempts int
}

// OK 是否成功
func (r Result) OK() bool { return r.Err == nil }

// Status 返回最终状态
func (r Result) Status() Status {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.FromCache:
		return StatusCached
	default:
		return StatusGenerated
	}
}

// MarshalJSON 成功：{"response_text","from_cache"}；失败：{"error"}
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Err.Error()})
	}
	return json.Marshal(struct {
		ResponseText string `json:"response_text"`
		FromCache    bool   `json:"from_cache"`
	}{ResponseText: r.ResponseText, FromCache: r.FromCache})
}

// Results 按输入顺序保存的结果映射，每个条目恰好一条
type Results struct {
	order []string
	byID  map[string]Result
}

func newResults(items []Item, results []Result) *Results {
	rs := &Results{
		order: make([]string, len(items)),
		byID:  make(map[string]Result, len(items)),
	}
	for i, it := range items {
		rs.order[i] = it.ID
		rs.byID[it.ID] = results[i]
	}
	return rs
}

// Len 条目数
func (rs *Results) Len() int { return len(rs.order) }

// Get 按 id 取结果
func (rs *Results) Get(id string) (Result, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

// IDs 输入顺序的 id 列表
func (rs *Results) IDs() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// All 按输入顺序迭代
func (rs *Results) All() iter.Seq2[string, Result] {
	return func(yield func(string, Result) bool) {
		for _, id := range rs.order {
			if !yield(id, rs.byID[id]) {
				return
			}
		}
	}
}

// Failed 失败的结果（输入顺序）
func (rs *Results) Failed() []Result {
	var out []Result
	for _, r := range rs.All() {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// MarshalJSON 输出保持输入顺序的 JSON 对象
func (rs *Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range rs.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(rs.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Summary 汇总
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Generated int `json:"generated"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
}

// Summary 统计成功/缓存/失败数量
func (rs *Results) Summary() Summary {
	s := Summary{Total: rs.Len()}
	for _, r := range rs.byID {
		switch r.Status() {
		case StatusGenerated:
			s.Generated++
			s.Succeeded++
		case StatusCached:
			s.Cached++
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Usage 本次运行新产生的 token 消耗，缓存命中不计入
func (rs *Results) Usage() types.TokenUsage {
	var u types.TokenUsage
	for _, r := range rs.All() {
		if r.Status() == StatusGenerated && r.Response != nil {
			u.Add(r.Response.Usage)
		}
	}
	return u
}

func (s Summary) String() string {
	return fmt.Sprintf("%d items: %d succeeded (%d cached), %d failed", s.Total, s.Succeeded, s.Cached, s.Failed)
}

// IsValidationError 输入或配置校验失败（批次在任何 Provider 调用前被拒绝）
func IsValidationError(err error) bool {
	return types.IsValidationError(err)
}
