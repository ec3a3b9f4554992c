package batch

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BaSui01/batchflow/types"
)

// =============================================================================
// 输入形态
// =============================================================================

// InputShape 输入元素的形态
type InputShape int

const (
	// ShapeBare 裸内容，id 由内容派生
	ShapeBare InputShape = iota
	// ShapePair (id, content) 二元组
	ShapePair
	// ShapeRecord {id, text|messages} 记录
	ShapeRecord
)

func (s InputShape) String() string {
	switch s {
	case ShapePair:
		return "pair"
	case ShapeRecord:
		return "record"
	default:
		return "bare"
	}
}

// PromptInput 单轮提示的三种形态之一。
// JSON 解码支持 "text"、["id","text"] 与 {"id":..,"text":..}。
type PromptInput struct {
	Shape InputShape
	ID    string
	Text  string

	missing string // 记录缺失的必填字段，由 Normalize 报告
}

// Prompt 裸文本提示
func Prompt(text string) PromptInput {
	return PromptInput{Shape: ShapeBare, Text: text}
}

// PromptPair 显式 id 的提示
func PromptPair(id, text string) PromptInput {
	return PromptInput{Shape: ShapePair, ID: id, Text: text}
}

// PromptRecord 记录形态的提示
func PromptRecord(id, text string) PromptInput {
	return PromptInput{Shape: ShapeRecord, ID: id, Text: text}
}

// Prompts 批量构造裸文本提示
func Prompts(texts ...string) []PromptInput {
	out := make([]PromptInput, len(texts))
	for i, t := range texts {
		out[i] = Prompt(t)
	}
	return out
}

// UnmarshalJSON 解析三种 JSON 形态
func (p *PromptInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return types.NewValidationError("prompt", "empty element")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Prompt(s)
		return nil
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return types.NewValidationError("prompt", "pair must have exactly 2 elements, got %d", len(pair))
		}
		var id, text string
		if err := json.Unmarshal(pair[0], &id); err != nil {
			return types.NewValidationError("prompt", "pair id must be a string")
		}
		if err := json.Unmarshal(pair[1], &text); err != nil {
			return types.NewValidationError("prompt", "pair text must be a string")
		}
		*p = PromptPair(id, text)
		return nil
	case '{':
		var rec struct {
			ID   *string `json:"id"`
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return types.NewValidationError("prompt", "invalid record: %v", err)
		}
		*p = PromptInput{Shape: ShapeRecord}
		switch {
		case rec.ID == nil:
			p.missing = "id"
		case rec.Text == nil:
			p.missing = "text"
		}
		if rec.ID != nil {
			p.ID = *rec.ID
		}
		if rec.Text != nil {
			p.Text = *rec.Text
		}
		return nil
	default:
		return types.NewValidationError("prompt", "must be a string, [id, text] pair or {id, text} record")
	}
}

// ConversationInput 多轮对话的三种形态之一。
// JSON 解码支持 [{role,content},...]、["id",[...]] 与 {"id":..,"messages":[...]}。
type ConversationInput struct {
	Shape    InputShape
	ID       string
	Messages []types.Message

	missing string
}

// Conversation 裸消息列表
func Conversation(msgs ...types.Message) ConversationInput {
	return ConversationInput{Shape: ShapeBare, Messages: msgs}
}

// ConversationPair 显式 id 的对话
func ConversationPair(id string, msgs ...types.Message) ConversationInput {
	return ConversationInput{Shape: ShapePair, ID: id, Messages: msgs}
}

// ConversationRecord 记录形态的对话
func ConversationRecord(id string, msgs ...types.Message) ConversationInput {
	return ConversationInput{Shape: ShapeRecord, ID: id, Messages: msgs}
}

// UnmarshalJSON 解析三种 JSON 形态
func (c *ConversationInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return types.NewValidationError("conversation", "empty element")
	}
	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return err
		}
		// ["id", [...]] 与 [{...}, ...] 以首元素类型区分
		if len(elems) > 0 && len(bytes.TrimSpace(elems[0])) > 0 && bytes.TrimSpace(elems[0])[0] == '"' {
			if len(elems) != 2 {
				return types.NewValidationError("conversation", "pair must have exactly 2 elements, got %d", len(elems))
			}
			var id string
			if err := json.Unmarshal(elems[0], &id); err != nil {
				return err
			}
			msgs, err := decodeMessages(elems[1])
			if err != nil {
				return err
			}
			*c = ConversationPair(id, msgs...)
			return nil
		}
		msgs, err := decodeMessages(data)
		if err != nil {
			return err
		}
		*c = Conversation(msgs...)
		return nil
	case '{':
		var rec struct {
			ID       *string         `json:"id"`
			Messages json.RawMessage `json:"messages"`
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return types.NewValidationError("conversation", "invalid record: %v", err)
		}
		*c = ConversationInput{Shape: ShapeRecord}
		if rec.ID == nil {
			c.missing = "id"
		} else {
			c.ID = *rec.ID
		}
		if len(rec.Messages) == 0 || string(rec.Messages) == "null" {
			if c.missing == "" {
				c.missing = "messages"
			}
			return nil
		}
		msgs, err := decodeMessages(rec.Messages)
		if err != nil {
			return err
		}
		c.Messages = msgs
		return nil
	default:
		return types.NewValidationError("conversation", "must be a message list, [id, messages] pair or {id, messages} record")
	}
}

func decodeMessages(data json.RawMessage) ([]types.Message, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, types.NewValidationError("conversation", "messages must be a list of {role, content} objects")
	}
	msgs := make([]types.Message, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &msgs[i]); err != nil {
			return nil, types.NewValidationError(fmt.Sprintf("messages[%d]", i), "%v", err)
		}
	}
	return msgs, nil
}

// =============================================================================
// 规范化
// =============================================================================

// Content 条目内容：单轮文本或多轮对话，二者恰有其一
type Content struct {
	Text     string
	Messages []types.Message
}

// IsConversation 是否为多轮对话
func (c Content) IsConversation() bool { return c.Messages != nil }

// Item 规范化后的工作单元
type Item struct {
	ID      string
	Content Content
}

// Messages 构造发送给 Provider 的消息。
// 单轮提示总是带系统指令；对话仅在没有 system 轮次时前置系统指令。
func (it Item) Messages(systemInstruction string) []types.Message {
	if !it.Content.IsConversation() {
		return []types.Message{
			types.NewSystemMessage(systemInstruction),
			types.NewUserMessage(it.Content.Text),
		}
	}
	if types.HasRole(it.Content.Messages, types.RoleSystem) {
		out := make([]types.Message, len(it.Content.Messages))
		copy(out, it.Content.Messages)
		return out
	}
	out := make([]types.Message, 0, len(it.Content.Messages)+1)
	out = append(out, types.NewSystemMessage(systemInstruction))
	return append(out, it.Content.Messages...)
}

// Request 一次批处理调用的输入。Prompts、Conversations、InputDir 三者必须恰好提供一个；
// 空切片（非 nil）视为已提供且没有条目。
type Request struct {
	Prompts       []PromptInput
	Conversations []ConversationInput
	InputDir      string

	// Force 跳过缓存读取，成功后仍会覆盖缓存
	Force bool

	// Desc 仅用于进度展示
	Desc string

	// Progress 本批次的进度上报，为空时使用 Processor 的设置
	Progress Progress
}

// Normalize 把请求解析为有序、id 唯一的条目序列
func Normalize(req Request) ([]Item, error) {
	supplied := 0
	if req.Prompts != nil {
		supplied++
	}
	if req.Conversations != nil {
		supplied++
	}
	if req.InputDir != "" {
		supplied++
	}
	switch {
	case supplied == 0:
		return nil, types.NewValidationError("input", "one of prompts, conversations or input_dir is required")
	case supplied > 1:
		return nil, types.NewValidationError("input", "prompts, conversations and input_dir are mutually exclusive")
	}

	var (
		items []Item
		err   error
	)
	switch {
	case req.Prompts != nil:
		items, err = normalizePrompts(req.Prompts)
	case req.Conversations != nil:
		items, err = normalizeConversations(req.Conversations)
	default:
		items, err = LoadDir(req.InputDir)
	}
	if err != nil {
		return nil, err
	}
	if err := checkUnique(items); err != nil {
		return nil, err
	}
	return items, nil
}

func normalizePrompts(in []PromptInput) ([]Item, error) {
	items := make([]Item, 0, len(in))
	for i, p := range in {
		field := fmt.Sprintf("prompts[%d]", i)
		if p.missing != "" {
			return nil, types.NewValidationError(field, "record is missing required field %q", p.missing)
		}
		id := p.ID
		if p.Shape == ShapeBare {
			id = ContentID(p.Text)
		} else if id == "" {
			return nil, types.NewValidationError(field, "%s id must not be empty", p.Shape)
		}
		items = append(items, Item{ID: id, Content: Content{Text: p.Text}})
	}
	return items, nil
}

func normalizeConversations(in []ConversationInput) ([]Item, error) {
	items := make([]Item, 0, len(in))
	for i, c := range in {
		field := fmt.Sprintf("conversations[%d]", i)
		if c.missing != "" {
			return nil, types.NewValidationError(field, "record is missing required field %q", c.missing)
		}
		if len(c.Messages) == 0 {
			return nil, types.NewValidationError(field, "conversation must contain at least one message")
		}
		for j, m := range c.Messages {
			if !m.Role.Valid() {
				return nil, types.NewValidationError(fmt.Sprintf("%s.messages[%d].role", field, j), "invalid role %q", m.Role)
			}
		}
		id := c.ID
		if c.Shape == ShapeBare {
			id = ConversationID(c.Messages)
		} else if id == "" {
			return nil, types.NewValidationError(field, "%s id must not be empty", c.Shape)
		}
		msgs := make([]types.Message, len(c.Messages))
		copy(msgs, c.Messages)
		items = append(items, Item{ID: id, Content: Content{Messages: msgs}})
	}
	return items, nil
}

func checkUnique(items []Item) error {
	seen := make(map[string]int, len(items))
	for i, it := range items {
		if j, ok := seen[it.ID]; ok {
			return types.NewValidationError("item_id", "duplicate id %q at positions %d and %d", it.ID, j, i)
		}
		seen[it.ID] = i
	}
	return nil
}

// ContentID 由文本派生的稳定 id：SHA-256 前 16 字节的十六进制
func ContentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// ConversationID 由消息列表的规范 JSON 派生的稳定 id
func ConversationID(msgs []types.Message) string {
	data, err := json.Marshal(msgs)
	if err != nil {
		data = []byte(fmt.Sprint(msgs))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// LoadDir 读取目录下所有 *.txt（不递归，按文件名排序），id 为去掉扩展名的文件名
func LoadDir(dir string) ([]Item, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, types.NewValidationError("input_dir", "%v", err)
	}
	if !info.IsDir() {
		return nil, types.NewValidationError("input_dir", "%s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}
	sort.Strings(matches)

	items := make([]Item, 0, len(matches))
	for _, path := range matches {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if fi.IsDir() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		items = append(items, Item{ID: id, Content: Content{Text: string(data)}})
	}
	if len(items) == 0 {
		return nil, types.NewValidationError("input_dir", "no .txt files found in %s", dir)
	}
	return items, nil
}
