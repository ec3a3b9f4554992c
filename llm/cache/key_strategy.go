package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/BaSui01/batchflow/types"
)

// KeyInput 参与缓存指纹计算的全部字段。
// 任何影响 Provider 输出的参数变化都必须反映到键上。
type KeyInput struct {
	ItemID      string
	Messages    []types.Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// KeyStrategy 缓存键生成策略接口
type KeyStrategy interface {
	// GenerateKey 生成缓存键，相同输入必须得到相同的键
	GenerateKey(in KeyInput) string

	// Name 返回策略名称（用于日志和调试）
	Name() string
}

// canonicalKeyPayload 固定字段顺序，保证序列化结果稳定。
type canonicalKeyPayload struct {
	ItemID      string          `json:"item_id"`
	Messages    []types.Message `json:"messages"`
	Model       string          `json:"model"`
	Temperature string          `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

// Fingerprint 返回输入的 sha256 十六进制摘要。
func Fingerprint(in KeyInput) string {
	msgs := in.Messages
	if msgs == nil {
		msgs = []types.Message{}
	}
	data, err := json.Marshal(canonicalKeyPayload{
		ItemID:   in.ItemID,
		Messages: msgs,
		Model:    in.Model,
		// 'g' + -1 精度：0.7 与 0.70 相同，0.7 与 0.71 不同
		Temperature: strconv.FormatFloat(in.Temperature, 'g', -1, 64),
		MaxTokens:   in.MaxTokens,
	})
	if err != nil {
		// Message 只含字符串字段，Marshal 不会失败
		data = []byte(in.ItemID + "\x00" + in.Model)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Hash 策略
// =============================================================================

// HashKeyStrategy 使用完整指纹作为缓存键
type HashKeyStrategy struct{}

// NewHashKeyStrategy 创建 Hash 策略
func NewHashKeyStrategy() *HashKeyStrategy {
	return &HashKeyStrategy{}
}

// Name 返回策略名称
func (s *HashKeyStrategy) Name() string { return "hash" }

// GenerateKey 生成 Hash 缓存键
func (s *HashKeyStrategy) GenerateKey(in KeyInput) string {
	return Fingerprint(in)
}

// =============================================================================
// Item 策略
// =============================================================================

const maxItemSegment = 64

// ItemKeyStrategy 生成以条目 ID 开头的可读键，形如 "<item>_<hash16>"。
// 便于在文件缓存目录中按条目定位。
type ItemKeyStrategy struct{}

// NewItemKeyStrategy 创建 Item 策略
func NewItemKeyStrategy() *ItemKeyStrategy {
	return &ItemKeyStrategy{}
}

// Name 返回策略名称
func (s *ItemKeyStrategy) Name() string { return "item" }

// GenerateKey 生成可读缓存键
func (s *ItemKeyStrategy) GenerateKey(in KeyInput) string {
	seg := sanitizeSegment(in.ItemID)
	if seg == "" {
		seg = "item"
	}
	return seg + "_" + Fingerprint(in)[:16]
}

// sanitizeSegment 只保留文件名安全的字符。
func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
		if b.Len() >= maxItemSegment {
			break
		}
	}
	return strings.Trim(b.String(), ".")
}

// NewKeyStrategy 按名称创建策略，未知名称回退到 item。
func NewKeyStrategy(name string) KeyStrategy {
	switch strings.ToLower(name) {
	case "hash":
		return NewHashKeyStrategy()
	default:
		return NewItemKeyStrategy()
	}
}
