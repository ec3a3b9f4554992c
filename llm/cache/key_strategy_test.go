package cache

import (
	"regexp"
	"testing"

	"github.com/BaSui01/batchflow/types"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func sampleInput() KeyInput {
	return KeyInput{
		ItemID: "q1",
		Messages: []types.Message{
			types.NewSystemMessage("You are a helpful AI assistant."),
			types.NewUserMessage("What is 2+2?"),
		},
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   256,
	}
}

func TestHashKeyStrategy_GenerateKey(t *testing.T) {
	s := NewHashKeyStrategy()
	k1 := s.GenerateKey(sampleInput())
	k2 := s.GenerateKey(sampleInput())

	assert.Equal(t, k1, k2, "相同输入应生成相同的键")
	assert.Regexp(t, `^[0-9a-f]{64}$`, k1)
	assert.Equal(t, "hash", s.Name())
}

func TestItemKeyStrategy_GenerateKey(t *testing.T) {
	s := NewItemKeyStrategy()

	tests := []struct {
		name   string
		itemID string
		want   string
	}{
		{name: "plain id", itemID: "q1", want: `^q1_[0-9a-f]{16}$`},
		{name: "path separators replaced", itemID: "a/b\\c", want: `^a-b-c_[0-9a-f]{16}$`},
		{name: "empty id", itemID: "", want: `^item_[0-9a-f]{16}$`},
		{name: "dots trimmed", itemID: "..", want: `^item_[0-9a-f]{16}$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInput()
			in.ItemID = tt.itemID
			assert.Regexp(t, tt.want, s.GenerateKey(in))
		})
	}
}

func TestItemKeyStrategy_LongIDTruncated(t *testing.T) {
	in := sampleInput()
	in.ItemID = string(make([]byte, 500))
	key := NewItemKeyStrategy().GenerateKey(in)
	assert.LessOrEqual(t, len(key), maxItemSegment+17)
}

func TestFingerprint_FieldSensitivity(t *testing.T) {
	base := Fingerprint(sampleInput())

	mutations := map[string]func(*KeyInput){
		"item id":     func(in *KeyInput) { in.ItemID = "q2" },
		"content":     func(in *KeyInput) { in.Messages[1].Content = "What is 3+3?" },
		"role":        func(in *KeyInput) { in.Messages[0].Role = types.RoleUser },
		"model":       func(in *KeyInput) { in.Model = "gpt-4o" },
		"temperature": func(in *KeyInput) { in.Temperature = 0.71 },
		"max tokens":  func(in *KeyInput) { in.MaxTokens = 512 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := sampleInput()
			mutate(&in)
			assert.NotEqual(t, base, Fingerprint(in))
		})
	}
}

func TestFingerprint_NilAndEmptyMessagesEqual(t *testing.T) {
	a := KeyInput{ItemID: "x", Model: "m"}
	b := KeyInput{ItemID: "x", Model: "m", Messages: []types.Message{}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func genKeyInput() *rapid.Generator[KeyInput] {
	return rapid.Custom(func(t *rapid.T) KeyInput {
		n := rapid.IntRange(0, 4).Draw(t, "n")
		msgs := make([]types.Message, n)
		for i := range msgs {
			role := rapid.SampledFrom([]types.Role{types.RoleSystem, types.RoleUser, types.RoleAssistant}).Draw(t, "role")
			msgs[i] = types.NewMessage(role, rapid.String().Draw(t, "content"))
		}
		return KeyInput{
			ItemID:      rapid.String().Draw(t, "id"),
			Messages:    msgs,
			Model:       rapid.StringMatching(`[a-z0-9\-]{1,20}`).Draw(t, "model"),
			Temperature: rapid.Float64Range(0, 2).Draw(t, "temp"),
			MaxTokens:   rapid.IntRange(0, 8192).Draw(t, "max_tokens"),
		}
	})
}

func TestProperty_KeyDeterministic(t *testing.T) {
	strategies := []KeyStrategy{NewHashKeyStrategy(), NewItemKeyStrategy()}
	rapid.Check(t, func(t *rapid.T) {
		in := genKeyInput().Draw(t, "input")
		for _, s := range strategies {
			if s.GenerateKey(in) != s.GenerateKey(in) {
				t.Fatalf("%s strategy not deterministic", s.Name())
			}
		}
	})
}

func TestProperty_TemperatureChangesKey(t *testing.T) {
	strategies := []KeyStrategy{NewHashKeyStrategy(), NewItemKeyStrategy()}
	rapid.Check(t, func(t *rapid.T) {
		in := genKeyInput().Draw(t, "input")
		other := in
		other.Temperature = rapid.Float64Range(0, 2).Filter(func(v float64) bool { return v != in.Temperature }).Draw(t, "other_temp")
		for _, s := range strategies {
			if s.GenerateKey(in) == s.GenerateKey(other) {
				t.Fatalf("%s strategy ignored temperature %v vs %v", s.Name(), in.Temperature, other.Temperature)
			}
		}
	})
}

var fileSafe = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)

func TestProperty_ItemKeyIsFileSafe(t *testing.T) {
	s := NewItemKeyStrategy()
	rapid.Check(t, func(t *rapid.T) {
		in := genKeyInput().Draw(t, "input")
		key := s.GenerateKey(in)
		if !fileSafe.MatchString(key) {
			t.Fatalf("key %q is not file safe", key)
		}
	})
}

func TestNewKeyStrategy(t *testing.T) {
	assert.Equal(t, "hash", NewKeyStrategy("HASH").Name())
	assert.Equal(t, "item", NewKeyStrategy("item").Name())
	assert.Equal(t, "item", NewKeyStrategy("").Name())
}
