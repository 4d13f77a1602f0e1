package domain

import (
	"errors"
	"time"
)

// ErrIndexOutOfRange は、セッションに存在しない画像インデックスが指定された場合に返されます。
var ErrIndexOutOfRange = errors.New("image index out of range")

// GeneratedImage は生成された画像（Base64）と、その生成元のプロンプトの組です。
type GeneratedImage struct {
	Index  int
	Base64 string
	Prompt string
}

// Session は1回の生成実行で得られた画像とプロンプトを保持します。
// Images と Prompts は常に同じ長さで、インデックスごとに対応しています。
type Session struct {
	ID        string
	Concept   string
	Images    []string
	Prompts   []string
	CreatedAt time.Time
}

// Len はセッション内の画像枚数を返します。
func (s Session) Len() int {
	return len(s.Images)
}

// Image は指定インデックスの画像を返します。範囲外なら ErrIndexOutOfRange です。
func (s Session) Image(index int) (GeneratedImage, error) {
	if index < 0 || index >= len(s.Images) {
		return GeneratedImage{}, ErrIndexOutOfRange
	}
	return GeneratedImage{
		Index:  index,
		Base64: s.Images[index],
		Prompt: s.Prompts[index],
	}, nil
}

// GeneratedImages はセッションの内容を GeneratedImage のスライスとして返します。
func (s Session) GeneratedImages() []GeneratedImage {
	out := make([]GeneratedImage, 0, len(s.Images))
	for i := range s.Images {
		out = append(out, GeneratedImage{Index: i, Base64: s.Images[i], Prompt: s.Prompts[i]})
	}
	return out
}

// Clone は内部スライスを共有しないコピーを返します。
func (s Session) Clone() Session {
	c := s
	c.Images = append([]string(nil), s.Images...)
	c.Prompts = append([]string(nil), s.Prompts...)
	return c
}
