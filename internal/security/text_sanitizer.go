// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は利用者が入力する自由記述（メモ、タイトル、タグ、プロフィール）から
// マークアップを除去し、プレーンテキストとして保存できる形に整える。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は自由記述テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
	// SanitizeAll はスライスの各要素をサニタイズし、空になった要素を除く。
	SanitizeAll(raw []string) []string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなため共有してよい。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使うTextSanitizerServiceを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyが出力するエンティティは保存前に元の文字へ戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SanitizeAll はスライスの各要素をサニタイズする。nil入力には空スライスを返す。
func (s *textSanitizer) SanitizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if cleaned := s.Sanitize(v); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
