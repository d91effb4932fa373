package model

import (
	"fmt"
	"unicode/utf8"
)

// テキスト項目の最大文字数（ルーン数）。
const (
	MaxShortTextLength = 255  // 名前、タイトル、時刻、日付、電話番号など
	MaxLongTextLength  = 5000 // メモ、住所、既往歴、服薬情報
	MaxEmailLength     = 320
	MaxTags            = 50
)

// TextField は長さ検証の対象となる項目。
type TextField struct {
	Name  string
	Value string
	Max   int
}

// Short は短いテキスト項目を表すTextFieldを返す。
func Short(name, value string) TextField {
	return TextField{Name: name, Value: value, Max: MaxShortTextLength}
}

// Long は長いテキスト項目を表すTextFieldを返す。
func Long(name, value string) TextField {
	return TextField{Name: name, Value: value, Max: MaxLongTextLength}
}

// CheckTextLengths は最初に上限を超えた項目のValidationErrorを返す。
func CheckTextLengths(fields ...TextField) error {
	for _, f := range fields {
		if utf8.RuneCountInString(f.Value) > f.Max {
			return NewValidationError(fmt.Sprintf("%s must be at most %d characters", f.Name, f.Max))
		}
	}
	return nil
}
