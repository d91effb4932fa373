package sos

import (
	"strings"

	"github.com/hitoshi/elderease/internal/model"
)

// nationalNumberLength は国番号を除いた電話番号の桁数。
const nationalNumberLength = 10

// NormalizePhone は連絡先文字列から国番号を除いた10桁の番号を取り出す。
// 数字以外を除去した後、国番号付きの形式なら国番号を外し、
// それ以外で10桁を超える場合は末尾10桁を使う。
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) > nationalNumberLength {
		if countryCode != "" &&
			len(digits) == len(countryCode)+nationalNumberLength &&
			strings.HasPrefix(digits, countryCode) {
			digits = digits[len(countryCode):]
		} else {
			digits = digits[len(digits)-nationalNumberLength:]
		}
	}

	if len(digits) != nationalNumberLength {
		return "", model.NewValidationError("Emergency contact must contain a valid 10-digit phone number")
	}
	return digits, nil
}

// Recipient はSOSの送信先番号。flow送信はNational、直接送信はInternationalを使う。
type Recipient struct {
	National      string
	International string
}

// DispatchNumber は連絡先文字列から送信先番号を組み立てる。
func DispatchNumber(raw, countryCode string) (Recipient, error) {
	national, err := NormalizePhone(raw, countryCode)
	if err != nil {
		return Recipient{}, err
	}
	return Recipient{National: national, International: countryCode + national}, nil
}
