package model

import "time"

// Mood は気分記録の1エントリを表す。
// DateISOはYYYY-MM-DD形式の文字列で、期間検索は辞書順比較で行う。
type Mood struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	MoodLabel string    `json:"moodLabel"`
	MoodEmoji string    `json:"moodEmoji"`
	DateISO   string    `json:"dateISO"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
	Notes     string    `json:"notes"`
}

// MoodFilter は気分記録一覧の期間条件。空文字列は無制限を表す。
type MoodFilter struct {
	Since string
	Until string
}
