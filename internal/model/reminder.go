package model

import "time"

// Reminder はユーザーのリマインダーを表す。
// Timeは"3pm"のような表示用の自由入力文字列。
type Reminder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Time      string    `json:"time"`
	Date      string    `json:"date"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReminderPatch はリマインダーの部分更新内容。nilのフィールドは変更しない。
type ReminderPatch struct {
	Title *string
	Time  *string
	Date  *string
	Done  *bool
}

// IsEmpty は更新対象のフィールドが1つもないかを返す。
func (p ReminderPatch) IsEmpty() bool {
	return p.Title == nil && p.Time == nil && p.Date == nil && p.Done == nil
}

// Apply はパッチの内容をリマインダーに反映する。
func (p ReminderPatch) Apply(r *Reminder) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Time != nil {
		r.Time = *p.Time
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Done != nil {
		r.Done = *p.Done
	}
}
