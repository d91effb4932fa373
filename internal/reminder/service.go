// Package reminder はリマインダーのドメインロジックを提供する。
package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/repository"
	"github.com/hitoshi/elderease/internal/security"
)

// CreateInput はリマインダー作成の入力値。
type CreateInput struct {
	Title string `json:"title"`
	Time  string `json:"time"`
	Date  string `json:"date"`
}

// Service はリマインダーのサービス層。
type Service struct {
	repo      repository.ReminderRepository
	sanitizer security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ReminderRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// List はユーザーのリマインダーを(date, time)の文字列昇順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Reminder, error) {
	reminders, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// Create はリマインダーを作成する。title, time, dateは必須。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Reminder, error) {
	title := s.sanitizer.Sanitize(in.Title)
	tm := s.sanitizer.Sanitize(in.Time)
	date := s.sanitizer.Sanitize(in.Date)
	if title == "" || tm == "" || date == "" {
		return nil, model.NewValidationError("Title, time, and date are required")
	}
	if err := model.CheckTextLengths(
		model.Short("title", title), model.Short("time", tm), model.Short("date", date),
	); err != nil {
		return nil, err
	}

	now := time.Now()
	reminder := &model.Reminder{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Time:      tm,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	return reminder, nil
}

// Update はパッチの内容をリマインダーに反映する。
func (s *Service) Update(ctx context.Context, userID, reminderID string, patch model.ReminderPatch) (*model.Reminder, error) {
	if patch.IsEmpty() {
		return nil, model.NewValidationError("No updatable fields provided")
	}
	patch = s.cleanPatch(patch)
	for _, v := range []*string{patch.Title, patch.Time, patch.Date} {
		if v != nil && *v == "" {
			return nil, model.NewValidationError("title, time and date cannot be empty")
		}
	}
	if err := model.CheckTextLengths(
		model.Short("title", deref(patch.Title)), model.Short("time", deref(patch.Time)), model.Short("date", deref(patch.Date)),
	); err != nil {
		return nil, err
	}

	reminder, err := s.find(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}

	patch.Apply(reminder)
	reminder.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, reminder); err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}
	return reminder, nil
}

// Delete は所有者が一致するリマインダーを削除する。
func (s *Service) Delete(ctx context.Context, userID, reminderID string) error {
	if _, err := uuid.Parse(reminderID); err != nil {
		return model.NewNotFoundError("Reminder")
	}

	deleted, err := s.repo.DeleteByIDAndUserID(ctx, reminderID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("Reminder")
	}
	return nil
}

func (s *Service) find(ctx context.Context, userID, reminderID string) (*model.Reminder, error) {
	if _, err := uuid.Parse(reminderID); err != nil {
		return nil, model.NewNotFoundError("Reminder")
	}
	reminder, err := s.repo.FindByIDAndUserID(ctx, reminderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder: %w", err)
	}
	if reminder == nil {
		return nil, model.NewNotFoundError("Reminder")
	}
	return reminder, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (s *Service) cleanPatch(p model.ReminderPatch) model.ReminderPatch {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		c := s.sanitizer.Sanitize(*v)
		return &c
	}
	return model.ReminderPatch{
		Title: clean(p.Title),
		Time:  clean(p.Time),
		Date:  clean(p.Date),
		Done:  p.Done,
	}
}

// ParsePatch はJSONオブジェクトを更新可能フィールドのパッチに変換する。
// title, time, date, done以外のキー、nullを含む型の不一致はValidationErrorになる。
func ParsePatch(raw map[string]json.RawMessage) (model.ReminderPatch, error) {
	var patch model.ReminderPatch
	var unknown []string

	for key, value := range raw {
		if _, ok := patchFields[key]; ok && isJSONNull(value) {
			return model.ReminderPatch{}, model.NewValidationError(fmt.Sprintf("invalid value for %q", key))
		}

		var err error
		switch key {
		case "title":
			patch.Title, err = decodeString(value)
		case "time":
			patch.Time, err = decodeString(value)
		case "date":
			patch.Date, err = decodeString(value)
		case "done":
			var b bool
			if err = json.Unmarshal(value, &b); err == nil {
				patch.Done = &b
			}
		default:
			unknown = append(unknown, key)
			continue
		}
		if err != nil {
			return model.ReminderPatch{}, model.NewValidationError(fmt.Sprintf("invalid value for %q", key))
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return model.ReminderPatch{}, model.NewValidationError(
			fmt.Sprintf("unsupported fields: %s", strings.Join(unknown, ", ")),
		)
	}
	return patch, nil
}

var patchFields = map[string]struct{}{"title": {}, "time": {}, "date": {}, "done": {}}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func decodeString(raw json.RawMessage) (*string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
