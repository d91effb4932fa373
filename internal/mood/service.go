// Package mood は気分記録のドメインロジックを提供する。
package mood

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/elderease/internal/model"
	"github.com/hitoshi/elderease/internal/repository"
	"github.com/hitoshi/elderease/internal/security"
)

// ListLimit は一覧で返す最大件数。
const ListLimit = 1000

// dateLayout はdateISOおよび期間指定の形式。
const dateLayout = "2006-01-02"

// AddInput は気分記録の入力値。Timestampがゼロ値の場合は現在時刻を使う。
type AddInput struct {
	MoodLabel string
	MoodEmoji string
	DateISO   string
	Time      string
	Timestamp time.Time
	Tags      []string
	Notes     string
}

// Service は気分記録のサービス層。
type Service struct {
	repo      repository.MoodRepository
	sanitizer security.TextSanitizerService
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.MoodRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Add は気分記録を追加する。moodLabelとdateISOは必須。
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (*model.Mood, error) {
	label := s.sanitizer.Sanitize(in.MoodLabel)
	if label == "" || in.DateISO == "" {
		return nil, model.NewValidationError("moodLabel and dateISO are required")
	}
	if !isISODate(in.DateISO) {
		return nil, model.NewValidationError("dateISO must be in YYYY-MM-DD format")
	}

	tm := s.sanitizer.Sanitize(in.Time)
	notes := s.sanitizer.Sanitize(in.Notes)
	tags := s.sanitizer.SanitizeAll(in.Tags)
	if err := checkLengths(label, in.MoodEmoji, tm, notes, tags); err != nil {
		return nil, err
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	mood := &model.Mood{
		ID:        uuid.New().String(),
		UserID:    userID,
		MoodLabel: label,
		MoodEmoji: in.MoodEmoji,
		DateISO:   in.DateISO,
		Time:      tm,
		Timestamp: ts,
		Tags:      tags,
		Notes:     notes,
	}

	if err := s.repo.Create(ctx, mood); err != nil {
		return nil, fmt.Errorf("failed to create mood: %w", err)
	}
	return mood, nil
}

// List は期間内の気分記録を新しい順に返す。since/untilは空なら無制限。
func (s *Service) List(ctx context.Context, userID, since, until string) ([]*model.Mood, error) {
	if since != "" && !isISODate(since) {
		return nil, model.NewValidationError("since must be in YYYY-MM-DD format")
	}
	if until != "" && !isISODate(until) {
		return nil, model.NewValidationError("until must be in YYYY-MM-DD format")
	}

	moods, err := s.repo.ListByUserID(ctx, userID, model.MoodFilter{Since: since, Until: until}, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}
	return moods, nil
}

// Delete は所有者が一致する気分記録を削除する。
func (s *Service) Delete(ctx context.Context, userID, moodID string) error {
	if _, err := uuid.Parse(moodID); err != nil {
		return model.NewNotFoundError("Mood")
	}

	deleted, err := s.repo.DeleteByIDAndUserID(ctx, moodID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete mood: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("Mood")
	}
	return nil
}

func checkLengths(label, emoji, tm, notes string, tags []string) error {
	if len(tags) > model.MaxTags {
		return model.NewValidationError(fmt.Sprintf("tags must have at most %d items", model.MaxTags))
	}
	fields := []model.TextField{
		model.Short("moodLabel", label),
		model.Short("moodEmoji", emoji),
		model.Short("time", tm),
		model.Long("notes", notes),
	}
	for _, tag := range tags {
		fields = append(fields, model.Short("tags", tag))
	}
	return model.CheckTextLengths(fields...)
}

func isISODate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
