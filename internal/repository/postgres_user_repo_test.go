package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

// 各リポジトリ実装がインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
	var _ MoodRepository = (*PostgresMoodRepo)(nil)
	var _ ReminderRepository = (*PostgresReminderRepo)(nil)
	var _ PrescriptionRepository = (*PostgresPrescriptionRepo)(nil)
}

// コンストラクタが非nilを返すことを検証
func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil {
		t.Error("expected non-nil user repo")
	}
	if NewPostgresSessionRepo(nil) == nil {
		t.Error("expected non-nil session repo")
	}
	if NewPostgresMoodRepo(nil) == nil {
		t.Error("expected non-nil mood repo")
	}
	if NewPostgresReminderRepo(nil) == nil {
		t.Error("expected non-nil reminder repo")
	}
	if NewPostgresPrescriptionRepo(nil) == nil {
		t.Error("expected non-nil prescription repo")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key violation", &pq.Error{Code: "23503"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
