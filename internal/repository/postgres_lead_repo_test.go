package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/unidash/internal/model"
)

// PostgresLeadRepoはLeadRepositoryインターフェースを満たすことを検証
func TestPostgresLeadRepo_ImplementsInterface(t *testing.T) {
	var _ LeadRepository = (*PostgresLeadRepo)(nil)
}

// NewPostgresLeadRepoが正しく初期化されることを検証
func TestNewPostgresLeadRepo_Initializes(t *testing.T) {
	repo := NewPostgresLeadRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Leadモデルのフィールドが正しく構築されることを検証
func TestPostgresLeadRepo_LeadModel_Fields(t *testing.T) {
	now := time.Now()
	lead := &model.Lead{
		ID:        "lead-id-1",
		Name:      "山田太郎",
		Email:     "yamada@example.com",
		State:     model.LeadStateNew,
		Priority:  2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if lead.ID != "lead-id-1" {
		t.Errorf("lead.ID = %q, want %q", lead.ID, "lead-id-1")
	}
	if lead.State != model.LeadStateNew {
		t.Errorf("lead.State = %q, want %q", lead.State, model.LeadStateNew)
	}
	if !model.ValidLeadState(lead.State) {
		t.Error("new state should be valid")
	}
}

// ILIKE検索パターンがワイルドカード文字をエスケープすることを検証
func TestLikePattern_EscapesWildcards(t *testing.T) {
	cases := []struct {
		search string
		want   string
	}{
		{"yamada", "%yamada%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`c:\path`, `%c:\\path%`},
	}
	for _, tc := range cases {
		if got := likePattern(tc.search); got != tc.want {
			t.Errorf("likePattern(%q) = %q, want %q", tc.search, got, tc.want)
		}
	}
}

// nullStringの変換が往復で値を保持することを検証
func TestNullString_RoundTrip(t *testing.T) {
	if got := nullStringValue(nullString("")); got != "" {
		t.Errorf("empty round trip = %q, want empty", got)
	}
	if got := nullStringValue(nullString("memo")); got != "memo" {
		t.Errorf("round trip = %q, want %q", got, "memo")
	}
	if nullString("").Valid {
		t.Error("empty string should map to invalid NullString")
	}
}
