// Package model はドメインモデルを定義する。
package model

import "time"

// LeadState はリードの進行状態を表す。
type LeadState string

const (
	// LeadStateNew は未対応の新規リード。
	LeadStateNew LeadState = "new"
	// LeadStateContacted はコンタクト済みのリード。
	LeadStateContacted LeadState = "contacted"
	// LeadStateQualified は有望と判定されたリード。
	LeadStateQualified LeadState = "qualified"
	// LeadStateConverted は成約したリード。
	LeadStateConverted LeadState = "converted"
	// LeadStateLost は失注したリード。
	LeadStateLost LeadState = "lost"
)

// ValidLeadState はリード状態が定義済みのいずれかであるかを返す。
func ValidLeadState(s LeadState) bool {
	switch s {
	case LeadStateNew, LeadStateContacted, LeadStateQualified, LeadStateConverted, LeadStateLost:
		return true
	default:
		return false
	}
}

// Lead はリード管理プロジェクトの1リードを表す。
type Lead struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Source    string // 流入元（web, referral, campaign等）
	State     LeadState
	Priority  int    // 1（低）〜3（高）
	Notes     string // 保存前にサニタイズされる自由記述
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeadOverview はリード一覧ページの集計サマリーを表す。
type LeadOverview struct {
	Total          int
	ByState        map[LeadState]int
	ConversionRate float64 // converted / total（totalが0の場合は0）
}
