// Package model はドメインモデルを定義する。
package model

// ProjectType はダッシュボードが統合する3プロジェクトの識別子。
// 各プロジェクトは独立したデータベースを持つ。
type ProjectType string

const (
	// ProjectLead はリード管理プロジェクト。
	ProjectLead ProjectType = "lead"
	// ProjectCPA はCPAクライアント・ブローカー管理プロジェクト。
	ProjectCPA ProjectType = "cpa"
	// ProjectProp はプロップブローカー財務管理プロジェクト。
	ProjectProp ProjectType = "prop"
)

// AllProjects は全プロジェクトの一覧を固定順で返す。
func AllProjects() []ProjectType {
	return []ProjectType{ProjectLead, ProjectCPA, ProjectProp}
}

// ParseProjectType は文字列をProjectTypeに変換する。未定義の場合はfalseを返す。
func ParseProjectType(s string) (ProjectType, bool) {
	switch ProjectType(s) {
	case ProjectLead, ProjectCPA, ProjectProp:
		return ProjectType(s), true
	default:
		return "", false
	}
}
