package ai

import (
	"errors"
	"net"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = time.Second
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 30 * time.Second
)

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 初回1秒、2倍ずつ増加、最大30秒。
func CalculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// IsRetryable はAI APIのエラーが再試行に値するかを判定する。
// レート制限（429）とサーバーエラー（5xx）、一時的なネットワークエラーを
// 再試行対象とする。認証エラーやリクエスト不正は再試行しない。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
