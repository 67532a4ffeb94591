package auth

import (
	"sync"
	"time"
)

// attemptWindow は1識別子の失敗回数とウィンドウ開始時刻を保持する。
type attemptWindow struct {
	count       int
	windowStart time.Time
}

// AttemptTracker は識別子ごとのログイン失敗回数を
// ローリングウィンドウで追跡し、閾値超過時のロックアウトを判定する。
// 同一識別子への並行アクセスはmutexで直列化され、
// 増分の取りこぼしによる閾値超過を防ぐ。
type AttemptTracker struct {
	mu       sync.Mutex
	attempts map[string]*attemptWindow

	maxAttempts int
	window      time.Duration

	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewAttemptTracker は新しいAttemptTrackerを生成する。
// バックグラウンドで期限切れウィンドウのクリーンアップを開始する。
func NewAttemptTracker(maxAttempts int, window time.Duration) *AttemptTracker {
	t := &AttemptTracker{
		attempts:        make(map[string]*attemptWindow),
		maxAttempts:     maxAttempts,
		window:          window,
		cleanupInterval: window,
		stopCh:          make(chan struct{}),
	}

	go t.cleanupLoop()

	return t
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。冪等。
func (t *AttemptTracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}

// Blocked は識別子が現在ロックアウト中かを判定する。
// ロックアウト中の場合、ウィンドウ終了までの残り時間も返す。
// ウィンドウが経過していた場合はカウントを破棄してfalseを返す。
func (t *AttemptTracker) Blocked(identifier string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.attempts[identifier]
	if !ok {
		return false, 0
	}

	expiry := w.windowStart.Add(t.window)
	if !now.Before(expiry) {
		// ウィンドウ経過でカウントはリセットされる
		delete(t.attempts, identifier)
		return false, 0
	}

	if w.count >= t.maxAttempts {
		return true, expiry.Sub(now)
	}
	return false, 0
}

// RecordFailure は識別子の失敗回数をインクリメントする。
// ウィンドウが経過していた場合は新しいウィンドウを開始する。
// ウィンドウ内のカウントは単調非減少。
func (t *AttemptTracker) RecordFailure(identifier string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.attempts[identifier]
	if !ok || !now.Before(w.windowStart.Add(t.window)) {
		t.attempts[identifier] = &attemptWindow{count: 1, windowStart: now}
		return
	}
	w.count++
}

// Reset は識別子のカウントをクリアする。ログイン成功時に呼ばれる。
func (t *AttemptTracker) Reset(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, identifier)
}

// Count は識別子の現在の失敗回数を返す。テストおよびメトリクス用。
func (t *AttemptTracker) Count(identifier string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.attempts[identifier]; ok {
		return w.count
	}
	return 0
}

// cleanupLoop はバックグラウンドで期限切れウィンドウを定期的にクリーンアップする。
func (t *AttemptTracker) cleanupLoop() {
	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup(time.Now())
		case <-t.stopCh:
			return
		}
	}
}

// cleanup はウィンドウが経過したエントリを削除する。
func (t *AttemptTracker) cleanup(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, w := range t.attempts {
		if !now.Before(w.windowStart.Add(t.window)) {
			delete(t.attempts, id)
		}
	}
}
