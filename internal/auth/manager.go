// Package auth は単一ユーザーのセッション認証と CSRF 検証を提供します。
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/pdf-tailor/internal/config"
)

const (
	SessionCookieName    = "pt_session"
	sessionKeyUser       = "auth_user"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザー名を共有するためのキーです。
const ContextUserKey = "auth.user"

// Policy はセッション寿命とログイン試行制限の設定です。
type Policy struct {
	MaxSessionLifetime time.Duration
	IdleTimeout        time.Duration
	LoginWindow        time.Duration
	LockDuration       time.Duration
	MaxLoginAttempts   int
}

// DefaultPolicy は本番で使う既定値です。
var DefaultPolicy = Policy{
	MaxSessionLifetime: 12 * time.Hour,
	IdleTimeout:        30 * time.Minute,
	LoginWindow:        15 * time.Minute,
	LockDuration:       10 * time.Minute,
	MaxLoginAttempts:   5,
}

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(DefaultPolicy.MaxSessionLifetime.Seconds())
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	cfg      *config.Config
	policy   Policy
	throttle *loginThrottle
	logger   *log.Logger
	now      func() time.Time
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config, logger *log.Logger) *Manager {
	return newManager(cfg, DefaultPolicy, logger, time.Now)
}

func newManager(cfg *config.Config, policy Policy, logger *log.Logger, now func() time.Time) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		cfg:      cfg,
		policy:   policy,
		throttle: newLoginThrottle(policy, now),
		logger:   logger,
		now:      now,
	}
}

func (m *Manager) ensureCredentials() error {
	if m.cfg.AppUsername == "" {
		return errors.New("APP_USERNAME が設定されていません")
	}
	if m.cfg.AppPasswordHash == "" {
		return errors.New("APP_PASSWORD_HASH が設定されていません")
	}
	if m.cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET が設定されていません")
	}
	return nil
}

func (m *Manager) verifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(m.cfg.AppPasswordHash), []byte(password)) == nil
}

// loginThrottle は IP ごとのログイン失敗回数を数え、上限に達したら一定時間ロックします。
type loginThrottle struct {
	policy   Policy
	now      func() time.Time
	mu       sync.Mutex
	attempts map[string]*attemptState
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

func newLoginThrottle(policy Policy, now func() time.Time) *loginThrottle {
	return &loginThrottle{
		policy:   policy,
		now:      now,
		attempts: make(map[string]*attemptState),
	}
}

// lockedFor はロック解除までの残り時間を返します。ロックされていなければ 0 です。
func (t *loginThrottle) lockedFor(ip string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[ip]
	if !ok {
		return 0
	}
	now := t.now()
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// fail は失敗を記録し、ロックまでの残り試行回数を返します。
func (t *loginThrottle) fail(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state, ok := t.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > t.policy.LoginWindow {
		state = &attemptState{firstAttempt: now}
		t.attempts[ip] = state
	}

	state.count++
	if state.count >= t.policy.MaxLoginAttempts {
		state.lockedUntil = now.Add(t.policy.LockDuration)
		state.count = t.policy.MaxLoginAttempts
	}
	return t.policy.MaxLoginAttempts - state.count
}

func (t *loginThrottle) reset(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, ip)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
