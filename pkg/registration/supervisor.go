package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Mode は登録サービスをどう扱うかを表します。
type Mode string

const (
	// ModeExternal は外部で管理されているサービスとして扱い、疎通確認だけを行います。
	ModeExternal Mode = "external"
	// ModeOwned はこのプロセスがサービスを起動し、終了まで面倒を見ます。
	ModeOwned Mode = "owned"
	// ModeDisabled は何も起動せず、確認もしません。
	ModeDisabled Mode = "disabled"
)

const (
	DefaultCommand       = "node index.js"
	DefaultDir           = "story-protocol-integration"
	DefaultHealthTimeout = 5 * time.Second
	healthRetryInterval  = 200 * time.Millisecond
)

// ErrPortInUse は owned モードで既にポートが使われている場合のエラーです。
var ErrPortInUse = errors.New("registration service port already in use")

// SupervisorConfig は Supervisor の設定です。
type SupervisorConfig struct {
	Mode          Mode
	Addr          string // host:port
	Command       string
	Dir           string
	HealthTimeout time.Duration
}

// Supervisor は登録サービスの起動または疎通確認を担当します。
type Supervisor struct {
	cfg  SupervisorConfig
	dial func(ctx context.Context, addr string) error
}

// NewSupervisor は Supervisor を生成します。
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Mode == "" {
		cfg.Mode = ModeExternal
	}
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	return &Supervisor{cfg: cfg, dial: dialTCP}
}

// Run はモードに応じて動作します。owned ではサービス終了か ctx のキャンセルまでブロックするのだ。
func (s *Supervisor) Run(ctx context.Context) error {
	switch s.cfg.Mode {
	case ModeDisabled:
		slog.Info("登録サービスは無効なのだ")
		return nil
	case ModeExternal:
		if err := s.WaitHealthy(ctx); err != nil {
			slog.Warn("登録サービスに接続できないのだ。登録は失敗する可能性があるのだ", "addr", s.cfg.Addr, "error", err)
			return nil
		}
		slog.Info("外部の登録サービスを確認したのだ", "addr", s.cfg.Addr)
		return nil
	case ModeOwned:
		return s.runOwned(ctx)
	default:
		return fmt.Errorf("不明な登録サービスモードです: %q", s.cfg.Mode)
	}
}

func (s *Supervisor) runOwned(ctx context.Context) error {
	// 既存のプロセスに黙って相乗りしないよう、ポートが空いていることを先に確かめるのだ
	if err := s.dial(ctx, s.cfg.Addr); err == nil {
		return fmt.Errorf("%w: %s (外部管理なら REGISTRATION_MODE=external を指定してほしいのだ)", ErrPortInUse, s.cfg.Addr)
	}

	fields := strings.Fields(s.cfg.Command)
	if len(fields) == 0 {
		return errors.New("登録サービスの起動コマンドが空です")
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	slog.Info("登録サービスを起動するのだ", "command", s.cfg.Command, "dir", s.cfg.Dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("登録サービスの起動に失敗しました: %w", err)
	}

	go func() {
		if err := s.WaitHealthy(ctx); err != nil {
			slog.Warn("登録サービスがまだ応答しないのだ", "addr", s.cfg.Addr, "error", err)
			return
		}
		slog.Info("登録サービスが応答したのだ", "addr", s.cfg.Addr)
	}()

	err := cmd.Wait()
	if ctx.Err() != nil {
		slog.Info("登録サービスを停止したのだ")
		return nil
	}
	if err != nil {
		return fmt.Errorf("登録サービスが異常終了しました: %w", err)
	}
	return errors.New("登録サービスが終了しました")
}

// WaitHealthy はポートに接続できるまで HealthTimeout の間だけ待ちます。
func (s *Supervisor) WaitHealthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HealthTimeout)
	defer cancel()

	for {
		err := s.dial(ctx, s.cfg.Addr)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("health check timed out: %w", err)
		case <-time.After(healthRetryInterval):
		}
	}
}

func dialTCP(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// HostPort は URL から host:port を取り出します。ポートが無ければスキームの既定値を補います。
func HostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("無効なURLです: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL にホストがありません: %s", rawURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
