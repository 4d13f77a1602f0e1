package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shouni/go-concept-image-kit/pkg/domain"
)

// DefaultPort はローカルのコールバック待ち受けポートです。
const DefaultPort = 5001

type selectRequest struct {
	Index *int `json:"index"`
}

// Server はブラウザの「選択」クリックを受け取る最小限の HTTP サーバーです。
type Server struct {
	slot   *Slot
	addr   string
	engine *gin.Engine
}

// NewServer は addr（例: ":5001"）で待ち受ける Server を生成します。
func NewServer(addr string, slot *Slot) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), allowAllOrigins())

	s := &Server{slot: slot, addr: addr, engine: engine}
	engine.POST("/select-image", s.handleSelect)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return s
}

// Handler はテスト等で使うための http.Handler を返します。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// handleSelect は {index} を受け取り、スロットを上書きするのだ。
// index が無い場合は番兵値を書き込むのだ。
func (s *Server) handleSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	index := domain.NoSelection
	if req.Index != nil {
		index = *req.Index
	}
	s.slot.Set(index)

	slog.Info("選択を受け取ったのだ", "index", index)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Run はサーバーを起動し、ctx がキャンセルされるまでブロックします。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("コールバックサーバーを起動したのだ", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("コールバックサーバーが停止しました: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("コールバックサーバーの停止に失敗しました: %w", err)
		}
		slog.Info("コールバックサーバーを停止したのだ")
		return nil
	}
}

// allowAllOrigins は file:// から開いたページの fetch を通すための CORS ミドルウェアです。
func allowAllOrigins() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
