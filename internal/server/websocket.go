package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kenbikyo/internal/generated"
	"kenbikyo/internal/telemetry"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // LAN内のクライアントのみを想定
	},
}

// GetTelemetryWebSocket はクライアントが切断するまでシステム情報を定期的に送る
func (h *KenbikyoHandler) GetTelemetryWebSocket(c *gin.Context) {
	logger := zerolog.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgradeが既にエラーレスポンスを書いている
		logger.Warn().Err(err).Msg("WebSocketへのアップグレードに失敗しました")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 受信はしないが、切断を検知するために読み続ける
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	period := h.wsPeriod
	if period <= 0 {
		period = time.Duration(h.interval()) * time.Second
	}
	if period <= 0 {
		period = 5 * time.Second
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		snap, err := h.telemetry.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("システム情報の取得に失敗しました")
		} else if err := writeFrame(conn, snap); err != nil {
			logger.Debug().Err(err).Msg("WebSocketへの書き込みに失敗しました")
			return
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case <-ticker.C:
		}
	}
}

func writeFrame(conn *websocket.Conn, snap telemetry.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(generated.TelemetryFrame{
		CpuUsage:     snap.CPUUsage,
		MemoryUsage:  snap.MemoryUsage,
		StorageUsage: snap.StorageUsage,
		CpuTemp:      snap.CPUTemp,
		Timestamp:    snap.SampledAt,
	})
}
