package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kenbikyo/internal/generated"
	"kenbikyo/internal/microscope"
	"kenbikyo/internal/sensor"
	"kenbikyo/internal/state"
)

const defaultHistoryLimit = 50

// KenbikyoHandler は生成されたServerInterfaceを実装する
type KenbikyoHandler struct {
	registry  *microscope.Registry
	sensor    sensor.Sensor
	telemetry TelemetrySource
	state     *state.Store
	sampler   IntervalController
	history   HistoryReader
	wsPeriod  time.Duration
}

var _ generated.ServerInterface = (*KenbikyoHandler)(nil)

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *KenbikyoHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, generated.HealthResponse{
		Status:    generated.Healthy,
		Timestamp: time.Now(),
	})
}

// GetConfig はシステム情報とコントローラー設定を返す
func (h *KenbikyoHandler) GetConfig(c *gin.Context) {
	snap, err := h.telemetry.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	saved := h.state.Get()
	connected := false
	for _, m := range h.registry.List() {
		if m.Connected {
			connected = true
			break
		}
	}

	c.JSON(http.StatusOK, generated.SystemConfigResponse{
		Interval:        h.interval(),
		LedIntensity:    saved.LEDIntensity,
		LedState:        saved.LEDState,
		CameraConnected: connected,
		MicroscopeCount: h.registry.Count(),
		CpuUsage:        snap.CPUUsage,
		MemoryUsage:     snap.MemoryUsage,
		StorageUsage:    snap.StorageUsage,
		CpuTemp:         snap.CPUTemp,
	})
}

// interval は現在のサンプリング間隔（秒）を返す
func (h *KenbikyoHandler) interval() int {
	if h.sampler != nil {
		return int(h.sampler.Interval() / time.Second)
	}
	return h.state.Get().Interval
}

// ListMicroscopes は登録順に顕微鏡一覧を返す
func (h *KenbikyoHandler) ListMicroscopes(c *gin.Context) {
	list := h.registry.List()
	microscopes := make([]generated.MicroscopeInfo, 0, len(list))
	for _, m := range list {
		microscopes = append(microscopes, generated.MicroscopeInfo{
			Id:         m.ID,
			Name:       m.Name,
			Device:     m.Device,
			Connected:  m.Connected,
			Resolution: m.Config.Resolution,
		})
	}

	c.JSON(http.StatusOK, generated.MicroscopeListResponse{
		Success:     true,
		Microscopes: microscopes,
		Count:       len(microscopes),
	})
}

// GetMicroscopeConfig は顕微鏡ごとの設定を返す
// センサーが読めた場合は温度も含める
func (h *KenbikyoHandler) GetMicroscopeConfig(c *gin.Context, microscopeID generated.MicroscopeId) {
	cfg, err := h.registry.Config(microscopeID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := generated.MicroscopeConfigResponse{
		Success: true,
		Config: generated.MicroscopeConfig{
			LedOn:        cfg.LEDOn,
			LedIntensity: cfg.LEDIntensity,
			Resolution:   cfg.Resolution,
		},
	}
	if reading, err := h.sensor.Read(c.Request.Context()); err == nil {
		temp := reading.Temperature
		resp.Config.Temperature = &temp
	}

	c.JSON(http.StatusOK, resp)
}

// CaptureImage は1フレームを保存してJPEGとして返す
func (h *KenbikyoHandler) CaptureImage(c *gin.Context, microscopeID generated.MicroscopeId) {
	capture, frame, err := h.registry.Capture(c.Request.Context(), microscopeID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("X-Capture-Id", capture.ID)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// SetLed はLEDの点灯状態を切り替える
func (h *KenbikyoHandler) SetLed(c *gin.Context) {
	var req generated.SetLedJSONRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.MicroscopeId == "" {
		badRequest(c, errors.New("microscope_id は必須です"))
		return
	}

	if err := h.registry.SetLED(req.MicroscopeId, req.State); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, generated.SuccessResponse{Success: true})
}

// SetIntensity はLED強度を変更する
func (h *KenbikyoHandler) SetIntensity(c *gin.Context) {
	var req generated.SetIntensityJSONRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.MicroscopeId == "" {
		badRequest(c, errors.New("microscope_id は必須です"))
		return
	}

	if err := h.registry.SetIntensity(req.MicroscopeId, req.Intensity); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, generated.SuccessResponse{Success: true})
}

// GetData は温湿度を同期的に読み取って返す
func (h *KenbikyoHandler) GetData(c *gin.Context) {
	reading, err := h.sensor.Read(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, generated.SensorDataResponse{
		Success:     true,
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		Timestamp:   reading.Timestamp.Format(sensor.TimestampLayout),
	})
}

// SetInterval はサンプリング間隔を変更して保存する
func (h *KenbikyoHandler) SetInterval(c *gin.Context) {
	var req generated.SetIntervalJSONRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	d := time.Duration(req.Interval) * time.Second
	if h.sampler != nil {
		if err := h.sampler.SetInterval(d); err != nil {
			writeError(c, err)
			return
		}
	} else if req.Interval < 1 {
		respondError(c, http.StatusBadRequest, codeInvalidInterval, "間隔は1秒以上で指定してください")
		return
	}

	// 新しい間隔は既に有効なので、保存の失敗は警告に留める
	if err := h.state.Update(func(f *state.File) { f.Interval = req.Interval }); err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Int("interval", req.Interval).Msg("状態ファイルの保存に失敗しました")
	}

	c.JSON(http.StatusOK, generated.SuccessResponse{Success: true})
}

// SetImageFolder は画像保存先を変更する
func (h *KenbikyoHandler) SetImageFolder(c *gin.Context) {
	var req generated.SetImageFolderJSONRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Folder == "" {
		badRequest(c, errors.New("folder は必須です"))
		return
	}

	if err := h.registry.SetImageFolder(req.Folder); err != nil {
		writeError(c, err)
		return
	}

	msg := "画像保存先を " + req.Folder + " に変更しました"
	c.JSON(http.StatusOK, generated.SuccessResponse{Success: true, Message: &msg})
}

// GetCameraStatus はカメラの接続状況を返す
func (h *KenbikyoHandler) GetCameraStatus(c *gin.Context) {
	list := h.registry.List()
	ids := make([]string, 0, len(list))
	connected := false
	for _, m := range list {
		ids = append(ids, m.ID)
		connected = connected || m.Connected
	}

	c.JSON(http.StatusOK, generated.CameraStatusResponse{
		Success: true,
		Status: generated.CameraStatus{
			Connected:   connected,
			Count:       len(ids),
			Microscopes: ids,
		},
	})
}

// GetSensorHistory は保存済みの履歴を新しい順に返す
func (h *KenbikyoHandler) GetSensorHistory(c *gin.Context, params generated.GetSensorHistoryParams) {
	if h.history == nil {
		respondError(c, http.StatusServiceUnavailable, codeHistoryDisabled, "センサー履歴は無効です")
		return
	}

	limit := defaultHistoryLimit
	if params.Limit != nil {
		limit = *params.Limit
	}
	if limit < 1 {
		badRequest(c, errors.New("limit は1以上で指定してください"))
		return
	}

	records, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	readings := make([]generated.SensorHistoryEntry, 0, len(records))
	for _, r := range records {
		readings = append(readings, generated.SensorHistoryEntry{
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Timestamp:   r.TakenAt.Local().Format(sensor.TimestampLayout),
		})
	}

	c.JSON(http.StatusOK, generated.SensorHistoryResponse{
		Success:  true,
		Readings: readings,
		Count:    len(readings),
	})
}

// HistoryReader はセンサー履歴の読み出し
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]sensor.HistoryRecord, error)
}
