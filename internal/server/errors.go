package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kenbikyo/internal/generated"
	"kenbikyo/internal/microscope"
	"kenbikyo/internal/sampler"
	"kenbikyo/internal/sensor"
)

// エラーコード
const (
	codeMicroscopeNotFound = "microscope_not_found"
	codeInvalidIntensity   = "invalid_intensity"
	codeInvalidInterval    = "invalid_interval"
	codeInvalidRequest     = "invalid_request"
	codeLEDFailure         = "led_failure"
	codeCaptureFailed      = "capture_failed"
	codeSensorUnavailable  = "sensor_unavailable"
	codeHistoryDisabled    = "history_disabled"
	codeInternal           = "internal_error"
)

// classify はエラーをHTTPステータスとエラーコードに対応付ける
//
// 400: 入力の検証エラー / 404: 未知の顕微鏡 / 500: ハードウェア・IO / 503: センサー
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, microscope.ErrNotFound):
		return http.StatusNotFound, codeMicroscopeNotFound, "指定された顕微鏡が見つかりません"
	case errors.Is(err, microscope.ErrInvalidIntensity):
		return http.StatusBadRequest, codeInvalidIntensity, "LED強度は0〜100で指定してください"
	case errors.Is(err, sampler.ErrInterval):
		return http.StatusBadRequest, codeInvalidInterval, "間隔は1秒以上で指定してください"
	case errors.Is(err, microscope.ErrLEDFailure):
		return http.StatusInternalServerError, codeLEDFailure, "LEDの制御に失敗しました"
	case errors.Is(err, microscope.ErrCaptureFailed):
		return http.StatusInternalServerError, codeCaptureFailed, "画像のキャプチャに失敗しました"
	case errors.Is(err, sensor.ErrNoReading):
		return http.StatusServiceUnavailable, codeSensorUnavailable, "センサーの値を取得できませんでした"
	default:
		return http.StatusInternalServerError, codeInternal, "内部エラーが発生しました"
	}
}

// writeError はエラーをJSONで返す。エラー表現はこの関数に集約する
func writeError(c *gin.Context, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	respondError(c, status, code, message)
}

// respondError は指定されたステータスとコードでエラーを返す
func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, generated.ErrorResponse{
		Success:   false,
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// badRequest は検証エラーを返す
func badRequest(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
}
