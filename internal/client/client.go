// Package client はデバイスサービスのHTTP APIを呼び出すクライアント
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kenbikyo/internal/generated"
)

// DefaultTimeout は1リクエストのタイムアウト
const DefaultTimeout = 5 * time.Second

const (
	maxResponseSize = 1 << 20  // 1 MB
	maxImageSize    = 32 << 20 // 32 MB
)

// StatusError は2xx以外の応答を表す
type StatusError struct {
	StatusCode int
	Code       string // サービスのエラーコード (例: microscope_not_found)
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound は未知の顕微鏡IDによるエラーかを返す
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client はデバイスサービスへのHTTPクライアント
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option はClientの設定を変更する
type Option func(*Client)

// WithHTTPClient は内部で使うhttp.Clientを差し替える
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New は新しいClientを作成する
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("サーバーURLが不正です: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("サーバーURLが不正です: %s", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL は接続先を返す
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health はサービスが応答するかを確認する
func (c *Client) Health(ctx context.Context) error {
	var resp generated.HealthResponse
	if err := c.getJSON(ctx, "/health", &resp); err != nil {
		return err
	}
	if resp.Status != generated.Healthy {
		return fmt.Errorf("サービスの状態が異常です: %s", resp.Status)
	}
	return nil
}

// SystemStatus はシステム情報とコントローラー設定を取得する
func (c *Client) SystemStatus(ctx context.Context) (*generated.SystemConfigResponse, error) {
	var resp generated.SystemConfigResponse
	if err := c.getJSON(ctx, "/get_config", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Microscopes は顕微鏡一覧を登録順に取得する
func (c *Client) Microscopes(ctx context.Context) ([]generated.MicroscopeInfo, error) {
	var resp generated.MicroscopeListResponse
	if err := c.getJSON(ctx, "/list_microscopes", &resp); err != nil {
		return nil, err
	}
	return resp.Microscopes, nil
}

// MicroscopeConfig は顕微鏡ごとの設定を取得する
func (c *Client) MicroscopeConfig(ctx context.Context, id string) (*generated.MicroscopeConfig, error) {
	var resp generated.MicroscopeConfigResponse
	if err := c.getJSON(ctx, "/microscope_config/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp.Config, nil
}

// SetLED はLEDの点灯状態を変更する
func (c *Client) SetLED(ctx context.Context, id string, on bool) error {
	return c.postJSON(ctx, "/set_led", generated.SetLedJSONRequestBody{MicroscopeId: id, State: on}, nil)
}

// SetIntensity はLED強度を変更する
func (c *Client) SetIntensity(ctx context.Context, id string, intensity int) error {
	return c.postJSON(ctx, "/set_intensity", generated.SetIntensityJSONRequestBody{MicroscopeId: id, Intensity: intensity}, nil)
}

// SensorData は温湿度の現在値を取得する
func (c *Client) SensorData(ctx context.Context) (*generated.SensorDataResponse, error) {
	var resp generated.SensorDataResponse
	if err := c.getJSON(ctx, "/get_data", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetInterval はサンプリング間隔（秒）を変更する
func (c *Client) SetInterval(ctx context.Context, seconds int) error {
	return c.postJSON(ctx, "/set_interval", generated.SetIntervalJSONRequestBody{Interval: seconds}, nil)
}

// SetImageFolder はサービス側の画像保存先を変更し、サービスのメッセージを返す
func (c *Client) SetImageFolder(ctx context.Context, folder string) (string, error) {
	var resp generated.SuccessResponse
	if err := c.postJSON(ctx, "/set_image_folder", generated.SetImageFolderJSONRequestBody{Folder: folder}, &resp); err != nil {
		return "", err
	}
	if resp.Message == nil {
		return "", nil
	}
	return *resp.Message, nil
}

// CameraStatus はカメラの接続状況を取得する
func (c *Client) CameraStatus(ctx context.Context) (*generated.CameraStatus, error) {
	var resp generated.CameraStatusResponse
	if err := c.getJSON(ctx, "/get_camera_status", &resp); err != nil {
		return nil, err
	}
	return &resp.Status, nil
}

// SensorHistory は保存済みのセンサー履歴を新しい順に取得する
func (c *Client) SensorHistory(ctx context.Context, limit int) ([]generated.SensorHistoryEntry, error) {
	path := "/sensor_history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp generated.SensorHistoryResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Readings, nil
}

// Capture はキャプチャ結果
type Capture struct {
	ID   string // サービス側のキャプチャID
	JPEG []byte
}

// Capture は1フレームを撮影してJPEGを受け取る
func (c *Client) Capture(ctx context.Context, id string) (*Capture, error) {
	resp, err := c.do(ctx, http.MethodGet, "/capture_image/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("画像の受信に失敗: %w", err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/jpeg") {
		return nil, fmt.Errorf("想定外のContent-Typeです: %s", ct)
	}

	return &Capture{ID: resp.Header.Get("X-Capture-Id"), JPEG: data}, nil
}

// SaveCapture はキャプチャをローカルに capture_<id>_<日時>.jpg として保存する
func SaveCapture(dir, id string, data []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("保存先の作成に失敗: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("capture_%s_%s.jpg", id, now.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("画像の保存に失敗: %w", err)
	}
	return path, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}
	return decodeBody(resp.Body, out)
}

// do はリクエストを送り、2xx以外はStatusErrorに変換する
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s に失敗: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}

	var body generated.ErrorResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err == nil && json.Unmarshal(data, &body) == nil {
		se.Code = body.Error
		se.Message = body.Message
	}
	return se
}

func decodeBody(r io.Reader, out any) error {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスの読み込みに失敗: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("レスポンスの解析に失敗: %w", err)
	}
	return nil
}
