// Package state は実行中に変更される設定（LED状態、間隔、保存先）をJSONファイルに永続化する
//
// 起動時に1回だけ読み込み、変更のたびに書き戻す。スキーマのバージョン管理はせず、
// 未知のキーは無視し、欠けているキーはデフォルト値を使う。
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt は状態ファイルを解析できなかった場合のエラー
var ErrCorrupt = errors.New("状態ファイルが壊れています")

// CameraState は顕微鏡ごとの保存対象
type CameraState struct {
	LEDOn        bool `json:"led_on"`
	LEDIntensity int  `json:"led_intensity"`
}

// File は状態ファイルの内容
type File struct {
	Interval          int                    `json:"interval"`             // サンプリング間隔（秒）
	LEDIntensity      int                    `json:"led_intensity"`        // 全体のLED強度
	LEDState          bool                   `json:"led_state"`            // 全体のLED点灯状態
	LEDAutoOnDuration float64                `json:"led_auto_on_duration"` // 自動撮影時の点灯秒数
	ImageFolder       string                 `json:"image_folder"`
	Cameras           map[string]CameraState `json:"cameras"`
}

// clone はmapを含めてコピーする
func (f File) clone() File {
	c := f
	c.Cameras = make(map[string]CameraState, len(f.Cameras))
	for k, v := range f.Cameras {
		c.Cameras[k] = v
	}
	return c
}

// Store は状態ファイルへの読み書きを直列化する
type Store struct {
	mu   sync.Mutex
	path string
	data File
}

// Load は状態ファイルを読み込む
//
// ファイルが存在しない場合はdefaultsで初期化する。
// 解析に失敗した場合もdefaultsのStoreを返すが、ErrCorruptを含むエラーを併せて返す。
func Load(path string, defaults File) (*Store, error) {
	s := &Store{path: path, data: defaults.clone()}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("状態ファイルの読み込みに失敗: %w", err)
	}

	loaded := defaults.clone()
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return s, fmt.Errorf("%s: %w (%v)", path, ErrCorrupt, err)
	}
	if loaded.Cameras == nil {
		loaded.Cameras = make(map[string]CameraState)
	}
	s.data = loaded

	return s, nil
}

// Get は現在の状態のコピーを返す
func (s *Store) Get() File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.clone()
}

// Update は状態を変更してファイルに書き出す
// メモリ上の状態は書き込みの成否に関わらず更新される。返すエラーは書き込みの失敗のみで、
// 次に書き込みが成功したときにまとめて保存される
func (s *Store) Update(fn func(f *File)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.clone()
	fn(&next)
	s.data = next

	return writeAtomic(s.path, next)
}

// SetCamera は1台分のLED状態を保存する
func (s *Store) SetCamera(id string, cs CameraState) error {
	return s.Update(func(f *File) {
		f.Cameras[id] = cs
	})
}

// Path は状態ファイルのパスを返す
func (s *Store) Path() string {
	return s.path
}

// writeAtomic は一時ファイルに書いてからリネームする
func writeAtomic(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return fmt.Errorf("状態のエンコードに失敗: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("状態ファイルの書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("状態ファイルの書き込みに失敗: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("状態ファイルの置き換えに失敗: %w", err)
	}

	return nil
}
