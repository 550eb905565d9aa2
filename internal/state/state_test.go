package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func defaults() File {
	return File{
		Interval:          5,
		LEDIntensity:      50,
		LEDAutoOnDuration: 1,
		ImageFolder:       "microscope_captures",
		Cameras:           map[string]CameraState{},
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Load(path, defaults())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := s.Get()
	if got.Interval != 5 || got.LEDIntensity != 50 {
		t.Errorf("デフォルト値が使われていません: %+v", got)
	}
	// 読み込みだけではファイルを作らない
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("Loadでファイルが作成されました")
	}
}

func TestLoad_PartialAndUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	raw := `{"interval": 30, "future_key": true, "cameras": {"microscope_1": {"led_on": true, "led_intensity": 80}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, defaults())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := s.Get()
	if got.Interval != 30 {
		t.Errorf("Interval = %d, want 30", got.Interval)
	}
	if got.LEDIntensity != 50 || got.ImageFolder != "microscope_captures" {
		t.Errorf("欠けたキーがデフォルトになっていません: %+v", got)
	}
	if cs := got.Cameras["microscope_1"]; !cs.LEDOn || cs.LEDIntensity != 80 {
		t.Errorf("カメラ設定が読み込まれていません: %+v", cs)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, defaults())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("got %v, want ErrCorrupt", err)
	}
	if s == nil || s.Get().Interval != 5 {
		t.Error("壊れたファイルでもデフォルト値のStoreが返るべきです")
	}
}

func TestUpdate_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, _ := Load(path, defaults())

	if err := s.SetCamera("microscope_2", CameraState{LEDOn: true, LEDIntensity: 70}); err != nil {
		t.Fatalf("SetCamera failed: %v", err)
	}
	if err := s.Update(func(f *File) { f.Interval = 12 }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("書き出したJSONが不正: %v", err)
	}
	if onDisk["interval"] != float64(12) {
		t.Errorf("interval = %v", onDisk["interval"])
	}

	reloaded, err := Load(path, defaults())
	if err != nil {
		t.Fatal(err)
	}
	if cs := reloaded.Get().Cameras["microscope_2"]; !cs.LEDOn || cs.LEDIntensity != 70 {
		t.Errorf("再読み込み後のカメラ設定が不正: %+v", cs)
	}

	// 一時ファイルが残っていない
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("余分なファイルがあります: %v", entries)
	}
}

func TestUpdate_WriteFailureKeepsMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "state.json")
	s, _ := Load(path, defaults())

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(func(f *File) { f.Interval = 99 }); err == nil {
		t.Fatal("存在しないディレクトリへの書き込みでエラーが期待されました")
	}
	if got := s.Get().Interval; got != 99 {
		t.Errorf("書き込み失敗後もメモリ上の状態は更新されるべき: %d", got)
	}

	// ディレクトリが戻れば次の更新でまとめて保存される
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(func(f *File) { f.LEDIntensity = 70 }); err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(path, defaults())
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Get(); got.Interval != 99 || got.LEDIntensity != 70 {
		t.Errorf("保存された状態 = %+v", got)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "state.json"), defaults())

	f := s.Get()
	f.Cameras["microscope_1"] = CameraState{LEDOn: true}

	if _, ok := s.Get().Cameras["microscope_1"]; ok {
		t.Error("Getの戻り値の変更がStoreに反映されました")
	}
}
