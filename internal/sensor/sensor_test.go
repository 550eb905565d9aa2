package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeIIO(t *testing.T, dir, temp, hum string) {
	t.Helper()
	if temp != "" {
		if err := os.WriteFile(filepath.Join(dir, "in_temp_input"), []byte(temp), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if hum != "" {
		if err := os.WriteFile(filepath.Join(dir, "in_humidityrelative_input"), []byte(hum), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIIOSensor_Read(t *testing.T) {
	dir := t.TempDir()
	writeIIO(t, dir, "23000\n", "41000\n")

	fixed := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
	s := NewIIOSensor(dir)
	s.now = func() time.Time { return fixed }

	r, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if r.Temperature != 23 || r.Humidity != 41 {
		t.Errorf("値が不正: %+v", r)
	}
	if !r.Timestamp.Equal(fixed) {
		t.Errorf("時刻が不正: %v", r.Timestamp)
	}
}

func TestIIOSensor_TransientFailure(t *testing.T) {
	testCases := []struct {
		name string
		temp string
		hum  string
	}{
		{"温度ファイルなし", "", "41000"},
		{"湿度ファイルなし", "23000", ""},
		{"数値でない", "garbage", "41000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeIIO(t, dir, tc.temp, tc.hum)

			_, err := NewIIOSensor(dir).Read(context.Background())
			if !errors.Is(err, ErrNoReading) {
				t.Errorf("got %v, want ErrNoReading", err)
			}
		})
	}
}

func TestReading_MarshalJSON(t *testing.T) {
	r := Reading{
		Temperature: 22.5,
		Humidity:    55,
		Timestamp:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local),
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["timestamp"] != "2024-01-02 03:04:05" {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
	if got["temperature"] != 22.5 {
		t.Errorf("temperature = %v", got["temperature"])
	}
}

func TestNoneSensor(t *testing.T) {
	if _, err := (NoneSensor{}).Read(context.Background()); !errors.Is(err, ErrNoReading) {
		t.Errorf("got %v, want ErrNoReading", err)
	}
}

func TestMockSensor(t *testing.T) {
	m := NewMockSensor(20, 50)

	r, err := m.Read(context.Background())
	if err != nil || r.Temperature != 20 || r.Humidity != 50 {
		t.Fatalf("Read = %+v, %v", r, err)
	}

	m.SetError(ErrNoReading)
	if _, err := m.Read(context.Background()); !errors.Is(err, ErrNoReading) {
		t.Errorf("got %v", err)
	}
	if m.Reads() != 2 {
		t.Errorf("Reads() = %d", m.Reads())
	}
}

func TestHistoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenHistoryStore(filepath.Join(t.TempDir(), "history.db"), 3)
	if err != nil {
		t.Fatalf("OpenHistoryStore failed: %v", err)
	}
	defer store.Close()

	base := time.Now()
	for i := 0; i < 5; i++ {
		r := Reading{Temperature: float64(20 + i), Humidity: 40, Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	// 保持件数を超えた古い履歴は削除される
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(recent))
	}
	// 新しい順
	if recent[0].Temperature != 24 || recent[1].Temperature != 23 {
		t.Errorf("順序が不正: %+v", recent)
	}
	if recent[0].Reading().Temperature != 24 {
		t.Errorf("Reading() = %+v", recent[0].Reading())
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("len(Recent(0)) = %d, want 3", len(all))
	}
}
