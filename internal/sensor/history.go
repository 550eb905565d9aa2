package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// HistoryRecord はバックグラウンドで取得したセンサー値の履歴
type HistoryRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	TakenAt     time.Time `gorm:"index" json:"taken_at"`
}

// Reading は履歴をReadingに変換する
func (h HistoryRecord) Reading() Reading {
	return Reading{Temperature: h.Temperature, Humidity: h.Humidity, Timestamp: h.TakenAt}
}

// HistoryStore はSQLiteに履歴を保存する
type HistoryStore struct {
	db        *gorm.DB
	retention int
}

// OpenHistoryStore はDBを開きテーブルを作成する
// retention が正の場合、それを超えた古い履歴は記録時に削除する
func OpenHistoryStore(path string, retention int) (*HistoryStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("履歴DBのオープンに失敗: %w", err)
	}

	if err := db.AutoMigrate(&HistoryRecord{}); err != nil {
		return nil, fmt.Errorf("履歴テーブルの作成に失敗: %w", err)
	}

	return &HistoryStore{db: db, retention: retention}, nil
}

// Record は読み取り結果を1件保存する
func (s *HistoryStore) Record(ctx context.Context, r Reading) error {
	rec := HistoryRecord{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		TakenAt:     r.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("履歴の保存に失敗: %w", err)
	}

	if s.retention > 0 {
		cutoff := s.db.Model(&HistoryRecord{}).Select("id").Order("id DESC").Limit(1).Offset(s.retention)
		if err := s.db.WithContext(ctx).Where("id <= (?)", cutoff).Delete(&HistoryRecord{}).Error; err != nil {
			return fmt.Errorf("古い履歴の削除に失敗: %w", err)
		}
	}

	return nil
}

// Recent は新しい順に最大limit件の履歴を返す
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]HistoryRecord, error) {
	var records []HistoryRecord
	q := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗: %w", err)
	}
	return records, nil
}

// Count は保存されている履歴の件数を返す
func (s *HistoryStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&HistoryRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("履歴件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Close はDB接続を閉じる
func (s *HistoryStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
