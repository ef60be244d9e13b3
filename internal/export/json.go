package export

import (
	"VideoTagger-admin/internal/models"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Document 是 JSON 匯出的頂層結構。
// 與 CSV 不同，JSON 匯出完整保留每筆紀錄的建立與更新時間。
type Document struct {
	ExportedAt time.Time           `json:"exported_at"`
	Count      int                 `json:"count"`
	Records    []*models.TagRecord `json:"records"`
}

// WriteJSON 將驗證紀錄以縮排 JSON 文件格式寫出。
func WriteJSON(w io.Writer, records []*models.TagRecord) error {
	if records == nil {
		records = []*models.TagRecord{}
	}
	doc := Document{
		ExportedAt: time.Now(),
		Count:      len(records),
		Records:    records,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("編碼 JSON 匯出文件失敗: %w", err)
	}
	return nil
}
