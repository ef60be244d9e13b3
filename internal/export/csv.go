package export

import (
	"VideoTagger-admin/internal/models"
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV 將驗證紀錄以 CSV 格式寫出。
// 資料欄由 Columns 決定；紀錄缺少的欄位輸出空字串，
// 時間戳欄位不在 CSV 之列（JSON 匯出才帶）。
func WriteCSV(w io.Writer, records []*models.TagRecord) error {
	cols := Columns(records)
	writer := csv.NewWriter(w)
	if err := writer.Write(cols); err != nil {
		return fmt.Errorf("寫入 CSV 標題失敗: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(rowFor(cols, r)); err != nil {
			return fmt.Errorf("寫入影片 '%s' 的 CSV 資料列失敗: %w", r.VideoIdentity, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
