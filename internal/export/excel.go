package export

import (
	"VideoTagger-admin/internal/models"
	"fmt"
	"io"
	"log"

	"github.com/xuri/excelize/v2"
)

// sheetName 是 XLSX 匯出使用的工作表名稱。
const sheetName = "影片標籤"

// WriteExcel 將驗證紀錄寫入 XLSX 工作簿，欄位配置與 CSV 匯出一致。
func WriteExcel(w io.Writer, records []*models.TagRecord) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("警告：[Export] 關閉 XLSX 工作簿失敗: %v\n", err)
		}
	}()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("建立工作表 '%s' 失敗: %w", sheetName, err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("移除預設工作表失敗: %w", err)
	}

	cols := Columns(records)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("寫入 XLSX 標題列失敗: %w", err)
	}
	for i, r := range records {
		row := rowFor(cols, r)
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("計算 XLSX 儲存格座標失敗: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("寫入影片 '%s' 的 XLSX 資料列失敗: %w", r.VideoIdentity, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("輸出 XLSX 工作簿失敗: %w", err)
	}
	return nil
}
