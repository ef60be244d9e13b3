package export

import (
	"VideoTagger-admin/internal/models"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// 支援的匯出格式名稱，與 HTTP 查詢參數及設定檔共用。
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatExcel = "xlsx"
)

// identityColumns 為每次匯出固定打頭的識別欄位。
var identityColumns = []string{"video_identity", "schema_id", "schema_version", "status"}

// Columns 計算匯出資料欄：識別欄位之後，依紀錄出現順序
// 與各紀錄自身的欄位宣告順序，聯集所有出現過的欄位名稱。
// 不同範本版本的紀錄混在一起時，舊版紀錄缺少的欄位留空即可。
func Columns(records []*models.TagRecord) []string {
	cols := make([]string, len(identityColumns), len(identityColumns)+8)
	copy(cols, identityColumns)
	seen := make(map[string]bool)
	for _, r := range records {
		for _, fv := range r.Fields {
			if !seen[fv.Name] {
				seen[fv.Name] = true
				cols = append(cols, fv.Name)
			}
		}
	}
	return cols
}

// rowFor 將單筆紀錄攤平成與 cols 對齊的一列字串。
func rowFor(cols []string, r *models.TagRecord) []string {
	row := make([]string, len(cols))
	row[0] = r.VideoIdentity
	row[1] = r.SchemaID
	row[2] = r.SchemaVersion
	row[3] = string(r.Status)
	for i := len(identityColumns); i < len(cols); i++ {
		if v, ok := r.Value(cols[i]); ok {
			row[i] = v
		}
	}
	return row
}

// Filename 依格式產生帶時間戳的匯出檔名。
func Filename(format string, at time.Time) string {
	return fmt.Sprintf("analysis_results_%s.%s", at.Format("20060102_150405"), format)
}

// WriteFile 將紀錄匯出為指定格式的檔案，回傳寫出的完整路徑。
func WriteFile(dir string, format string, records []*models.TagRecord) (string, error) {
	writeFn, err := writerFor(format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("建立匯出目錄 '%s' 失敗: %w", dir, err)
	}
	path := filepath.Join(dir, Filename(format, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("建立匯出檔案 '%s' 失敗: %w", path, err)
	}
	if err := writeFn(f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("關閉匯出檔案 '%s' 失敗: %w", path, err)
	}
	return path, nil
}

// writerFor 依格式名稱挑選對應的匯出函式。
func writerFor(format string) (func(io.Writer, []*models.TagRecord) error, error) {
	switch format {
	case FormatCSV:
		return WriteCSV, nil
	case FormatJSON:
		return WriteJSON, nil
	case FormatExcel:
		return WriteExcel, nil
	}
	return nil, fmt.Errorf("不支援的匯出格式: %s", format)
}
