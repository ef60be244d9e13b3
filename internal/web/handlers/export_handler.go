package handlers

import (
	"VideoTagger-admin/internal/export"
	"fmt"
	"log"
	"net/http"
	"time"
)

// exportContentTypes 對應各匯出格式的 Content-Type。
var exportContentTypes = map[string]string{
	export.FormatCSV:   "text/csv; charset=utf-8",
	export.FormatJSON:  "application/json; charset=utf-8",
	export.FormatExcel: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ExportHandler 負責處理驗證紀錄的匯出請求
type ExportHandler struct {
	db DBStore
}

// NewExportHandler 建立一個 ExportHandler 實例
func NewExportHandler(db DBStore) *ExportHandler {
	if db == nil {
		log.Panicln("ExportHandler：DBStore 不得為空")
	}
	return &ExportHandler{
		db: db,
	}
}

// ServeHTTP 實現 http.Handler 介面。
// 支援 ?format=csv|json|xlsx 與 ?schema_id= 篩選；未指定格式時輸出 CSV。
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Printf("資訊：[ExportHandler] 收到請求: %s %s 來自 %s\n", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodGet {
		log.Printf("警告：[ExportHandler] 收到非 GET 請求 (%s)，已拒絕。\n", r.Method)
		http.Error(w, "僅支援 GET 方法", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		log.Printf("警告：[ExportHandler] 收到不支援的匯出格式: %s\n", format)
		http.Error(w, "不支援的匯出格式", http.StatusBadRequest)
		return
	}

	schemaID := r.URL.Query().Get("schema_id")
	records, err := h.db.ListTagRecords(schemaID)
	if err != nil {
		log.Printf("錯誤：[ExportHandler] 從資料庫獲取驗證紀錄失敗: %v", err)
		http.Error(w, "無法獲取匯出數據", http.StatusInternalServerError)
		return
	}
	log.Printf("資訊：[ExportHandler] 將匯出 %d 筆驗證紀錄（格式: %s）。\n", len(records), format)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(format, time.Now())))

	var writeErr error
	switch format {
	case export.FormatCSV:
		writeErr = export.WriteCSV(w, records)
	case export.FormatJSON:
		writeErr = export.WriteJSON(w, records)
	case export.FormatExcel:
		writeErr = export.WriteExcel(w, records)
	}
	if writeErr != nil {
		// 標頭已送出，無法改寫狀態碼，只能記錄
		log.Printf("錯誤：[ExportHandler] 匯出寫出失敗: %v", writeErr)
	}
}
