package models

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// VideoStatus 定義影片在分析流程中的狀態
type VideoStatus string

const (
	VideoStatusPending          VideoStatus = "pending"           // 已登錄，等待分析
	VideoStatusProcessing       VideoStatus = "processing"        // 正在進行影片內容分析
	VideoStatusCompleted        VideoStatus = "completed"         // 分析完成且所有欄位通過驗證
	VideoStatusPartiallyValid   VideoStatus = "partially_valid"   // 分析完成但存在欄位層級錯誤
	VideoStatusValidationFailed VideoStatus = "validation_failed" // 回應無法解析為欄位對應表
	VideoStatusAnalysisFailed   VideoStatus = "analysis_failed"   // 重試耗盡或致命錯誤，未產生紀錄
	VideoStatusCanceled         VideoStatus = "canceled"          // 批次被取消，本次未分析
)

// Video 對應 videos 資料表：影片庫中一個已登錄的影片檔案。
// Identity 由路徑、大小與修改時間計算而得，檔案內容變動會產生新的 Identity。
type Video struct {
	ID           int64          `json:"id"`
	Identity     string         `json:"identity"`
	LibraryPath  string         `json:"library_path"` // 相對於影片庫根目錄的路徑
	FileName     string         `json:"file_name"`
	SizeBytes    int64          `json:"size_bytes"`
	ModTime      time.Time      `json:"mod_time"`
	Status       VideoStatus    `json:"status"`
	ErrorMessage JsonNullString `json:"error_message"`
	RegisteredAt time.Time      `json:"registered_at"`
	AnalyzedAt   sql.NullTime   `json:"analyzed_at"`
}

// VideoFileInfo 是影片庫掃描到的單一檔案資訊，尚未登錄進資料庫。
type VideoFileInfo struct {
	AbsolutePath string
	RelativePath string
	FileName     string
	SizeBytes    int64
	ModTime      time.Time
}

// Identity 由庫內相對路徑、檔案大小與修改時間計算穩定識別碼。
// 檔案內容變動（大小或時間改變）會得到新的識別碼，視為新的可分析單位。
func (f VideoFileInfo) Identity() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", f.RelativePath, f.SizeBytes, f.ModTime.Unix())))
	return hex.EncodeToString(h[:])[:32]
}
