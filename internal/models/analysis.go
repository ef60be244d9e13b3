package models

import "time"

// AnalysisRequest 描述一次分析呼叫的輸入，僅在呼叫期間存在。
type AnalysisRequest struct {
	VideoIdentity string `json:"video_identity"`
	SchemaID      string `json:"schema_id"`
	SchemaVersion string `json:"schema_version"`
}

// Key 回傳請求的唯一鍵，同鍵的在途請求會被合流為一次分析。
func (r AnalysisRequest) Key() string {
	return RecordKey(r.VideoIdentity, r.SchemaID, r.SchemaVersion)
}

// AnalysisResponse 是 AI 回傳、尚未驗證的原始欄位對應表。
// 頂層不是物件的回應（例如純字串）不會成為此型別，由驗證器直接判為 Failed。
type AnalysisResponse map[string]any

// VideoOutcome 是批次中單一影片的結果：產生紀錄或是附帶原因的失敗。
// 兩者互斥；Record 為 nil 時 ErrorMessage 必定非空。
type VideoOutcome struct {
	VideoIdentity string     `json:"video_identity"`
	LibraryPath   string     `json:"library_path"`
	Record        *TagRecord `json:"record,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// BatchReport 彙總一次批次分析的所有影片結果。
// 單一影片的失敗只會記在自己的 Outcome 裡，不會中止整個批次。
type BatchReport struct {
	BatchID       string         `json:"batch_id"`
	SchemaID      string         `json:"schema_id"`
	SchemaVersion string         `json:"schema_version"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Outcomes      []VideoOutcome `json:"outcomes"`
}

// Succeeded 回傳產生了紀錄的影片數。
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Record != nil {
			n++
		}
	}
	return n
}

// Failed 回傳未產生紀錄的影片數。
func (r *BatchReport) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
