package models

import (
	"fmt"
	"time"
)

// RecordStatus 定義驗證後紀錄的整體狀態
type RecordStatus string

const (
	RecordStatusValid          RecordStatus = "valid"           // 所有欄位皆通過驗證
	RecordStatusPartiallyValid RecordStatus = "partially_valid" // 有欄位層級錯誤，但回應結構完整
	RecordStatusFailed         RecordStatus = "failed"          // 回應根本不是欄位對應表
)

// FieldErrorCode 定義欄位層級的驗證錯誤代碼
type FieldErrorCode string

const (
	ErrCodeMissingRequired  FieldErrorCode = "missing_required"
	ErrCodeInvalidEnumValue FieldErrorCode = "invalid_enum_value"
)

// FieldError 描述單一欄位的驗證問題，隨紀錄一併保存，不作為錯誤往外拋。
type FieldError struct {
	Field   string         `json:"field"`
	Code    FieldErrorCode `json:"code"`
	Message string         `json:"message"`
}

// FieldValue 是紀錄中的一個欄位值，保留範本宣告的順序。
type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TagRecord 對應 tag_records 資料表：一部影片針對一個範本版本的驗證結果。
// 欄位集合固定為產生當下 (schema_id, schema_version) 的欄位定義，
// 範本之後再怎麼修改都不會回頭同步既有紀錄。
type TagRecord struct {
	VideoIdentity string       `json:"video_identity"`
	SchemaID      string       `json:"schema_id"`
	SchemaVersion string       `json:"schema_version"`
	Fields        []FieldValue `json:"fields"`
	Status        RecordStatus `json:"status"`
	Errors        []FieldError `json:"errors,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Key 回傳唯一鍵 (video_identity, schema_id, schema_version) 的字串形式，
// 供記憶體索引與同鍵去重使用。
func (r *TagRecord) Key() string {
	return RecordKey(r.VideoIdentity, r.SchemaID, r.SchemaVersion)
}

// RecordKey 組合紀錄唯一鍵。
func RecordKey(videoIdentity, schemaID, schemaVersion string) string {
	return fmt.Sprintf("%s|%s|%s", videoIdentity, schemaID, schemaVersion)
}

// Value 依欄位名稱取值；欄位不存在於此紀錄時回傳 ok=false。
func (r *TagRecord) Value(name string) (string, bool) {
	for _, fv := range r.Fields {
		if fv.Name == name {
			return fv.Value, true
		}
	}
	return "", false
}
