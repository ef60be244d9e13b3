package models

import "strings"

// FieldType 定義欄位的型別。目前僅有字串語義，列舉欄位以 Options 是否存在區分；
// 保留此型別是為了日後擴充其他欄位型別時不需改動既有範本。
type FieldType string

const (
	FieldTypeString FieldType = "string"
)

// FieldDefinition 描述提示範本中的單一欄位。載入後不可變更。
type FieldDefinition struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"` // 僅列舉欄位使用，順序即宣告順序
}

// IsEnum 回報此欄位是否限定於列舉值。
func (f FieldDefinition) IsEnum() bool {
	return len(f.Options) > 0
}

// MatchOption 以不分大小寫的方式比對列舉值；
// 比對成功時回傳範本中宣告的原始寫法，讓儲存值的大小寫一致。
func (f FieldDefinition) MatchOption(value string) (string, bool) {
	for _, opt := range f.Options {
		if strings.EqualFold(opt, value) {
			return opt, true
		}
	}
	return "", false
}

// PromptTemplate 是一份使用者編輯的提示範本：依宣告順序排列的欄位定義，
// 加上由欄位內容計算出的版本指紋。範本載入後唯讀，編輯檔案會產生新版本。
type PromptTemplate struct {
	ID      string            `json:"id"`
	Version string            `json:"version"`
	Fields  []FieldDefinition `json:"fields"`
}

// Field 依名稱取得欄位定義。
func (t *PromptTemplate) Field(name string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// FieldNames 依範本順序回傳所有欄位名稱。
func (t *PromptTemplate) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}
