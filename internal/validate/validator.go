package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"VideoTagger-admin/internal/models"
)

// Validator 依提示範本逐欄位檢查 AI 回傳的原始回應，產出可持久化的紀錄。
type Validator struct{}

// NewValidator 建立回應驗證器。
func NewValidator() *Validator {
	return &Validator{}
}

// Validate 永不因資料形狀問題回傳錯誤：欄位層級的問題一律收進紀錄的
// Errors 清單並反映在 Status 上。唯一的硬失敗是整個回應不是欄位對應表，
// 此時整筆紀錄標記為 Failed，所有欄位以空值佔位，欄位形狀維持穩定。
// 紀錄的欄位集合永遠等於範本的欄位集合；回應中多出來的鍵一律忽略。
func (v *Validator) Validate(tpl *models.PromptTemplate, raw any) *models.TagRecord {
	now := time.Now()
	record := &models.TagRecord{
		SchemaID:      tpl.ID,
		SchemaVersion: tpl.Version,
		Fields:        make([]models.FieldValue, 0, len(tpl.Fields)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	resp, ok := asFieldMap(raw)
	if !ok {
		for _, f := range tpl.Fields {
			record.Fields = append(record.Fields, models.FieldValue{Name: f.Name, Value: ""})
			if f.Required {
				record.Errors = append(record.Errors, models.FieldError{
					Field:   f.Name,
					Code:    models.ErrCodeMissingRequired,
					Message: "回應不是欄位對應表，必填欄位無值",
				})
			}
		}
		record.Status = models.RecordStatusFailed
		return record
	}

	for _, f := range tpl.Fields {
		value, present := resp[f.Name]
		text := strings.TrimSpace(stringify(value))

		if !present || text == "" {
			// 選填欄位的空字串就是約定的空白哨兵，不算錯誤
			if f.Required {
				msg := "必填欄位為空值"
				if !present {
					msg = "必填欄位未出現在回應中"
				}
				record.Errors = append(record.Errors, models.FieldError{
					Field:   f.Name,
					Code:    models.ErrCodeMissingRequired,
					Message: msg,
				})
			}
			record.Fields = append(record.Fields, models.FieldValue{Name: f.Name, Value: ""})
			continue
		}

		if f.IsEnum() {
			if canonical, matched := f.MatchOption(text); matched {
				text = canonical
			} else {
				// 保留原始值讓操作者能看到並修正，錯誤則留在紀錄上供篩選
				record.Errors = append(record.Errors, models.FieldError{
					Field:   f.Name,
					Code:    models.ErrCodeInvalidEnumValue,
					Message: fmt.Sprintf("值 '%s' 不在允許值清單中", text),
				})
			}
		}
		record.Fields = append(record.Fields, models.FieldValue{Name: f.Name, Value: text})
	}

	if len(record.Errors) == 0 {
		record.Status = models.RecordStatusValid
	} else {
		record.Status = models.RecordStatusPartiallyValid
	}
	return record
}

func asFieldMap(raw any) (models.AnalysisResponse, bool) {
	switch m := raw.(type) {
	case models.AnalysisResponse:
		return m, true
	case map[string]any:
		return models.AnalysisResponse(m), true
	default:
		return nil, false
	}
}

// stringify 將回應值轉為字串。目前所有欄位都是字串語義，
// 模型偶爾仍會回傳數字、布林或清單，這裡做成可讀的字串而不是直接丟棄。
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, strings.TrimSpace(stringify(item)))
		}
		return strings.Join(parts, ", ")
	default:
		if b, err := json.Marshal(val); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", val)
	}
}
