package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VideoTagger-admin/internal/models"
)

func catalogTemplate() *models.PromptTemplate {
	return &models.PromptTemplate{
		ID:      "animation_tags",
		Version: "fp0001",
		Fields: []models.FieldDefinition{
			{Name: "Name of AnimationFile", Description: "動畫檔案的名稱", Type: models.FieldTypeString, Required: true},
			{Name: "Loopable", Description: "動作是否可循環", Type: models.FieldTypeString, Required: true, Options: []string{"Yes", "No"}},
			{Name: "Tempo Speed", Description: "動作節奏", Type: models.FieldTypeString, Required: false, Options: []string{"Slow", "Normal", "Fast"}},
			{Name: "Motion Description", Description: "動作內容描述", Type: models.FieldTypeString, Required: false},
		},
	}
}

func fieldError(rec *models.TagRecord, field string) (models.FieldError, bool) {
	for _, fe := range rec.Errors {
		if fe.Field == field {
			return fe, true
		}
	}
	return models.FieldError{}, false
}

func TestValidateAcceptsWellFormedResponse(t *testing.T) {
	v := NewValidator()
	rec := v.Validate(catalogTemplate(), map[string]any{
		"Name of AnimationFile": "  walk_cycle_01  ",
		"Loopable":              "yes",
		"Tempo Speed":           "Normal",
		"Motion Description":    "緩慢步行，重心左右交替",
	})

	assert.Equal(t, models.RecordStatusValid, rec.Status)
	assert.Empty(t, rec.Errors)

	name, _ := rec.Value("Name of AnimationFile")
	assert.Equal(t, "walk_cycle_01", name, "字串欄位必須去除前後空白")

	loop, _ := rec.Value("Loopable")
	assert.Equal(t, "Yes", loop, "列舉值不分大小寫比對後，儲存範本宣告的寫法")
}

func TestValidateMissingRequiredKeepsPlaceholder(t *testing.T) {
	v := NewValidator()
	rec := v.Validate(catalogTemplate(), map[string]any{
		"Loopable":           "No",
		"Motion Description": "跳躍",
	})

	assert.NotEqual(t, models.RecordStatusValid, rec.Status)
	fe, ok := fieldError(rec, "Name of AnimationFile")
	require.True(t, ok, "必填欄位缺值必須記錄錯誤")
	assert.Equal(t, models.ErrCodeMissingRequired, fe.Code)

	val, present := rec.Value("Name of AnimationFile")
	assert.True(t, present, "欄位即使缺值也要以佔位形式留在紀錄中")
	assert.Equal(t, "", val)
	assert.Len(t, rec.Fields, 4, "欄位集合必須與範本一致")
}

func TestValidateRequiredPresentButEmptyIsMissing(t *testing.T) {
	v := NewValidator()
	rec := v.Validate(catalogTemplate(), map[string]any{
		"Name of AnimationFile": "   ",
		"Loopable":              "No",
	})

	fe, ok := fieldError(rec, "Name of AnimationFile")
	require.True(t, ok)
	assert.Equal(t, models.ErrCodeMissingRequired, fe.Code)
	assert.Equal(t, models.RecordStatusPartiallyValid, rec.Status)
}

func TestValidateMissingOptionalIsNotAnError(t *testing.T) {
	v := NewValidator()
	rec := v.Validate(catalogTemplate(), map[string]any{
		"Name of AnimationFile": "run_01",
		"Loopable":              "Yes",
	})

	assert.Equal(t, models.RecordStatusValid, rec.Status)
	tempo, present := rec.Value("Tempo Speed")
	assert.True(t, present)
	assert.Equal(t, "", tempo)
}

func TestValidateUnknownEnumValueIsKeptRaw(t *testing.T) {
	tpl := &models.PromptTemplate{
		ID:      "loop_only",
		Version: "fp0002",
		Fields: []models.FieldDefinition{
			{Name: "Loopable", Description: "動作是否可循環", Type: models.FieldTypeString, Required: true, Options: []string{"Yes", "No"}},
		},
	}
	v := NewValidator()
	rec := v.Validate(tpl, map[string]any{"Loopable": "Maybe"})

	assert.Equal(t, models.RecordStatusPartiallyValid, rec.Status)
	fe, ok := fieldError(rec, "Loopable")
	require.True(t, ok)
	assert.Equal(t, models.ErrCodeInvalidEnumValue, fe.Code)

	val, _ := rec.Value("Loopable")
	assert.Equal(t, "Maybe", val, "不在清單中的值必須原樣保留供操作者檢視")
}

func TestValidateNonMappingResponseFailsWholeRecord(t *testing.T) {
	v := NewValidator()
	tpl := catalogTemplate()

	for name, raw := range map[string]any{
		"純字串": "這部影片是一段步行動作",
		"純數字": 42.0,
		"清單":  []any{"a", "b"},
		"空回應": nil,
	} {
		t.Run(name, func(t *testing.T) {
			rec := v.Validate(tpl, raw)
			assert.Equal(t, models.RecordStatusFailed, rec.Status)
			require.Len(t, rec.Fields, len(tpl.Fields))
			for _, fv := range rec.Fields {
				assert.Equal(t, "", fv.Value, "欄位 %s 必須以空值佔位", fv.Name)
			}
			_, ok := fieldError(rec, "Name of AnimationFile")
			assert.True(t, ok, "必填欄位應帶有缺值錯誤")
		})
	}
}

func TestValidateIgnoresKeysOutsideTemplate(t *testing.T) {
	v := NewValidator()
	rec := v.Validate(catalogTemplate(), map[string]any{
		"Name of AnimationFile": "idle_01",
		"Loopable":              "Yes",
		"自作主張的欄位":               "多餘的值",
	})

	assert.Len(t, rec.Fields, 4)
	_, present := rec.Value("自作主張的欄位")
	assert.False(t, present)
	assert.Equal(t, models.RecordStatusValid, rec.Status)
}

func TestValidateStringifiesNonStringValues(t *testing.T) {
	tpl := &models.PromptTemplate{
		ID:      "typed",
		Version: "fp0003",
		Fields: []models.FieldDefinition{
			{Name: "Count", Description: "數量", Type: models.FieldTypeString, Required: true},
			{Name: "Scenes", Description: "適用場景", Type: models.FieldTypeString, Required: false},
			{Name: "Flag", Description: "旗標", Type: models.FieldTypeString, Required: false},
		},
	}
	v := NewValidator()
	rec := v.Validate(tpl, map[string]any{
		"Count":  3.0,
		"Scenes": []any{"戰鬥", "探索", "過場"},
		"Flag":   true,
	})

	count, _ := rec.Value("Count")
	assert.Equal(t, "3", count)
	scenes, _ := rec.Value("Scenes")
	assert.Equal(t, "戰鬥, 探索, 過場", scenes)
	flag, _ := rec.Value("Flag")
	assert.Equal(t, "true", flag)
	assert.Equal(t, models.RecordStatusValid, rec.Status)
}

func TestValidateStampsSchemaIdentity(t *testing.T) {
	v := NewValidator()
	rec := v.Validate(catalogTemplate(), map[string]any{
		"Name of AnimationFile": "x",
		"Loopable":              "No",
	})
	assert.Equal(t, "animation_tags", rec.SchemaID)
	assert.Equal(t, "fp0001", rec.SchemaVersion)
	assert.False(t, rec.CreatedAt.IsZero())
}
