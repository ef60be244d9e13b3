package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VideoTagger-admin/internal/models"
)

const sampleDoc = `{
  "fields": {
    "Name of AnimationFile": {"description": "動畫檔案的名稱", "type": "string", "required": true},
    "Loopable": {"description": "動作是否可循環", "type": "string", "required": true, "options": ["Yes", "No"]},
    "Tempo Speed": {"description": "動作節奏", "type": "string", "required": false, "options": ["Slow", "Normal", "Fast"]},
    "Motion Description": {"description": "動作內容描述", "type": "string", "required": false}
  }
}`

func TestLoadParsesTemplateInDocumentOrder(t *testing.T) {
	r := NewRegistry()
	tpl, err := r.Load("animation_tags", strings.NewReader(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "animation_tags", tpl.ID)
	assert.NotEmpty(t, tpl.Version)
	assert.Equal(t,
		[]string{"Name of AnimationFile", "Loopable", "Tempo Speed", "Motion Description"},
		tpl.FieldNames())

	loopable, ok := tpl.Field("Loopable")
	require.True(t, ok)
	assert.True(t, loopable.Required)
	assert.True(t, loopable.IsEnum())
	assert.Equal(t, []string{"Yes", "No"}, loopable.Options)

	desc, ok := tpl.Field("Motion Description")
	require.True(t, ok)
	assert.False(t, desc.Required)
	assert.False(t, desc.IsEnum())
}

func TestFingerprintIgnoresFormattingAndSources(t *testing.T) {
	compact := `{"fields":{"A":{"description":"甲","type":"string","required":true},"B":{"description":"乙","type":"string","required":false,"options":["x","y"]}}}`
	spaced := `{
		"fields": {
			"A":   { "required": true,  "type": "string", "description": "甲" },
			"B":   { "options": ["x", "y"], "type": "string", "required": false, "description": "乙" }
		}
	}`

	r := NewRegistry()
	t1, err := r.Load("one", strings.NewReader(compact))
	require.NoError(t, err)
	t2, err := r.Load("two", strings.NewReader(spaced))
	require.NoError(t, err)

	assert.Equal(t, t1.Version, t2.Version, "欄位內容相同的範本必須得到相同指紋")
}

func TestFingerprintChangesWithFieldContribution(t *testing.T) {
	base := []models.FieldDefinition{
		{Name: "A", Type: models.FieldTypeString, Required: true},
		{Name: "B", Type: models.FieldTypeString, Required: false, Options: []string{"x", "y"}},
	}
	requiredFlipped := []models.FieldDefinition{
		{Name: "A", Type: models.FieldTypeString, Required: false},
		{Name: "B", Type: models.FieldTypeString, Required: false, Options: []string{"x", "y"}},
	}
	optionAdded := []models.FieldDefinition{
		{Name: "A", Type: models.FieldTypeString, Required: true},
		{Name: "B", Type: models.FieldTypeString, Required: false, Options: []string{"x", "y", "z"}},
	}
	reordered := []models.FieldDefinition{base[1], base[0]}

	fp := Fingerprint(base)
	assert.Equal(t, fp, Fingerprint(base))
	assert.NotEqual(t, fp, Fingerprint(requiredFlipped))
	assert.NotEqual(t, fp, Fingerprint(optionAdded))
	assert.NotEqual(t, fp, Fingerprint(reordered))
}

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"不是 JSON":       `{{{`,
		"頂層不是物件":        `["fields"]`,
		"缺少 fields":     `{"title": "x"}`,
		"fields 不是物件":   `{"fields": "x"}`,
		"fields 沒有任何欄位": `{"fields": {}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Load("broken", strings.NewReader(doc))
			require.Error(t, err)
			var pe *SchemaParseError
			assert.ErrorAs(t, err, &pe)
			assert.True(t, IsSchemaError(err))
		})
	}
}

func TestLoadRejectsIllegalFieldDefinitions(t *testing.T) {
	cases := map[string]string{
		"options 為空清單": `{"fields": {"A": {"description": "甲", "type": "string", "required": true, "options": []}}}`,
		"必填欄位缺少描述":     `{"fields": {"A": {"type": "string", "required": true}}}`,
		"缺少 type":      `{"fields": {"A": {"description": "甲", "required": true}}}`,
		"缺少 required":  `{"fields": {"A": {"description": "甲", "type": "string"}}}`,
		"不支援的型別":       `{"fields": {"A": {"description": "甲", "type": "number", "required": true}}}`,
		"欄位名稱重複":       `{"fields": {"A": {"description": "甲", "type": "string", "required": true}, "A": {"description": "乙", "type": "string", "required": true}}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Load("broken", strings.NewReader(doc))
			require.Error(t, err)
			var fe *SchemaFieldError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestOptionalFieldMayOmitDescription(t *testing.T) {
	doc := `{"fields": {"A": {"type": "string", "required": false}}}`
	r := NewRegistry()
	tpl, err := r.Load("optional", strings.NewReader(doc))
	require.NoError(t, err)
	f, ok := tpl.Field("A")
	require.True(t, ok)
	assert.Empty(t, f.Description)
}

func TestGetReturnsNotFoundForUnknownID(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestLoadReplacesTemplateWithSameID(t *testing.T) {
	r := NewRegistry()
	_, err := r.Load("tpl", strings.NewReader(`{"fields": {"A": {"description": "甲", "type": "string", "required": true}}}`))
	require.NoError(t, err)
	v2, err := r.Load("tpl", strings.NewReader(`{"fields": {"A": {"description": "甲", "type": "string", "required": true}, "B": {"description": "乙", "type": "string", "required": false}}}`))
	require.NoError(t, err)

	got, err := r.Get("tpl")
	require.NoError(t, err)
	assert.Equal(t, v2.Version, got.Version)
	assert.Len(t, r.List(), 1)
	assert.Len(t, got.Fields, 2)
}

func TestLoadDirSkipsBrokenTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(sampleDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"fields": {}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("不是範本"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))

	assert.Len(t, r.List(), 1)
	_, err := r.Get("good")
	assert.NoError(t, err)
	_, err = r.Get("bad")
	assert.Error(t, err)
}

func TestWatcherReloadsEditedTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tpl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fields": {"A": {"description": "甲", "type": "string", "required": true}}}`), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))
	before, err := r.Get("tpl")
	require.NoError(t, err)

	w, err := NewWatcher(r, dir)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	edited := `{"fields": {"A": {"description": "甲", "type": "string", "required": true}, "B": {"description": "乙", "type": "string", "required": false}}}`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	assert.Eventually(t, func() bool {
		tpl, err := r.Get("tpl")
		return err == nil && tpl.Version != before.Version && len(tpl.Fields) == 2
	}, 5*time.Second, 100*time.Millisecond, "編輯後的範本應在去抖動時間內重新載入")
}
