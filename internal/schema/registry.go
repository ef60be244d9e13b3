package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"VideoTagger-admin/internal/models"
)

// Registry 負責載入、驗證並索引提示範本。
// 載入完成後的範本唯讀；編輯檔案重新載入會產生帶新指紋的新範本。
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*models.PromptTemplate
	order     []string // 載入順序，讓 List 的輸出穩定
}

// NewRegistry 建立空的範本註冊表。
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*models.PromptTemplate)}
}

// LoadDir 載入目錄下所有 *.json 範本。單一範本載入失敗只記錄警告並跳過，
// 不影響其他範本；回傳錯誤僅代表目錄本身無法讀取。
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("無法讀取提示範本目錄 '%s': %w", dir, err)
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := r.LoadFile(path); err != nil {
			log.Printf("警告：[SchemaRegistry] 載入範本 '%s' 失敗: %v", path, err)
			continue
		}
		loaded++
	}
	log.Printf("資訊：[SchemaRegistry] 已從 '%s' 載入 %d 份提示範本。", dir, loaded)
	return nil
}

// LoadFile 載入單一範本檔，範本 ID 取自檔名（不含副檔名）。
func (r *Registry) LoadFile(path string) (*models.PromptTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("無法開啟範本檔 '%s': %w", path, err)
	}
	defer f.Close()
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return r.Load(id, f)
}

// Load 解析並驗證一份範本文件，成功後以 ID 納入索引；同 ID 的舊範本會被整份取代。
func (r *Registry) Load(id string, src io.Reader) (*models.PromptTemplate, error) {
	fields, err := parseDocument(id, src)
	if err != nil {
		return nil, err
	}
	tpl := &models.PromptTemplate{ID: id, Version: Fingerprint(fields), Fields: fields}

	r.mu.Lock()
	if _, exists := r.templates[id]; !exists {
		r.order = append(r.order, id)
	}
	r.templates[id] = tpl
	r.mu.Unlock()
	return tpl, nil
}

// Get 依 ID 取得範本；不存在時回傳包裝了 ErrTemplateNotFound 的錯誤。
func (r *Registry) Get(id string) (*models.PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("提示範本 '%s': %w", id, ErrTemplateNotFound)
	}
	return tpl, nil
}

// List 依載入順序回傳所有範本。
func (r *Registry) List() []*models.PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.PromptTemplate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.templates[id])
	}
	return out
}

// Remove 自索引移除範本，對應範本檔被刪除的情況。既有紀錄不受影響。
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return
	}
	delete(r.templates, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Fingerprint 對欄位集合計算確定性的版本指紋。
// 參與雜湊的是依序的 (name, type, required, options) 資訊，
// 與檔案格式、空白或 description 措辭無關；
// 兩份欄位內容相同的範本必定得到相同指紋。
func Fingerprint(fields []models.FieldDefinition) string {
	h := sha256.New()
	for _, f := range fields {
		io.WriteString(h, f.Name)
		io.WriteString(h, "\x1f")
		io.WriteString(h, string(f.Type))
		io.WriteString(h, "\x1f")
		if f.Required {
			io.WriteString(h, "1")
		} else {
			io.WriteString(h, "0")
		}
		for _, opt := range f.Options {
			io.WriteString(h, "\x1f")
			io.WriteString(h, opt)
		}
		io.WriteString(h, "\x1e")
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// fieldSpec 對應範本文件中單一欄位的原始內容。
// 以指標區分「鍵不存在」與「值為零值」；Options 以 nil 與空 slice 區分
// 「未宣告」與「宣告了空清單」。
type fieldSpec struct {
	Description *string  `json:"description"`
	Type        *string  `json:"type"`
	Required    *bool    `json:"required"`
	Options     []string `json:"options"`
}

// parseDocument 以串流方式解析範本文件，保留 fields 物件中欄位的宣告順序。
// encoding/json 的一般 map 解法會打亂鍵順序，而文件中的順序就是範本順序，
// 因此這裡必須逐 token 讀取。
func parseDocument(source string, src io.Reader) ([]models.FieldDefinition, error) {
	dec := json.NewDecoder(src)

	tok, err := dec.Token()
	if err != nil {
		return nil, &SchemaParseError{Source: source, Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &SchemaParseError{Source: source, Err: errors.New("頂層必須是 JSON 物件")}
	}

	var fields []models.FieldDefinition
	foundFields := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &SchemaParseError{Source: source, Err: err}
		}
		key, _ := keyTok.(string)
		if key != "fields" {
			// 其他頂層區塊（例如說明文字）直接略過，保持向前相容
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, &SchemaParseError{Source: source, Err: err}
			}
			continue
		}
		foundFields = true
		fields, err = parseFields(source, dec)
		if err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, &SchemaParseError{Source: source, Err: err}
	}

	if !foundFields {
		return nil, &SchemaParseError{Source: source, Err: errors.New("缺少 fields 區塊")}
	}
	if len(fields) == 0 {
		return nil, &SchemaParseError{Source: source, Err: errors.New("fields 不含任何欄位定義")}
	}
	return fields, nil
}

func parseFields(source string, dec *json.Decoder) ([]models.FieldDefinition, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, &SchemaParseError{Source: source, Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &SchemaParseError{Source: source, Err: errors.New("fields 必須是物件")}
	}

	var fields []models.FieldDefinition
	seen := make(map[string]bool)
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, &SchemaParseError{Source: source, Err: err}
		}
		name, _ := nameTok.(string)
		if strings.TrimSpace(name) == "" {
			return nil, &SchemaFieldError{Source: source, Field: name, Reason: "欄位名稱不得為空白"}
		}
		if seen[name] {
			return nil, &SchemaFieldError{Source: source, Field: name, Reason: "欄位名稱重複"}
		}
		seen[name] = true

		var spec fieldSpec
		if err := dec.Decode(&spec); err != nil {
			return nil, &SchemaParseError{Source: source, Err: fmt.Errorf("欄位 '%s' 的定義無法解析: %w", name, err)}
		}
		def, err := spec.toDefinition(source, name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, def)
	}
	if _, err := dec.Token(); err != nil {
		return nil, &SchemaParseError{Source: source, Err: err}
	}
	return fields, nil
}

func (s fieldSpec) toDefinition(source, name string) (models.FieldDefinition, error) {
	var def models.FieldDefinition
	if s.Type == nil {
		return def, &SchemaFieldError{Source: source, Field: name, Reason: "缺少 type"}
	}
	if models.FieldType(*s.Type) != models.FieldTypeString {
		return def, &SchemaFieldError{Source: source, Field: name, Reason: fmt.Sprintf("不支援的欄位型別 '%s'", *s.Type)}
	}
	if s.Required == nil {
		return def, &SchemaFieldError{Source: source, Field: name, Reason: "缺少 required"}
	}
	if s.Options != nil && len(s.Options) == 0 {
		return def, &SchemaFieldError{Source: source, Field: name, Reason: "options 不得為空清單"}
	}
	description := ""
	if s.Description != nil {
		description = strings.TrimSpace(*s.Description)
	}
	if *s.Required && description == "" {
		return def, &SchemaFieldError{Source: source, Field: name, Reason: "必填欄位缺少 description"}
	}

	def = models.FieldDefinition{
		Name:        name,
		Description: description,
		Type:        models.FieldType(*s.Type),
		Required:    *s.Required,
		Options:     s.Options,
	}
	return def, nil
}
