package handlers

import (
	"VideoTagger-admin/internal/models"
	"VideoTagger-admin/internal/schema"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

// SchemaSummary 是範本清單中的單筆摘要
type SchemaSummary struct {
	ID         string `json:"id"`
	Version    string `json:"version"`
	FieldCount int    `json:"field_count"`
}

// SchemaDetail 是單一範本的完整欄位定義
type SchemaDetail struct {
	ID      string                   `json:"id"`
	Version string                   `json:"version"`
	Fields  []models.FieldDefinition `json:"fields"`
}

// SchemaHandler 提供欄位範本的查詢 API
type SchemaHandler struct {
	schemas SchemaProvider
}

// NewSchemaHandler 建立一個 SchemaHandler 實例
func NewSchemaHandler(schemas SchemaProvider) *SchemaHandler {
	if schemas == nil {
		log.Panicln("SchemaHandler：SchemaProvider 不得為空")
	}
	return &SchemaHandler{schemas: schemas}
}

// ServeHTTP 實現 http.Handler 介面。
// GET /schemas 回傳全部範本摘要；GET /schemas/{id} 回傳單一範本的欄位定義。
func (h *SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Printf("資訊：[SchemaHandler] 收到請求: %s %s\n", r.Method, r.URL.Path)
	if r.Method != http.MethodGet {
		http.Error(w, "僅支援 GET 方法", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/schemas"), "/")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if id == "" {
		list := h.schemas.List()
		summaries := make([]SchemaSummary, 0, len(list))
		for _, tpl := range list {
			summaries = append(summaries, SchemaSummary{ID: tpl.ID, Version: tpl.Version, FieldCount: len(tpl.Fields)})
		}
		json.NewEncoder(w).Encode(summaries)
		return
	}

	tpl, err := h.schemas.Get(id)
	if err != nil {
		if errors.Is(err, schema.ErrTemplateNotFound) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "找不到指定的欄位範本"})
			return
		}
		log.Printf("錯誤：[SchemaHandler] 查詢範本 '%s' 失敗: %v", id, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "查詢範本失敗"})
		return
	}
	json.NewEncoder(w).Encode(SchemaDetail{ID: tpl.ID, Version: tpl.Version, Fields: tpl.Fields})
}
