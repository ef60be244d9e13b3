package services

import (
	"VideoTagger-admin/internal/models"
	"context"
)

// VideoLibrary 介面定義了影片庫的掃描與路徑解析操作
type VideoLibrary interface {
	Scan() ([]models.VideoFileInfo, error)
	Resolve(relativePath string) (string, error)
	BasePath() string
}

// GenerationClient 介面定義向生成端送出影片分析請求的操作，
// 回傳解碼後的 JSON 值（可能不是欄位對應表，由驗證流程判定）。
type GenerationClient interface {
	AnalyzeVideo(ctx context.Context, videoPath string, instruction string) (any, error)
}

// InstructionBuilder 介面將欄位範本組合為自然語言產生指示
type InstructionBuilder interface {
	Build(tpl *models.PromptTemplate) string
}

// RecordValidator 介面將原始回應對照範本驗證為結構化紀錄
type RecordValidator interface {
	Validate(tpl *models.PromptTemplate, raw any) *models.TagRecord
}

// TemplateProvider 介面提供目前載入的欄位範本
type TemplateProvider interface {
	Get(id string) (*models.PromptTemplate, error)
	List() []*models.PromptTemplate
}
