package handlers

import (
	"VideoTagger-admin/internal/models"
	"database/sql"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"time"
)

// DBStore 定義了應用程式需要的資料庫操作介面
type DBStore interface {
	UpsertTagRecord(record *models.TagRecord) error
	GetTagRecord(videoIdentity, schemaID, schemaVersion string) (*models.TagRecord, error)
	ListTagRecords(schemaID string) ([]*models.TagRecord, error)
	FindOrCreateVideo(video *models.Video) (int64, error)
	UpdateVideoStatus(identity string, status models.VideoStatus, analyzedAt sql.NullTime, errorMessage string) error
	GetVideoByIdentity(identity string) (*models.Video, error)
	ListVideos(status models.VideoStatus, limit int) ([]*models.Video, error)
	Close() error
}

// SchemaProvider 定義了頁面與 API 需要的範本查詢介面
type SchemaProvider interface {
	Get(id string) (*models.PromptTemplate, error)
	List() []*models.PromptTemplate
}

// dashboardVideoLimit 限制儀表板單頁顯示的影片數。
const dashboardVideoLimit = 50

// DashboardPageData 用於傳遞給 HTML 範本的數據
type DashboardPageData struct {
	SchemaID      string
	SchemaVersion string
	FieldNames    []string
	Videos        []VideoDisplayData
	GeneratedAt   time.Time
}

// VideoDisplayData 用於在範本中顯示的影片數據
type VideoDisplayData struct {
	ID           int64
	Identity     string
	LibraryPath  string
	FileName     string
	SizeBytes    int64
	Status       models.VideoStatus
	ErrorMessage models.JsonNullString
	RegisteredAt time.Time
	AnalyzedAt   sql.NullTime
	Record       *RecordDisplayData
}

// RecordDisplayData 是影片對應目前範本的驗證紀錄顯示資料
type RecordDisplayData struct {
	Status        models.RecordStatus
	SchemaVersion string
	Stale         bool // 紀錄產生時的範本版本與目前載入的版本不同
	Values        []models.FieldValue
	Errors        []models.FieldError
}

// DashboardHandler 負責處理儀表板頁面的請求
type DashboardHandler struct {
	db         DBStore
	schemas    SchemaProvider
	selectedID string
	tpl        *template.Template
}

// NewDashboardHandler 建立一個 DashboardHandler 實例
func NewDashboardHandler(db DBStore, schemas SchemaProvider, selectedID string, templateBasePath string) (*DashboardHandler, error) {
	if db == nil {
		return nil, fmt.Errorf("DBStore 不得為 nil")
	}
	if schemas == nil {
		return nil, fmt.Errorf("SchemaProvider 不得為 nil")
	}
	tplPath := filepath.Join(templateBasePath, "dashboard.html")
	tpl, err := template.ParseFiles(tplPath)
	if err != nil {
		return nil, fmt.Errorf("無法解析儀表板範本 '%s': %w", tplPath, err)
	}
	return &DashboardHandler{db: db, schemas: schemas, selectedID: selectedID, tpl: tpl}, nil
}

// currentTemplate 取得目前選用的欄位範本；未指定時退回範本庫中的第一個。
func (h *DashboardHandler) currentTemplate() (*models.PromptTemplate, error) {
	if h.selectedID != "" {
		return h.schemas.Get(h.selectedID)
	}
	list := h.schemas.List()
	if len(list) == 0 {
		return nil, fmt.Errorf("範本庫中沒有任何欄位範本")
	}
	return list[0], nil
}

// ServeHTTP 實現 http.Handler 介面
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Printf("資訊：收到 %s %s 請求\n", r.Method, r.URL.Path)
	schemaTpl, err := h.currentTemplate()
	if err != nil {
		log.Printf("錯誤：[DashboardHandler] 取得欄位範本失敗: %v", err)
		http.Error(w, "無法載入欄位範本", http.StatusInternalServerError)
		return
	}
	videos, err := h.db.ListVideos("", dashboardVideoLimit)
	if err != nil {
		log.Printf("錯誤：從資料庫獲取影片數據失敗: %v", err)
		http.Error(w, "無法載入儀表板數據", http.StatusInternalServerError)
		return
	}
	records, err := h.db.ListTagRecords(schemaTpl.ID)
	if err != nil {
		log.Printf("錯誤：從資料庫獲取驗證紀錄失敗: %v", err)
		http.Error(w, "無法載入儀表板數據", http.StatusInternalServerError)
		return
	}

	// 每部影片挑一筆紀錄顯示：目前範本版本的優先，否則取最近一筆。
	recordMap := make(map[string]*models.TagRecord)
	for _, rec := range records {
		existing, ok := recordMap[rec.VideoIdentity]
		if !ok || existing.SchemaVersion != schemaTpl.Version {
			recordMap[rec.VideoIdentity] = rec
		}
	}

	displayData := make([]VideoDisplayData, 0, len(videos))
	for _, v := range videos {
		item := VideoDisplayData{
			ID:           v.ID,
			Identity:     v.Identity,
			LibraryPath:  v.LibraryPath,
			FileName:     v.FileName,
			SizeBytes:    v.SizeBytes,
			Status:       v.Status,
			ErrorMessage: v.ErrorMessage,
			RegisteredAt: v.RegisteredAt,
			AnalyzedAt:   v.AnalyzedAt,
		}
		if rec, ok := recordMap[v.Identity]; ok {
			item.Record = &RecordDisplayData{
				Status:        rec.Status,
				SchemaVersion: rec.SchemaVersion,
				Stale:         rec.SchemaVersion != schemaTpl.Version,
				Values:        rec.Fields,
				Errors:        rec.Errors,
			}
		}
		displayData = append(displayData, item)
	}

	data := DashboardPageData{
		SchemaID:      schemaTpl.ID,
		SchemaVersion: schemaTpl.Version,
		FieldNames:    schemaTpl.FieldNames(),
		Videos:        displayData,
		GeneratedAt:   time.Now(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tpl.Execute(w, data); err != nil {
		log.Printf("錯誤：渲染儀表板範本失敗: %v", err)
	}
}
