package handlers

import (
	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/models"
	"VideoTagger-admin/internal/schema"
	"VideoTagger-admin/internal/storage/memory"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestDoc = `{
  "fields": {
    "Name of AnimationFile": {"description": "動畫檔案的名稱", "type": "string", "required": true},
    "Loopable": {"description": "動作是否可循環", "type": "string", "required": false, "options": ["Yes", "No"]}
  }
}`

// blockingRunner 模擬執行中會停住的管線，用來驗證忙碌旗標的互斥行為。
type blockingRunner struct {
	release chan struct{}
	calls   atomic.Int32
}

func (r *blockingRunner) Run() error {
	r.calls.Add(1)
	<-r.release
	return nil
}

func newRegistryWithTemplate(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	_, err := r.Load("animation_tags", strings.NewReader(handlerTestDoc))
	require.NoError(t, err)
	return r
}

func seedStoreWithRecord(t *testing.T) *memory.Store {
	t.Helper()
	db := memory.NewStore()
	require.NoError(t, db.UpsertTagRecord(&models.TagRecord{
		VideoIdentity: "vid-aaa",
		SchemaID:      "animation_tags",
		SchemaVersion: "1111111111111111",
		Status:        models.RecordStatusValid,
		Fields: []models.FieldValue{
			{Name: "Name of AnimationFile", Value: "walk_cycle"},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}))
	return db
}

func TestTriggerHandlersRejectOverlappingRuns(t *testing.T) {
	cases := map[string]func(*blockingRunner) http.Handler{
		"scan":    func(r *blockingRunner) http.Handler { return NewTriggerScanHandler(r) },
		"analyze": func(r *blockingRunner) http.Handler { return NewTriggerAnalysisHandler(r) },
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &blockingRunner{release: make(chan struct{})}
			h := build(runner)

			first := httptest.NewRecorder()
			h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/", nil))
			require.Equal(t, http.StatusOK, first.Code)
			var accepted map[string]string
			require.NoError(t, json.Unmarshal(first.Body.Bytes(), &accepted))
			assert.NotEmpty(t, accepted["message"])

			second := httptest.NewRecorder()
			h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.Equal(t, http.StatusConflict, second.Code, "背景任務執行中必須拒絕重複觸發")
			var rejected map[string]string
			require.NoError(t, json.Unmarshal(second.Body.Bytes(), &rejected))
			assert.NotEmpty(t, rejected["error"])

			close(runner.release)
			assert.Eventually(t, func() bool {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
				return rec.Code == http.StatusOK
			}, 2*time.Second, 20*time.Millisecond, "任務結束後應可再次觸發")
			assert.Eventually(t, func() bool {
				return runner.calls.Load() >= 2
			}, 2*time.Second, 20*time.Millisecond)
		})
	}
}

func TestTriggerHandlersRejectNonPost(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	close(runner.release)
	for _, h := range []http.Handler{NewTriggerScanHandler(runner), NewTriggerAnalysisHandler(runner)} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	}
	assert.Zero(t, runner.calls.Load(), "被拒絕的請求不得啟動任何背景任務")
}

func TestSchemaHandlerListsLoadedTemplates(t *testing.T) {
	h := NewSchemaHandler(newRegistryWithTemplate(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schemas", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var list []SchemaSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "animation_tags", list[0].ID)
	assert.Equal(t, 2, list[0].FieldCount)
	assert.NotEmpty(t, list[0].Version)
}

func TestSchemaHandlerReturnsTemplateDetail(t *testing.T) {
	h := NewSchemaHandler(newRegistryWithTemplate(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schemas/animation_tags", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var detail SchemaDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "animation_tags", detail.ID)
	require.Len(t, detail.Fields, 2)
	assert.Equal(t, "Name of AnimationFile", detail.Fields[0].Name)

	missing := httptest.NewRecorder()
	h.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/schemas/nope", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestExportHandlerStreamsCSVAttachment(t *testing.T) {
	h := NewExportHandler(seedStoreWithRecord(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0], "Name of AnimationFile")
	assert.Contains(t, rows[1], "walk_cycle")
}

func TestExportHandlerRejectsUnknownFormatAndMethod(t *testing.T) {
	h := NewExportHandler(seedStoreWithRecord(t))

	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	post := httptest.NewRecorder()
	h.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/export", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestVideoHandlerServesLibraryFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "walk.mp4"), []byte("影片資料"), 0o644))

	vh, err := NewVideoHandler(config.LibraryConfig{VideoPath: dir})
	require.NoError(t, err)
	h := http.StripPrefix("/media/", vh)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/walk.mp4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "影片資料", rec.Body.String())

	missing := httptest.NewRecorder()
	h.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/media/nope.mp4", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestVideoHandlerBlocksPathTraversal(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "library")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("機密"), 0o644))

	vh, err := NewVideoHandler(config.LibraryConfig{VideoPath: dir})
	require.NoError(t, err)
	h := http.StripPrefix("/media/", vh)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/../secret.txt", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code, "跳脫影片庫根目錄的路徑必須被拒絕")
}

func TestDashboardHandlerRendersVideosWithDriftMarker(t *testing.T) {
	db := memory.NewStore()
	registry := newRegistryWithTemplate(t)
	current, err := registry.Get("animation_tags")
	require.NoError(t, err)

	_, err = db.FindOrCreateVideo(&models.Video{Identity: "vid-fresh", LibraryPath: "clips/walk.mp4", FileName: "walk.mp4", SizeBytes: 9, ModTime: time.Now()})
	require.NoError(t, err)
	require.NoError(t, db.UpsertTagRecord(&models.TagRecord{
		VideoIdentity: "vid-fresh",
		SchemaID:      "animation_tags",
		SchemaVersion: current.Version,
		Status:        models.RecordStatusValid,
		Fields:        []models.FieldValue{{Name: "Name of AnimationFile", Value: "walk_cycle"}, {Name: "Loopable", Value: "Yes"}},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}))
	require.NoError(t, db.UpdateVideoStatus("vid-fresh", models.VideoStatusCompleted, sql.NullTime{Time: time.Now(), Valid: true}, ""))

	_, err = db.FindOrCreateVideo(&models.Video{Identity: "vid-stale", LibraryPath: "clips/run.mp4", FileName: "run.mp4", SizeBytes: 9, ModTime: time.Now()})
	require.NoError(t, err)
	require.NoError(t, db.UpsertTagRecord(&models.TagRecord{
		VideoIdentity: "vid-stale",
		SchemaID:      "animation_tags",
		SchemaVersion: "0000000000000000",
		Status:        models.RecordStatusValid,
		Fields:        []models.FieldValue{{Name: "Name of AnimationFile", Value: "run_cycle"}},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}))

	h, err := NewDashboardHandler(db, registry, "animation_tags", "../templates")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "animation_tags")
	assert.Contains(t, body, "Name of AnimationFile", "表頭必須列出範本欄位")
	assert.Contains(t, body, "walk_cycle")
	assert.Contains(t, body, "status-completed")
	assert.Contains(t, body, "與目前範本不同", "舊版紀錄必須顯示版本漂移提示")
}

func TestNewDashboardHandlerRejectsMissingTemplateFile(t *testing.T) {
	_, err := NewDashboardHandler(memory.NewStore(), newRegistryWithTemplate(t), "", t.TempDir())
	assert.Error(t, err)
}
