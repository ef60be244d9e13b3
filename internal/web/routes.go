package web

import (
	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/web/handlers"
	"log"
	"net/http"
)

// SetupRouter 組裝管理介面的所有路由
func SetupRouter(
	appConfig *config.Config,
	db handlers.DBStore,
	schemas handlers.SchemaProvider,
	scanService handlers.ScanRunner,
	analyzeService handlers.AnalyzeRunner,
) http.Handler {
	mux := http.NewServeMux()
	templateBasePath := "internal/web/templates"

	// Dashboard Handler
	dashboardHandler, err := handlers.NewDashboardHandler(db, schemas, appConfig.Schemas.SelectedID, templateBasePath)
	if err != nil {
		log.Fatalf("錯誤：無法建立 Dashboard Handler: %v", err)
	}
	mux.Handle("/dashboard", dashboardHandler)

	// 手動觸發掃描與分析的路由
	if scanService == nil {
		log.Panicln("SetupRouter：ScanRunner 不得為空")
	}
	if analyzeService == nil {
		log.Panicln("SetupRouter：AnalyzeRunner 不得為空")
	}
	mux.Handle("/scan", handlers.NewTriggerScanHandler(scanService))
	mux.Handle("/analyze", handlers.NewTriggerAnalysisHandler(analyzeService))

	// 匯出處理器
	exportHandler := handlers.NewExportHandler(db)
	mux.Handle("/export", exportHandler)

	// 欄位範本查詢 API
	schemaHandler := handlers.NewSchemaHandler(schemas)
	mux.Handle("/schemas", schemaHandler)
	mux.Handle("/schemas/", schemaHandler)

	// 影片串流服務路由
	videoHandler, err := handlers.NewVideoHandler(appConfig.Library)
	if err != nil {
		log.Fatalf("錯誤：無法建立 Video Handler: %v", err)
	}
	// http.StripPrefix 移除 "/media/" 前綴後，剩餘路徑即為庫內相對路徑
	mux.Handle("/media/", http.StripPrefix("/media/", videoHandler))

	// 根路徑導向儀表板，其餘未匹配的路由回 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		log.Printf("警告：未匹配的路由: %s", r.URL.Path)
		http.NotFound(w, r)
	})

	log.Println("資訊：HTTP 路由設定完成。")
	return mux
}
