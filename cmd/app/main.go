package main

import (
	"VideoTagger-admin/internal/clients/gemini"
	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/prompt"
	"VideoTagger-admin/internal/scheduler"
	"VideoTagger-admin/internal/schema"
	"VideoTagger-admin/internal/services"
	"VideoTagger-admin/internal/storage/library"
	"VideoTagger-admin/internal/storage/mysql"
	"VideoTagger-admin/internal/validate"
	"VideoTagger-admin/internal/web"
	"VideoTagger-admin/internal/web/handlers"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load("./configs", "config")
	if err != nil {
		log.Fatalf("錯誤：無法載入設定: %v", err)
	}
	log.Println("資訊：應用程式設定載入成功。")

	// 資料庫遷移
	migrationPath := "file://scripts/migrate/mysql"
	dbDSNForMigrate := fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	log.Printf("資訊：準備執行資料庫遷移，來源: %s, DSN 使用資料庫: %s", migrationPath, cfg.Database.DBName)
	m, err := migrate.New(migrationPath, dbDSNForMigrate)
	if err != nil {
		log.Fatalf("錯誤：建立遷移實例失敗: %v", err)
	}
	currentVersion, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		log.Fatalf("錯誤：獲取資料庫遷移版本失敗: %v", err)
	}
	if dirty {
		log.Fatalf("錯誤：資料庫處於 dirty 狀態 (版本 %d)，遷移失敗。", currentVersion)
	}
	log.Printf("資訊：目前資料庫版本: %d。開始應用遷移...", currentVersion)
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("錯誤：執行資料庫遷移 (m.Up) 失敗: %v", err)
	} else if err == migrate.ErrNoChange {
		log.Println("資訊：資料庫結構已是最新，無需遷移。")
	} else {
		newVersion, _, _ := m.Version()
		log.Printf("資訊：資料庫遷移成功完成，版本更新至: %d。", newVersion)
	}

	videoLibrary, err := library.NewFileSystemLibrary(cfg.Library)
	if err != nil {
		log.Fatalf("錯誤：初始化影片庫失敗: %v", err)
	}

	var dbStore handlers.DBStore
	realDBStore, err := mysql.NewMySQLStore(cfg.Database)
	if err != nil {
		log.Fatalf("錯誤：初始化 MySQL 資料庫連線失敗: %v", err)
	}
	dbStore = realDBStore
	defer realDBStore.Close()

	geminiClient, err := gemini.NewClient(cfg.Gemini)
	if err != nil {
		log.Fatalf("錯誤：初始化 Gemini 客戶端失敗: %v", err)
	}
	defer geminiClient.Close()

	registry := schema.NewRegistry()
	if err := registry.LoadDir(cfg.Schemas.Dir); err != nil {
		log.Fatalf("錯誤：載入提示範本目錄失敗: %v", err)
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	if cfg.Schemas.WatchEnabled {
		watcher, err := schema.NewWatcher(registry, cfg.Schemas.Dir)
		if err != nil {
			log.Printf("警告：無法監看提示範本目錄，編輯範本需重啟才會生效: %v", err)
		} else {
			watcher.Start(appCtx)
		}
	} else {
		log.Println("資訊：提示範本目錄監看已在設定檔中禁用。")
	}

	scanSvc, err := services.NewScanService(dbStore, videoLibrary)
	if err != nil {
		log.Fatalf("錯誤：初始化影片庫掃描服務失敗: %v", err)
	}
	analyzeSvc, err := services.NewAnalyzeService(cfg, dbStore, videoLibrary, geminiClient, prompt.NewBuilder(), validate.NewValidator(), registry)
	if err != nil {
		log.Fatalf("錯誤：初始化影片分析服務失敗: %v", err)
	}

	if cfg.Scheduler.Enabled {
		log.Println("資訊：排程器已在設定檔中啟用，正在初始化...")
		appScheduler := scheduler.NewScheduler(
			scanSvc,
			analyzeSvc,
			cfg.Scheduler.ScanCronSpec,
			cfg.Scheduler.AnalyzeCronSpec,
		)
		appScheduler.Start()
		log.Println("資訊：排程器已啟動。")
		defer appScheduler.Stop()
	} else {
		log.Println("資訊：排程器已在設定檔中禁用。")
	}

	router := web.SetupRouter(cfg, dbStore, registry, scanSvc, analyzeSvc)
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("資訊：HTTP 伺服器正在監聽 %s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("錯誤：HTTP 伺服器監聽失敗: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("資訊：收到關閉訊號，正在關閉應用程式...")
	cancelApp()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("錯誤：HTTP 伺服器優雅關閉失敗: %v", err)
	}
	log.Println("資訊：HTTP 伺服器已關閉。")
	log.Println("資訊：應用程式已成功關閉。")
}
