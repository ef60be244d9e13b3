package services

import (
	"VideoTagger-admin/internal/models"
	"VideoTagger-admin/internal/storage"
	"VideoTagger-admin/internal/web/handlers" // 使用 handlers 中定義的 DBStore 介面
	"errors"
	"fmt"
	"log"
	"time"
)

// ScanService 負責影片庫掃描與登錄邏輯
type ScanService struct {
	db      handlers.DBStore
	library VideoLibrary
}

// NewScanService 建立 ScanService 實例
func NewScanService(db handlers.DBStore, library VideoLibrary) (*ScanService, error) {
	if db == nil {
		return nil, fmt.Errorf("ScanService：DBStore 不得為空")
	}
	if library == nil {
		return nil, fmt.Errorf("ScanService：VideoLibrary 不得為空")
	}
	log.Println("資訊：ScanService 初始化完成。")
	return &ScanService{db: db, library: library}, nil
}

// ExecuteScanPipeline 掃描影片庫，為新發現的影片建立待分析登錄。
// 已登錄過的識別碼不會重複建立；檔案內容變動會產生新識別碼，視為新影片。
func (s *ScanService) ExecuteScanPipeline() error {
	log.Printf("資訊：[ScanService] 開始掃描影片庫於路徑: %s\n", s.library.BasePath())
	infos, err := s.library.Scan()
	if err != nil {
		log.Printf("錯誤：[ScanService] 掃描影片庫失敗: %v\n", err)
		return err
	}

	var newCount, knownCount, failCount int
	for _, info := range infos {
		identity := info.Identity()
		if _, err := s.db.GetVideoByIdentity(identity); err == nil {
			knownCount++
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("錯誤：[ScanService] 查詢影片 '%s' 是否已登錄失敗: %v\n", info.RelativePath, err)
			failCount++
			continue
		}
		video := &models.Video{
			Identity:     identity,
			LibraryPath:  info.RelativePath,
			FileName:     info.FileName,
			SizeBytes:    info.SizeBytes,
			ModTime:      info.ModTime,
			Status:       models.VideoStatusPending,
			RegisteredAt: time.Now(),
		}
		if _, err := s.db.FindOrCreateVideo(video); err != nil {
			log.Printf("錯誤：[ScanService] 登錄影片 '%s' 失敗: %v\n", info.RelativePath, err)
			failCount++
			continue
		}
		log.Printf("資訊：[ScanService] 已登錄新影片: %s (識別碼: %s)\n", info.RelativePath, identity)
		newCount++
	}
	log.Printf("資訊：[ScanService] 掃描完成。新登錄: %d, 既有: %d, 失敗: %d\n", newCount, knownCount, failCount)
	return nil
}

// Run 方法供排程器觸發影片庫掃描
func (s *ScanService) Run() error {
	return s.ExecuteScanPipeline()
}
