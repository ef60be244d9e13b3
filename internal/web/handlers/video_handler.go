package handlers

import (
	"VideoTagger-admin/internal/config"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// VideoHandler 負責提供影片庫檔案的串流
type VideoHandler struct {
	libraryBasePath string // 影片庫的絕對根路徑
}

// NewVideoHandler 建立一個 VideoHandler 實例
func NewVideoHandler(libCfg config.LibraryConfig) (*VideoHandler, error) {
	if libCfg.VideoPath == "" {
		return nil, fmt.Errorf("VideoHandler: 影片庫設定中的 videoPath 不得為空")
	}
	absBasePath, err := filepath.Abs(libCfg.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("VideoHandler: 無法取得影片庫 videoPath 的絕對路徑 '%s': %w", libCfg.VideoPath, err)
	}
	log.Printf("資訊：[VideoHandler] 初始化成功，影片服務根路徑: %s", absBasePath)
	return &VideoHandler{libraryBasePath: absBasePath}, nil
}

// ServeHTTP 實現 http.Handler 介面。
// 搭配 http.StripPrefix("/media/", ...) 掛載，
// 收到的 URL 路徑即為影片在庫內的相對路徑。
func (h *VideoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	relativePath := strings.TrimPrefix(r.URL.Path, "/")
	if relativePath == "" || strings.HasSuffix(relativePath, "/") {
		http.Error(w, "無效的影片路徑", http.StatusBadRequest)
		return
	}

	// filepath.Join 會清理路徑；Abs 之後再驗證仍在根路徑下，防止路徑遍歷
	fullPath := filepath.Join(h.libraryBasePath, filepath.FromSlash(relativePath))
	cleanedFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		log.Printf("錯誤：[VideoHandler] 無法解析影片絕對路徑 '%s': %v", fullPath, err)
		http.Error(w, "內部伺服器錯誤", http.StatusInternalServerError)
		return
	}
	if cleanedFullPath != h.libraryBasePath && !strings.HasPrefix(cleanedFullPath, h.libraryBasePath+string(os.PathSeparator)) {
		log.Printf("警告：[VideoHandler] 偵測到潛在的路徑遍歷嘗試: '%s' (解析為 '%s')", relativePath, cleanedFullPath)
		http.Error(w, "禁止存取", http.StatusForbidden)
		return
	}

	if _, err := os.Stat(cleanedFullPath); os.IsNotExist(err) {
		log.Printf("錯誤：[VideoHandler] 請求的影片檔案不存在: %s", cleanedFullPath)
		http.NotFound(w, r)
		return
	} else if err != nil {
		log.Printf("錯誤：[VideoHandler] 檢查影片檔案 '%s' 時發生錯誤: %v", cleanedFullPath, err)
		http.Error(w, "內部伺服器錯誤", http.StatusInternalServerError)
		return
	}

	log.Printf("資訊：[VideoHandler] 正在提供影片: %s", cleanedFullPath)
	// http.ServeFile 會自動處理 Content-Type、ETag 與 Range 請求
	http.ServeFile(w, r, cleanedFullPath)
}
