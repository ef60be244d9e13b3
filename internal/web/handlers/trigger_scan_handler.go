package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
)

// ScanRunner 是手動觸發影片庫掃描所需的最小介面
type ScanRunner interface {
	Run() error
}

// TriggerScanHandler 負責手動觸發影片庫掃描
type TriggerScanHandler struct {
	scanService ScanRunner
	mu          sync.Mutex
	isScanning  bool
}

// NewTriggerScanHandler 建立一個 TriggerScanHandler 實例
func NewTriggerScanHandler(ss ScanRunner) *TriggerScanHandler {
	if ss == nil {
		log.Panicln("TriggerScanHandler：ScanRunner 不得為空")
	}
	return &TriggerScanHandler{
		scanService: ss,
	}
}

// ServeHTTP 實現 http.Handler 介面
func (h *TriggerScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Printf("資訊：[TriggerScanHandler] 收到請求: %s %s 來自 %s\n", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodPost {
		log.Printf("警告：[TriggerScanHandler] 收到非 POST 請求 (%s)，已拒絕。\n", r.Method)
		http.Error(w, "僅支援 POST 方法", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	if h.isScanning {
		h.mu.Unlock()
		log.Println("警告：[TriggerScanHandler] 影片庫掃描已在進行中，拒絕新的觸發。")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict) // 409 Conflict
		json.NewEncoder(w).Encode(map[string]string{"error": "掃描任務已在進行中，請稍候。"})
		return
	}
	h.isScanning = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			h.isScanning = false
			h.mu.Unlock()
			log.Println("資訊：[TriggerScanHandler] 手動觸發的掃描任務 goroutine 已結束。")
		}()

		log.Println("資訊：[TriggerScanHandler] 開始執行手動觸發的影片庫掃描...")
		if err := h.scanService.Run(); err != nil {
			log.Printf("錯誤：[TriggerScanHandler] 手動觸發的影片庫掃描執行失敗: %v", err)
		} else {
			log.Println("資訊：[TriggerScanHandler] 手動觸發的影片庫掃描執行成功。")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "影片庫掃描已觸發，正在背景執行。"})
}
