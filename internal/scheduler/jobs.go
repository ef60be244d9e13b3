package scheduler

import (
	"log"
)

// Runner 是排程任務背後的實際工作，由各服務的 Run 方法實現。
type Runner interface {
	Run() error
}

// ScanJob 是一個排程任務，用於執行影片庫掃描
type ScanJob struct {
	scanner Runner
}

// NewScanJob 建立一個 ScanJob
func NewScanJob(scanner Runner) *ScanJob {
	return &ScanJob{scanner: scanner}
}

// Run 實現 cron.Job 介面 (github.com/robfig/cron/v3)
func (j *ScanJob) Run() {
	log.Println("資訊：執行排程任務 - 影片庫掃描...")
	if err := j.scanner.Run(); err != nil {
		log.Printf("錯誤：影片庫掃描排程任務執行失敗: %v", err)
	} else {
		log.Println("資訊：影片庫掃描排程任務執行完成。")
	}
}

// AnalyzeJob 是一個排程任務，用於執行影片分析
type AnalyzeJob struct {
	analyzer Runner
}

// NewAnalyzeJob 建立一個 AnalyzeJob
func NewAnalyzeJob(analyzer Runner) *AnalyzeJob {
	return &AnalyzeJob{analyzer: analyzer}
}

// Run 實現 cron.Job 介面
func (j *AnalyzeJob) Run() {
	log.Println("資訊：執行排程任務 - 影片分析...")
	if err := j.analyzer.Run(); err != nil {
		log.Printf("錯誤：影片分析排程任務執行失敗: %v", err)
	} else {
		log.Println("資訊：影片分析排程任務執行完成。")
	}
}
