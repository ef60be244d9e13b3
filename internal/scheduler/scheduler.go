package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler 以 Cron 排程驅動影片庫掃描與影片分析兩個週期任務。
type Scheduler struct {
	cron       *cron.Cron
	scanJob    *ScanJob
	analyzeJob *AnalyzeJob
}

// NewScheduler 依設定檔傳入的 Cron 表達式註冊任務；
// 表達式為空字串的任務不會被排程。
func NewScheduler(
	scanner Runner,
	analyzer Runner,
	scanCronSpec string,
	analyzeCronSpec string,
) *Scheduler {
	c := cron.New(cron.WithSeconds())

	scanJob := NewScanJob(scanner)
	analyzeJob := NewAnalyzeJob(analyzer)

	if scanCronSpec != "" {
		_, err := c.AddJob(scanCronSpec, scanJob)
		if err != nil {
			log.Fatalf("錯誤：無法新增影片庫掃描任務到排程器 (spec: %s): %v", scanCronSpec, err)
		}
		log.Printf("資訊：影片庫掃描任務已註冊，排程：%s\n", scanCronSpec)
	} else {
		log.Println("警告：未提供影片庫掃描任務的 Cron 表達式，該任務將不會被排程。")
	}

	if analyzeCronSpec != "" {
		_, err := c.AddJob(analyzeCronSpec, analyzeJob)
		if err != nil {
			log.Fatalf("錯誤：無法新增影片分析任務到排程器 (spec: %s): %v", analyzeCronSpec, err)
		}
		log.Printf("資訊：影片分析任務已註冊，排程：%s\n", analyzeCronSpec)
	} else {
		log.Println("警告：未提供影片分析任務的 Cron 表達式，該任務將不會被排程。")
	}

	return &Scheduler{
		cron:       c,
		scanJob:    scanJob,
		analyzeJob: analyzeJob,
	}
}

// Start 非阻塞啟動排程器。
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("資訊：排程器已非阻塞啟動 (如果任務已註冊)。")
}

// Stop 等待運行中的任務完成後停止排程器。
func (s *Scheduler) Stop() {
	log.Println("資訊：正在停止排程器...")
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		log.Println("資訊：排程器已優雅停止，所有運行中任務已完成。")
	case <-time.After(10 * time.Second):
		log.Println("警告：排程器停止超時，可能仍有任務在執行。")
	}
}
