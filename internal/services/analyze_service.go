package services

import (
	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/models"
	"VideoTagger-admin/internal/storage"
	"VideoTagger-admin/internal/web/handlers" // 為了 DBStore 介面
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// pipelineBatchLimit 限制排程器單輪從資料庫撈取的待分析影片數。
const pipelineBatchLimit = 10

// AnalyzeService 負責影片分析的完整流程：
// 組指示、呼叫生成端（含重試）、驗證回應並保存紀錄。
// 同一把 (影片, 範本版本) 鍵的分析在任何時刻最多只有一個在途請求，
// 重複的呼叫會共用同一次結果。
type AnalyzeService struct {
	cfg       *config.Config
	db        handlers.DBStore
	library   VideoLibrary
	gemini    GenerationClient
	builder   InstructionBuilder
	validator RecordValidator
	templates TemplateProvider
	flight    singleflight.Group
}

// NewAnalyzeService 建立 AnalyzeService 實例
func NewAnalyzeService(
	cfg *config.Config,
	db handlers.DBStore,
	library VideoLibrary,
	gemini GenerationClient,
	builder InstructionBuilder,
	validator RecordValidator,
	templates TemplateProvider,
) (*AnalyzeService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("AnalyzeService：設定不得為空")
	}
	if db == nil {
		return nil, fmt.Errorf("AnalyzeService：DBStore 不得為空")
	}
	if library == nil {
		return nil, fmt.Errorf("AnalyzeService：VideoLibrary 不得為空")
	}
	if gemini == nil {
		return nil, fmt.Errorf("AnalyzeService：GenerationClient 不得為空")
	}
	if builder == nil {
		return nil, fmt.Errorf("AnalyzeService：InstructionBuilder 不得為空")
	}
	if validator == nil {
		return nil, fmt.Errorf("AnalyzeService：RecordValidator 不得為空")
	}
	if templates == nil {
		return nil, fmt.Errorf("AnalyzeService：TemplateProvider 不得為空")
	}
	log.Println("資訊：AnalyzeService 初始化完成。")
	return &AnalyzeService{
		cfg:       cfg,
		db:        db,
		library:   library,
		gemini:    gemini,
		builder:   builder,
		validator: validator,
		templates: templates,
	}, nil
}

// AnalyzeVideo 分析單一影片並回傳保存後的紀錄。
// 已存在通過驗證的同鍵紀錄時直接回傳既有紀錄，不會重新呼叫生成端；
// 同鍵的併發呼叫會合流為一次分析。
func (s *AnalyzeService) AnalyzeVideo(ctx context.Context, identity string, tpl *models.PromptTemplate) (*models.TagRecord, error) {
	if identity == "" {
		return nil, fmt.Errorf("影片識別碼不得為空")
	}
	if tpl == nil {
		return nil, fmt.Errorf("欄位範本不得為空")
	}
	req := models.AnalysisRequest{VideoIdentity: identity, SchemaID: tpl.ID, SchemaVersion: tpl.Version}
	v, err, shared := s.flight.Do(req.Key(), func() (any, error) {
		return s.analyzeOne(ctx, identity, tpl)
	})
	if shared {
		log.Printf("資訊：[AnalyzeService] 影片 '%s' 的分析請求與在途請求合流，共用同一次結果。\n", identity)
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.TagRecord), nil
}

// analyzeOne 執行一把鍵的完整分析流程，由 singleflight 保證同鍵僅一個在途。
func (s *AnalyzeService) analyzeOne(ctx context.Context, identity string, tpl *models.PromptTemplate) (*models.TagRecord, error) {
	existing, err := s.db.GetTagRecord(identity, tpl.ID, tpl.Version)
	if err == nil {
		if existing.Status == models.RecordStatusValid {
			log.Printf("資訊：[AnalyzeService] 影片 '%s' 已有通過驗證的紀錄（範本 %s 版本 %s），跳過分析。\n", identity, tpl.ID, tpl.Version)
			return existing, nil
		}
		log.Printf("資訊：[AnalyzeService] 影片 '%s' 的既有紀錄狀態為 %s，將重新分析。\n", identity, existing.Status)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("查詢影片 '%s' 既有紀錄失敗: %w", identity, err)
	}

	video, err := s.db.GetVideoByIdentity(identity)
	if err != nil {
		return nil, fmt.Errorf("查詢影片 '%s' 失敗: %w", identity, err)
	}
	videoPath, err := s.library.Resolve(video.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("解析影片 '%s' 的庫內路徑失敗: %w", video.LibraryPath, err)
	}

	instruction := s.builder.Build(tpl)
	if updErr := s.db.UpdateVideoStatus(identity, models.VideoStatusProcessing, sql.NullTime{}, ""); updErr != nil {
		log.Printf("警告：[AnalyzeService] 更新影片 '%s' 狀態為 processing 失敗: %v\n", identity, updErr)
	}

	raw, attempts, genErr := s.generateWithRetry(ctx, videoPath, instruction)
	currentTime := time.Now()
	analyzedAt := sql.NullTime{Time: currentTime, Valid: true}
	if genErr != nil {
		if ctx.Err() != nil {
			if updErr := s.db.UpdateVideoStatus(identity, models.VideoStatusCanceled, analyzedAt, "分析已取消，本次未完成"); updErr != nil {
				log.Printf("警告：[AnalyzeService] 更新影片 '%s' 狀態為 canceled 失敗: %v\n", identity, updErr)
			}
			return nil, genErr
		}
		failure := &models.AnalysisFailedError{VideoIdentity: identity, Attempts: attempts, Err: genErr}
		log.Printf("錯誤：[AnalyzeService] %v\n", failure)
		if updErr := s.db.UpdateVideoStatus(identity, models.VideoStatusAnalysisFailed, analyzedAt, failure.Error()); updErr != nil {
			log.Printf("警告：[AnalyzeService] 更新影片 '%s' 狀態為 analysis_failed 失敗: %v\n", identity, updErr)
		}
		return nil, failure
	}

	record := s.validator.Validate(tpl, raw)
	record.VideoIdentity = identity
	record.CreatedAt = currentTime
	record.UpdatedAt = currentTime
	if err := s.db.UpsertTagRecord(record); err != nil {
		if updErr := s.db.UpdateVideoStatus(identity, models.VideoStatusAnalysisFailed, analyzedAt, "儲存驗證紀錄失敗: "+err.Error()); updErr != nil {
			log.Printf("警告：[AnalyzeService] 更新影片 '%s' 狀態失敗: %v\n", identity, updErr)
		}
		return nil, fmt.Errorf("儲存影片 '%s' 的驗證紀錄失敗: %w", identity, err)
	}
	if updErr := s.db.UpdateVideoStatus(identity, videoStatusForRecord(record.Status), analyzedAt, errorSummary(record)); updErr != nil {
		log.Printf("警告：[AnalyzeService] 更新影片 '%s' 最終狀態失敗: %v\n", identity, updErr)
	}
	log.Printf("資訊：[AnalyzeService] 影片 '%s' 分析完成，紀錄狀態: %s（共嘗試 %d 次）。\n", identity, record.Status, attempts)
	return record, nil
}

// generateWithRetry 呼叫生成端，暫時性錯誤依指數退避重試，
// 致命錯誤與取消立即放棄。回傳實際嘗試次數供失敗回報使用。
func (s *AnalyzeService) generateWithRetry(ctx context.Context, videoPath string, instruction string) (any, int, error) {
	maxRetries := s.cfg.Analysis.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.backoffDelay(attempt - 1)
			log.Printf("資訊：[AnalyzeService] 第 %d 次重試前等待 %s。\n", attempt, delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, attempts, ctx.Err()
			case <-timer.C:
			}
		}
		attempts++
		raw, err := s.gemini.AnalyzeVideo(ctx, videoPath, instruction)
		if err == nil {
			return raw, attempts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
		if models.IsFatal(err) {
			log.Printf("錯誤：[AnalyzeService] 生成端回報致命錯誤，不再重試: %v\n", err)
			return nil, attempts, lastErr
		}
		log.Printf("警告：[AnalyzeService] 生成端第 %d 次嘗試失敗: %v\n", attempts, err)
	}
	return nil, attempts, lastErr
}

// backoffDelay 計算第 attempt 次失敗後的等待時間：
// 以 base 為底數的指數退避套用上限，再加入抖動避免重試同步。
func (s *AnalyzeService) backoffDelay(attempt int) time.Duration {
	base := time.Duration(s.cfg.Analysis.BackoffBaseMs) * time.Millisecond
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxDelay := time.Duration(s.cfg.Analysis.BackoffCapMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}
	delay := base << attempt
	if delay <= 0 || delay > maxDelay {
		delay = maxDelay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// AnalyzeBatch 對一組影片執行分析，併發數受設定限制。
// 單一影片的失敗只記入該影片的 Outcome，不會中止其他影片的分析。
func (s *AnalyzeService) AnalyzeBatch(ctx context.Context, identities []string, tpl *models.PromptTemplate) (*models.BatchReport, error) {
	if tpl == nil {
		return nil, fmt.Errorf("欄位範本不得為空")
	}
	report := &models.BatchReport{
		BatchID:       uuid.NewString(),
		SchemaID:      tpl.ID,
		SchemaVersion: tpl.Version,
		StartedAt:     time.Now(),
		Outcomes:      make([]models.VideoOutcome, len(identities)),
	}
	limit := s.cfg.Analysis.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	log.Printf("資訊：[AnalyzeService] 批次 %s 開始：%d 部影片，範本 %s 版本 %s，併發上限 %d。\n",
		report.BatchID, len(identities), tpl.ID, tpl.Version, limit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, identity := range identities {
		g.Go(func() error {
			outcome := models.VideoOutcome{VideoIdentity: identity}
			if video, err := s.db.GetVideoByIdentity(identity); err == nil {
				outcome.LibraryPath = video.LibraryPath
			}
			record, err := s.AnalyzeVideo(gctx, identity, tpl)
			if err != nil {
				outcome.ErrorMessage = err.Error()
			} else {
				outcome.Record = record
			}
			report.Outcomes[i] = outcome
			// 一律回傳 nil：批次不因單一影片失敗而中止
			return nil
		})
	}
	g.Wait()
	report.FinishedAt = time.Now()
	log.Printf("資訊：[AnalyzeService] 批次 %s 完成。成功: %d, 失敗: %d\n", report.BatchID, report.Succeeded(), report.Failed())
	return report, nil
}

// ExecuteAnalysisPipeline 從資料庫撈取待分析影片，
// 依目前選用的欄位範本執行一輪批次分析。
func (s *AnalyzeService) ExecuteAnalysisPipeline(ctx context.Context) error {
	log.Println("資訊：[AnalyzeService-Pipeline] 開始執行影片分析流程...")
	tpl, err := s.selectedTemplate()
	if err != nil {
		log.Printf("錯誤：[AnalyzeService-Pipeline] 取得欄位範本失敗: %v\n", err)
		return err
	}
	videos, err := s.db.ListVideos(models.VideoStatusPending, pipelineBatchLimit)
	if err != nil {
		log.Printf("錯誤：[AnalyzeService-Pipeline] 從資料庫獲取待分析影片失敗: %v\n", err)
		return err
	}
	if len(videos) == 0 {
		log.Println("資訊：[AnalyzeService-Pipeline] 資料庫中沒有等待分析的影片 (狀態: pending)。")
		return nil
	}
	identities := make([]string, 0, len(videos))
	for _, v := range videos {
		identities = append(identities, v.Identity)
	}
	_, err = s.AnalyzeBatch(ctx, identities, tpl)
	return err
}

// selectedTemplate 依設定挑選本輪分析使用的欄位範本；
// 未指定時退回範本庫中的第一個。
func (s *AnalyzeService) selectedTemplate() (*models.PromptTemplate, error) {
	if id := s.cfg.Schemas.SelectedID; id != "" {
		return s.templates.Get(id)
	}
	list := s.templates.List()
	if len(list) == 0 {
		return nil, fmt.Errorf("範本庫中沒有任何欄位範本")
	}
	return list[0], nil
}

// Run 方法供排程器觸發完整分析流程
func (s *AnalyzeService) Run() error {
	log.Println("資訊：[AnalyzeService-SchedulerRun] 排程器觸發影片分析流程...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if err := s.ExecuteAnalysisPipeline(ctx); err != nil {
		log.Printf("錯誤：[AnalyzeService-SchedulerRun] 影片分析流程執行期間發生錯誤: %v\n", err)
		return err
	}
	log.Println("資訊：[AnalyzeService-SchedulerRun] 影片分析流程執行完成。")
	return nil
}

// videoStatusForRecord 將紀錄狀態映射為影片狀態。
func videoStatusForRecord(status models.RecordStatus) models.VideoStatus {
	switch status {
	case models.RecordStatusValid:
		return models.VideoStatusCompleted
	case models.RecordStatusPartiallyValid:
		return models.VideoStatusPartiallyValid
	default:
		return models.VideoStatusValidationFailed
	}
}

// errorSummary 將紀錄中的欄位錯誤濃縮為一句狀態訊息。
func errorSummary(record *models.TagRecord) string {
	if len(record.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%d 個欄位未通過驗證", len(record.Errors))
}
