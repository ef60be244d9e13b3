package gemini

import (
	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client 結構用於與 Gemini API 互動
type Client struct {
	sdk          *genai.Client
	model        *genai.GenerativeModel
	limiter      *rate.Limiter
	inlineLimit  int64
	pollInterval time.Duration
	pollMaxTries int
}

// NewClient 建立一個 Gemini 客戶端實例
func NewClient(cfg config.GeminiConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key 不得為空")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-pro-latest"
		log.Printf("警告：[Gemini Client] 未提供影片分析模型名稱，使用預設值: %s\n", modelName)
	}

	ctx := context.Background()
	genaiSDKClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("無法建立 Gemini GenAI SDK 客戶端: %w", err)
	}

	vidModel := genaiSDKClient.GenerativeModel(modelName)
	var videoGenConfig genai.GenerationConfig
	videoGenConfig.ResponseMIMEType = "application/json"
	vidModel.GenerationConfig = videoGenConfig
	log.Printf("資訊：[Gemini Client] 影片分析模型 '%s' 初始化成功。\n", modelName)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
		log.Printf("資訊：[Gemini Client] 請求速率上限設定為每分鐘 %d 次。\n", cfg.RequestsPerMinute)
	}

	pollInterval := time.Duration(cfg.UploadPollSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	pollMaxTries := cfg.UploadPollMaxTries
	if pollMaxTries <= 0 {
		pollMaxTries = 30
	}

	return &Client{
		sdk:          genaiSDKClient,
		model:        vidModel,
		limiter:      limiter,
		inlineLimit:  cfg.InlineFileLimitMB * 1024 * 1024,
		pollInterval: pollInterval,
		pollMaxTries: pollMaxTries,
	}, nil
}

// Close 釋放底層的 SDK 連線。
func (c *Client) Close() error {
	return c.sdk.Close()
}

// AnalyzeVideo 向 Gemini API 發送影片和產生指示，回傳解碼後的 JSON 值。
// 回傳值可能是欄位對應表，也可能是模型偏離指示時產生的其他 JSON 型別，
// 由呼叫端的驗證流程決定如何記錄。
func (c *Client) AnalyzeVideo(ctx context.Context, videoPath string, instruction string) (any, error) {
	log.Printf("資訊：[Gemini Client] AnalyzeVideo - 開始分析影片: %s\n", videoPath)
	log.Printf("資訊：[Gemini Client] AnalyzeVideo - 使用產生指示 (前100字元): %s...\n", firstNChars(instruction, 100))
	if strings.TrimSpace(instruction) == "" {
		return nil, &models.FatalError{Err: fmt.Errorf("影片分析的產生指示不得為空")}
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, &models.FatalError{Err: fmt.Errorf("讀取影片檔案 %s 資訊失敗: %w", videoPath, err)}
	}
	videoMIMEType := mimeTypeForPath(videoPath)
	log.Printf("資訊：[Gemini Client] 使用影片 MIME 類型: %s\n", videoMIMEType)

	var videoFilePart genai.Part
	if c.inlineLimit > 0 && info.Size() > c.inlineLimit {
		uploaded, err := c.uploadVideo(ctx, videoPath, videoMIMEType)
		if err != nil {
			return nil, err
		}
		defer func() {
			if delErr := c.sdk.DeleteFile(context.Background(), uploaded.Name); delErr != nil {
				log.Printf("警告：[Gemini Client] 刪除已上傳的暫存檔 '%s' 失敗: %v\n", uploaded.Name, delErr)
			}
		}()
		videoFilePart = genai.FileData{MIMEType: uploaded.MIMEType, URI: uploaded.URI}
	} else {
		videoData, err := os.ReadFile(videoPath)
		if err != nil {
			return nil, &models.FatalError{Err: fmt.Errorf("讀取影片檔案 %s 失敗: %w", videoPath, err)}
		}
		videoFilePart = genai.Blob{MIMEType: videoMIMEType, Data: videoData}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	requestParts := []genai.Part{genai.Text(instruction), videoFilePart}
	log.Println("資訊：[Gemini Client] AnalyzeVideo - 正在向 Gemini API 發送請求...")
	resp, err := c.model.GenerateContent(ctx, requestParts...)
	if err != nil {
		return nil, classifyAPIError(fmt.Errorf("Gemini API 影片分析 GenerateContent 失敗: %w", err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &models.FatalError{Err: fmt.Errorf("Gemini API 影片分析回應無效或為空 (nil response or no candidates)")}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
			for _, rating := range candidate.SafetyRatings {
				log.Printf("警告：[Gemini Client] 安全評級 (影片分析) - Category: %s, Probability: %s\n", rating.Category, rating.Probability)
			}
			return nil, &models.FatalError{Err: fmt.Errorf("Gemini API 影片分析回應內容被阻止，原因: %s", candidate.FinishReason.String())}
		}
		return nil, &models.TransientError{Err: fmt.Errorf("Gemini API 影片分析回應無效或為空 (no content parts, FinishReason: %s)", candidate.FinishReason.String())}
	}
	var responseTextBuilder strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseTextBuilder.WriteString(string(txt))
		} else {
			log.Printf("警告：[Gemini Client] AnalyzeVideo - 收到非預期的 Part 類型: %T\n", part)
		}
	}
	rawFullResponseText := responseTextBuilder.String()
	if strings.TrimSpace(rawFullResponseText) == "" {
		return nil, &models.TransientError{Err: fmt.Errorf("Gemini API 影片分析回傳的文字內容為空")}
	}
	log.Printf("資訊：[Gemini Client] AnalyzeVideo - 收到 API 的原始文字回應 (長度: %d)\n", len(rawFullResponseText))

	cleanedJSONString := cleanJSONString(rawFullResponseText)
	var decoded any
	if err := json.Unmarshal([]byte(cleanedJSONString), &decoded); err != nil {
		log.Printf("錯誤：[Gemini Client] AnalyzeVideo - 清理後的字串仍然不是有效的 JSON: %v\n完整的 Cleaned JSON String:\n%s\n", err, cleanedJSONString)
		return nil, &models.TransientError{Err: fmt.Errorf("無法將 Gemini API 回應解析為 JSON (影片分析): %w", err)}
	}
	log.Printf("資訊：[Gemini Client] 影片 '%s' JSON 回應解析成功。\n", videoPath)
	return decoded, nil
}

// uploadVideo 透過 File API 上傳超過內嵌上限的影片，並輪詢至檔案可用。
func (c *Client) uploadVideo(ctx context.Context, videoPath string, mimeType string) (*genai.File, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, &models.FatalError{Err: fmt.Errorf("開啟影片檔案 %s 失敗: %w", videoPath, err)}
	}
	defer f.Close()

	log.Printf("資訊：[Gemini Client] 影片 '%s' 超過內嵌上限，改用 File API 上傳。\n", videoPath)
	uploaded, err := c.sdk.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: filepath.Base(videoPath),
		MIMEType:    mimeType,
	})
	if err != nil {
		return nil, classifyAPIError(fmt.Errorf("上傳影片檔案 %s 失敗: %w", videoPath, err))
	}

	for tries := 0; uploaded.State == genai.FileStateProcessing; tries++ {
		if tries >= c.pollMaxTries {
			return nil, &models.TransientError{Err: fmt.Errorf("等待上傳檔案 '%s' 處理完成逾時", uploaded.Name)}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		uploaded, err = c.sdk.GetFile(ctx, uploaded.Name)
		if err != nil {
			return nil, classifyAPIError(fmt.Errorf("查詢上傳檔案 '%s' 狀態失敗: %w", uploaded.Name, err))
		}
	}
	if uploaded.State != genai.FileStateActive {
		return nil, &models.FatalError{Err: fmt.Errorf("上傳檔案 '%s' 處理失敗，狀態: %v", uploaded.Name, uploaded.State)}
	}
	log.Printf("資訊：[Gemini Client] 上傳檔案 '%s' 已可供分析使用。\n", uploaded.Name)
	return uploaded, nil
}

// mimeTypeForPath 依副檔名推斷影片 MIME 類型。
func mimeTypeForPath(videoPath string) string {
	ext := strings.ToLower(filepath.Ext(videoPath))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mpeg", ".mpg":
		return "video/mpeg"
	case ".avi":
		return "video/x-msvideo"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".flv":
		return "video/x-flv"
	case ".webm":
		return "video/webm"
	default:
		log.Printf("警告：[Gemini Client] 未知的影片副檔名 '%s'，以 video/mp4 送出。\n", ext)
		return "video/mp4"
	}
}

// classifyAPIError 將 API 錯誤歸類為可重試或不可重試。
// 逾時、配額與伺服器端錯誤視為暫時性；認證、參數與資源不存在視為致命。
func classifyAPIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 400 || gerr.Code == 401 || gerr.Code == 403 || gerr.Code == 404:
			return &models.FatalError{Err: err}
		case gerr.Code == 408 || gerr.Code == 429 || gerr.Code >= 500:
			return &models.TransientError{Err: err}
		}
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound, codes.FailedPrecondition:
			return &models.FatalError{Err: err}
		case codes.DeadlineExceeded, codes.ResourceExhausted, codes.Unavailable, codes.Internal, codes.Aborted:
			return &models.TransientError{Err: err}
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &models.TransientError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.TransientError{Err: err}
	}
	return &models.TransientError{Err: err}
}

// cleanJSONString 清理從 LLM 收到的可能包含雜質的 JSON 字串
func cleanJSONString(rawResponse string) string {
	cleaned := strings.TrimSpace(rawResponse)

	// 移除可能的 markdown 代碼塊標記
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	// 尋找最外層的 JSON 結構
	var potentialJSON string
	firstBrace := strings.Index(cleaned, "{")
	lastBrace := strings.LastIndex(cleaned, "}")
	firstBracket := strings.Index(cleaned, "[")
	lastBracket := strings.LastIndex(cleaned, "]")
	isObject := firstBrace != -1 && lastBrace != -1 && lastBrace > firstBrace
	isArray := firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket

	if isObject && (!isArray || firstBrace < firstBracket) {
		potentialJSON = cleaned[firstBrace : lastBrace+1]
	} else if isArray && (!isObject || firstBracket < firstBrace) {
		potentialJSON = cleaned[firstBracket : lastBracket+1]
	} else {
		potentialJSON = cleaned
	}
	potentialJSON = strings.TrimSpace(potentialJSON)

	// 處理 UTF-8 編碼問題
	if !utf8.ValidString(potentialJSON) {
		log.Println("警告：[Gemini Client Clean] 回應包含無效的 UTF-8 字元，嘗試替換...")
		potentialJSON = strings.ToValidUTF8(potentialJSON, "")
	}

	// 移除控制字元
	var sb strings.Builder
	for _, r := range potentialJSON {
		if (r >= 0 && r < 9) || (r > 10 && r < 13) || (r > 13 && r < 32) || r == 127 {
			continue
		}
		sb.WriteRune(r)
	}
	finalCleaned := sb.String()
	finalCleaned = strings.TrimPrefix(finalCleaned, "\uFEFF")

	return finalCleaned
}

// firstNChars 以 rune 為單位截斷字串，避免切在多位元組字元中間。
func firstNChars(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}
