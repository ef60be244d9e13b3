package gemini

import (
	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCleanJSONStringStripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"Loopable\": \"Yes\", \"Tempo Speed\": \"Fast\"}\n```"

	cleaned := cleanJSONString(raw)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(cleaned), &decoded))
	assert.Equal(t, "Yes", decoded["Loopable"])
	assert.Equal(t, "Fast", decoded["Tempo Speed"])
}

func TestCleanJSONStringExtractsObjectFromProse(t *testing.T) {
	raw := "好的，以下是分析結果：\n{\"Name of AnimationFile\": \"walk_cycle\"}\n希望對您有幫助。"

	cleaned := cleanJSONString(raw)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(cleaned), &decoded))
	assert.Equal(t, "walk_cycle", decoded["Name of AnimationFile"])
}

func TestCleanJSONStringExtractsArray(t *testing.T) {
	raw := "結果如下：[\"run\", \"jump\"] 以上。"

	cleaned := cleanJSONString(raw)

	var decoded []any
	require.NoError(t, json.Unmarshal([]byte(cleaned), &decoded))
	assert.Equal(t, []any{"run", "jump"}, decoded)
}

func TestCleanJSONStringRemovesControlCharsAndBOM(t *testing.T) {
	raw := "\uFEFF{\"A\": \"v\x01alue\"}"

	cleaned := cleanJSONString(raw)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(cleaned), &decoded))
	assert.Equal(t, "value", decoded["A"])
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyAPIErrorTransientCases(t *testing.T) {
	cases := map[string]error{
		"HTTP 429":       fmt.Errorf("呼叫失敗: %w", &googleapi.Error{Code: 429, Message: "quota"}),
		"HTTP 503":       fmt.Errorf("呼叫失敗: %w", &googleapi.Error{Code: 503, Message: "unavailable"}),
		"HTTP 408":       fmt.Errorf("呼叫失敗: %w", &googleapi.Error{Code: 408, Message: "timeout"}),
		"gRPC 資源耗盡":      fmt.Errorf("呼叫失敗: %w", status.Error(codes.ResourceExhausted, "quota exceeded")),
		"gRPC 服務不可用":     fmt.Errorf("呼叫失敗: %w", status.Error(codes.Unavailable, "try later")),
		"網路逾時":           fmt.Errorf("呼叫失敗: %w", timeoutError{}),
		"逾時截止":           fmt.Errorf("呼叫失敗: %w", context.DeadlineExceeded),
		"無法歸類的錯誤預設視為暫時性": fmt.Errorf("something odd happened"),
	}
	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			classified := classifyAPIError(err)
			assert.True(t, models.IsTransient(classified))
			assert.False(t, models.IsFatal(classified))
		})
	}
}

func TestClassifyAPIErrorFatalCases(t *testing.T) {
	cases := map[string]error{
		"HTTP 400":  fmt.Errorf("呼叫失敗: %w", &googleapi.Error{Code: 400, Message: "bad request"}),
		"HTTP 401":  fmt.Errorf("呼叫失敗: %w", &googleapi.Error{Code: 401, Message: "unauthorized"}),
		"HTTP 403":  fmt.Errorf("呼叫失敗: %w", &googleapi.Error{Code: 403, Message: "forbidden"}),
		"HTTP 404":  fmt.Errorf("呼叫失敗: %w", &googleapi.Error{Code: 404, Message: "not found"}),
		"gRPC 參數錯誤": fmt.Errorf("呼叫失敗: %w", status.Error(codes.InvalidArgument, "bad field")),
		"gRPC 未經認證": fmt.Errorf("呼叫失敗: %w", status.Error(codes.Unauthenticated, "no key")),
	}
	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			classified := classifyAPIError(err)
			assert.True(t, models.IsFatal(classified))
			assert.False(t, models.IsTransient(classified))
		})
	}
}

func TestClassifyAPIErrorKeepsCancellation(t *testing.T) {
	err := fmt.Errorf("呼叫失敗: %w", context.Canceled)

	classified := classifyAPIError(err)

	assert.ErrorIs(t, classified, context.Canceled)
	assert.False(t, models.IsTransient(classified))
	assert.False(t, models.IsFatal(classified))
}

func TestMimeTypeForPath(t *testing.T) {
	cases := map[string]string{
		"clips/walk.mp4":  "video/mp4",
		"clips/pan.MOV":   "video/quicktime",
		"clips/old.mpg":   "video/mpeg",
		"clips/cam.avi":   "video/x-msvideo",
		"clips/win.wmv":   "video/x-ms-wmv",
		"clips/flash.flv": "video/x-flv",
		"clips/web.webm":  "video/webm",
		"clips/odd.bin":   "video/mp4",
	}
	for path, want := range cases {
		assert.Equal(t, want, mimeTypeForPath(path), path)
	}
}

func TestFirstNCharsIsRuneSafe(t *testing.T) {
	assert.Equal(t, "請分析", firstNChars("請分析這部影片", 3))
	assert.Equal(t, "abc", firstNChars("abc", 10))
	assert.Equal(t, "", firstNChars("abc", 0))
}

func TestNewClientRejectsEmptyAPIKey(t *testing.T) {
	_, err := NewClient(config.GeminiConfig{})
	assert.Error(t, err)
}
