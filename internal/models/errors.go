package models

import (
	"errors"
	"fmt"
)

// TransientError 表示可重試的暫時性失敗：頻率限制、逾時、網路中斷等。
// 協調器收到此類錯誤時會依退避策略重試。
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("暫時性錯誤: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError 表示不可重試的致命失敗：認證失敗、配額耗盡、請求被供應方拒絕等。
// 只中止該部影片的分析，批次照常繼續。
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("致命錯誤: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// AnalysisFailedError 表示單一影片的分析已放棄：重試耗盡或遇到致命錯誤。
// 這類失敗不會留下任何紀錄，與驗證狀態為 Failed 的已持久化紀錄是兩回事。
type AnalysisFailedError struct {
	VideoIdentity string
	Attempts      int
	Err           error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("影片 '%s' 分析失敗（共嘗試 %d 次）: %v", e.VideoIdentity, e.Attempts, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Err
}

// IsTransient 回報錯誤鏈中是否包含暫時性錯誤。
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal 回報錯誤鏈中是否包含致命錯誤。
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
