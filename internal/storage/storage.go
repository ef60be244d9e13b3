// Package storage 定義各儲存實作共用的錯誤。
package storage

import "errors"

// ErrNotFound 表示查詢條件沒有對應的資料列。
// MySQL 與記憶體實作都以此包裝各自的「查無資料」情況。
var ErrNotFound = errors.New("找不到符合條件的資料")
