package schema

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound 表示註冊表中沒有指定 ID 的提示範本。
var ErrTemplateNotFound = errors.New("找不到指定的提示範本")

// SchemaParseError 表示範本文件的整體結構無法解析，
// 例如不是合法 JSON、缺少 fields 區塊或 fields 不是物件。
// 只影響該份範本，其他已載入的範本不受影響。
type SchemaParseError struct {
	Source string // 檔名或來源描述
	Err    error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("提示範本 '%s' 結構無法解析: %v", e.Source, e.Err)
}

func (e *SchemaParseError) Unwrap() error {
	return e.Err
}

// SchemaFieldError 表示範本中單一欄位的定義不合法，
// 例如宣告了空的 options 清單，或必填欄位缺少 description。
type SchemaFieldError struct {
	Source string
	Field  string
	Reason string
}

func (e *SchemaFieldError) Error() string {
	return fmt.Sprintf("提示範本 '%s' 的欄位 '%s' 定義不合法: %s", e.Source, e.Field, e.Reason)
}

// IsSchemaError 回報錯誤是否屬於範本載入錯誤（結構或欄位層級皆算）。
func IsSchemaError(err error) bool {
	var pe *SchemaParseError
	var fe *SchemaFieldError
	return errors.As(err, &pe) || errors.As(err, &fe)
}
