package prompt

import (
	"strings"

	"VideoTagger-admin/internal/models"
)

// Builder 將提示範本轉換為傳給生成模型的自然語言指令。
type Builder struct{}

// NewBuilder 建立指令產生器。
func NewBuilder() *Builder {
	return &Builder{}
}

// Build 依範本順序逐欄位產生指令文字。
// 同一份範本永遠產生一字不差的相同文字：回應形狀有問題時才能比對除錯，
// 外部若以指令文字作為快取鍵也能穩定命中。
func (b *Builder) Build(tpl *models.PromptTemplate) string {
	var sb strings.Builder
	sb.WriteString("請分析這部影片的動作內容，並以單一 JSON 物件回覆；物件的鍵必須與下列欄位名稱完全一致：\n")
	for _, f := range tpl.Fields {
		sb.WriteString("- 「")
		sb.WriteString(f.Name)
		sb.WriteString("」")
		if f.Description != "" {
			sb.WriteString("：")
			sb.WriteString(f.Description)
		}
		if f.IsEnum() {
			sb.WriteString("（允許值：")
			sb.WriteString(strings.Join(f.Options, "、"))
			sb.WriteString("，請從中擇一）")
		}
		if f.Required {
			sb.WriteString("【必填】")
		} else {
			sb.WriteString("【選填，無法判斷時請回傳空字串 \"\"】")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("每個欄位都必須出現在回覆中；選填欄位沒有答案時請使用空字串 \"\"，不要省略鍵。僅回覆 JSON 物件本身，不要包含其他文字或 Markdown 標記。")
	return sb.String()
}
