package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// JsonNullString 包裝 sql.NullString，讓可空欄位能正確地與 JSON 互轉。
type JsonNullString struct {
	sql.NullString
}

// MarshalJSON 實現 json.Marshaler 介面，無效值輸出 null。
func (jns JsonNullString) MarshalJSON() ([]byte, error) {
	if !jns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(jns.String)
}

// UnmarshalJSON 實現 json.Unmarshaler 介面。
func (jns *JsonNullString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		jns.String, jns.Valid = "", false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		jns.String, jns.Valid = "", false
		return fmt.Errorf("JsonNullString: 期望 JSON 字串或 null，但得到 '%s': %w", string(data), err)
	}
	jns.String, jns.Valid = s, true
	return nil
}

// NullStringFrom 以字串建立 JsonNullString，空字串視為無效值。
func NullStringFrom(s string) JsonNullString {
	return JsonNullString{sql.NullString{String: s, Valid: s != ""}}
}
