package mysql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/models"
	"VideoTagger-admin/internal/storage"
)

// MySQLStore 以 MySQL 實作影片與標籤紀錄的持久化。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 建立資料庫連線並設定連線池。
func NewMySQLStore(dbCfg config.DatabaseConfig) (*MySQLStore, error) {
	if dbCfg.Driver != "mysql" {
		return nil, fmt.Errorf("不支援的資料庫驅動程式: %s", dbCfg.Driver)
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbCfg.User, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("開啟資料庫連線失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("無法連線到資料庫 (ping 失敗): %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	log.Println("資訊：成功連線到 MySQL 資料庫。")
	return &MySQLStore{db: db}, nil
}

// Close 關閉資料庫連線。
func (s *MySQLStore) Close() error {
	if s.db != nil {
		log.Println("資訊：正在關閉 MySQL 資料庫連線...")
		return s.db.Close()
	}
	return nil
}

// UpsertTagRecord 以 (video_identity, schema_id, schema_version) 唯一鍵寫入紀錄。
// 同鍵再次寫入時整筆覆寫，不做欄位層級合併；created_at 保留首次寫入時間。
func (s *MySQLStore) UpsertTagRecord(record *models.TagRecord) error {
	if record == nil {
		return fmt.Errorf("紀錄不得為空")
	}
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("序列化紀錄欄位失敗: %w", err)
	}
	var errorsJSON any
	if len(record.Errors) > 0 {
		b, err := json.Marshal(record.Errors)
		if err != nil {
			return fmt.Errorf("序列化欄位錯誤清單失敗: %w", err)
		}
		errorsJSON = b
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT INTO tag_records (
			video_identity, schema_id, schema_version, status,
			fields_json, errors_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), fields_json = VALUES(fields_json),
			errors_json = VALUES(errors_json), updated_at = VALUES(updated_at);`
	_, err = s.db.Exec(query,
		record.VideoIdentity, record.SchemaID, record.SchemaVersion, record.Status,
		fieldsJSON, errorsJSON, createdAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("儲存標籤紀錄失敗 (Video: %s, Schema: %s@%s): %w",
			record.VideoIdentity, record.SchemaID, record.SchemaVersion, err)
	}
	log.Printf("資訊：標籤紀錄已儲存 (Video: %s, Schema: %s@%s, Status: %s)\n",
		record.VideoIdentity, record.SchemaID, record.SchemaVersion, record.Status)
	return nil
}

// GetTagRecord 依唯一鍵取得紀錄；查無資料時回傳包裝了 storage.ErrNotFound 的錯誤。
func (s *MySQLStore) GetTagRecord(videoIdentity, schemaID, schemaVersion string) (*models.TagRecord, error) {
	query := `
		SELECT video_identity, schema_id, schema_version, status,
		       fields_json, errors_json, created_at, updated_at
		FROM tag_records
		WHERE video_identity = ? AND schema_id = ? AND schema_version = ?`
	row := s.db.QueryRow(query, videoIdentity, schemaID, schemaVersion)
	record, err := scanTagRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("紀錄 (%s, %s, %s): %w", videoIdentity, schemaID, schemaVersion, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("查詢標籤紀錄失敗 (Video: %s): %w", videoIdentity, err)
	}
	return record, nil
}

// ListTagRecords 依寫入順序回傳紀錄；schemaID 非空時只回傳該範本的紀錄。
func (s *MySQLStore) ListTagRecords(schemaID string) ([]*models.TagRecord, error) {
	query := `
		SELECT video_identity, schema_id, schema_version, status,
		       fields_json, errors_json, created_at, updated_at
		FROM tag_records`
	var args []any
	if schemaID != "" {
		query += " WHERE schema_id = ?"
		args = append(args, schemaID)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查詢標籤紀錄清單失敗: %w", err)
	}
	defer rows.Close()

	var records []*models.TagRecord
	for rows.Next() {
		record, err := scanTagRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("讀取標籤紀錄資料列失敗: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代標籤紀錄結果集失敗: %w", err)
	}
	return records, nil
}

// rowScanner 讓單列查詢與多列查詢共用同一個掃描邏輯。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTagRecord(row rowScanner) (*models.TagRecord, error) {
	var record models.TagRecord
	var fieldsJSON []byte
	var errorsJSON []byte
	err := row.Scan(
		&record.VideoIdentity, &record.SchemaID, &record.SchemaVersion, &record.Status,
		&fieldsJSON, &errorsJSON, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fieldsJSON, &record.Fields); err != nil {
		return nil, fmt.Errorf("解析紀錄欄位 JSON 失敗: %w", err)
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &record.Errors); err != nil {
			return nil, fmt.Errorf("解析欄位錯誤清單 JSON 失敗: %w", err)
		}
	}
	return &record, nil
}

// FindOrCreateVideo 以 Identity 查找影片，不存在時新增；回傳資料列 ID。
// 既有影片不做任何更新，掃描到未變動的檔案是無副作用的。
func (s *MySQLStore) FindOrCreateVideo(video *models.Video) (int64, error) {
	if video == nil {
		return 0, fmt.Errorf("傳入的 video 物件不得為 nil")
	}
	if video.Identity == "" {
		return 0, fmt.Errorf("video 物件的 Identity 不得為空")
	}

	var videoID int64
	queryErr := s.db.QueryRow("SELECT id FROM videos WHERE identity = ?", video.Identity).Scan(&videoID)
	if queryErr == sql.ErrNoRows {
		log.Printf("資訊：資料庫中未找到影片 (Identity: %s, Path: %s)，正在新增記錄...\n", video.Identity, video.LibraryPath)
		status := video.Status
		if status == "" {
			status = models.VideoStatusPending
		}
		registeredAt := video.RegisteredAt
		if registeredAt.IsZero() {
			registeredAt = time.Now()
		}
		insertQuery := `
			INSERT INTO videos (identity, library_path, file_name, size_bytes, mod_time, status, registered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?);`
		res, insertErr := s.db.Exec(insertQuery,
			video.Identity, video.LibraryPath, video.FileName, video.SizeBytes, video.ModTime, status, registeredAt)
		if insertErr != nil {
			return 0, fmt.Errorf("插入新影片記錄失敗 (Identity: %s): %w", video.Identity, insertErr)
		}
		videoID, insertErr = res.LastInsertId()
		if insertErr != nil {
			return 0, fmt.Errorf("獲取新插入影片的 ID 失敗 (Identity: %s): %w", video.Identity, insertErr)
		}
		log.Printf("資訊：新增影片記錄成功，ID: %d (Path: %s)\n", videoID, video.LibraryPath)
		return videoID, nil
	} else if queryErr != nil {
		return 0, fmt.Errorf("查找影片失敗 (Identity: %s): %w", video.Identity, queryErr)
	}
	return videoID, nil
}

// UpdateVideoStatus 更新影片的分析狀態、分析時間與錯誤訊息。
func (s *MySQLStore) UpdateVideoStatus(identity string, status models.VideoStatus, analyzedAt sql.NullTime, errorMessage string) error {
	if identity == "" {
		return fmt.Errorf("Identity 不得為空")
	}
	query := "UPDATE videos SET status = ?, analyzed_at = ?, error_message = ? WHERE identity = ?"
	res, err := s.db.Exec(query, status, analyzedAt, sql.NullString{String: errorMessage, Valid: errorMessage != ""}, identity)
	if err != nil {
		return fmt.Errorf("更新影片分析狀態失敗 (Identity: %s, Status: %s): %w", identity, status, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("影片 '%s': %w", identity, storage.ErrNotFound)
	}
	return nil
}

// GetVideoByIdentity 依 Identity 取得影片。
func (s *MySQLStore) GetVideoByIdentity(identity string) (*models.Video, error) {
	query := `
		SELECT id, identity, library_path, file_name, size_bytes, mod_time,
		       status, error_message, registered_at, analyzed_at
		FROM videos WHERE identity = ?`
	video, err := scanVideo(s.db.QueryRow(query, identity))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("影片 '%s': %w", identity, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("查詢影片失敗 (Identity: %s): %w", identity, err)
	}
	return video, nil
}

// ListVideos 依登錄順序回傳影片；status 非空時只回傳該狀態的影片，limit 為 0 表示不限筆數。
func (s *MySQLStore) ListVideos(status models.VideoStatus, limit int) ([]*models.Video, error) {
	query := `
		SELECT id, identity, library_path, file_name, size_bytes, mod_time,
		       status, error_message, registered_at, analyzed_at
		FROM videos`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查詢影片清單失敗: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("讀取影片資料列失敗: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代影片結果集失敗: %w", err)
	}
	return videos, nil
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var video models.Video
	var errorMessage sql.NullString
	err := row.Scan(
		&video.ID, &video.Identity, &video.LibraryPath, &video.FileName,
		&video.SizeBytes, &video.ModTime, &video.Status, &errorMessage,
		&video.RegisteredAt, &video.AnalyzedAt,
	)
	if err != nil {
		return nil, err
	}
	video.ErrorMessage = models.JsonNullString{NullString: errorMessage}
	return &video, nil
}
