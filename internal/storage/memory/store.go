package memory

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"VideoTagger-admin/internal/models"
	"VideoTagger-admin/internal/storage"
)

// Store 是純記憶體的儲存實作，供測試與本機試跑使用。
// 與 MySQL 實作遵循相同的保證：以 (video_identity, schema_id, schema_version)
// 為唯一鍵的冪等 upsert、整筆覆寫、List 依寫入順序回傳。
type Store struct {
	mu          sync.RWMutex
	records     map[string]*models.TagRecord
	recordOrder []string
	videos      map[string]*models.Video
	videoOrder  []string
	nextVideoID int64
}

// NewStore 建立空的記憶體儲存。
func NewStore() *Store {
	return &Store{
		records: make(map[string]*models.TagRecord),
		videos:  make(map[string]*models.Video),
	}
}

// UpsertTagRecord 以唯一鍵整筆覆寫既有紀錄，不做欄位層級合併。
// 首次寫入保留 CreatedAt，之後的覆寫只推進 UpdatedAt。
func (s *Store) UpsertTagRecord(record *models.TagRecord) error {
	if record == nil {
		return fmt.Errorf("紀錄不得為空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Key()
	clone := cloneRecord(record)
	if existing, ok := s.records[key]; ok {
		clone.CreatedAt = existing.CreatedAt
	} else {
		s.recordOrder = append(s.recordOrder, key)
	}
	s.records[key] = clone
	return nil
}

// GetTagRecord 依唯一鍵取得紀錄；查無資料時回傳包裝了 storage.ErrNotFound 的錯誤。
func (s *Store) GetTagRecord(videoIdentity, schemaID, schemaVersion string) (*models.TagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[models.RecordKey(videoIdentity, schemaID, schemaVersion)]
	if !ok {
		return nil, fmt.Errorf("紀錄 (%s, %s, %s): %w", videoIdentity, schemaID, schemaVersion, storage.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// ListTagRecords 依寫入順序回傳紀錄；schemaID 非空時只回傳該範本的紀錄。
func (s *Store) ListTagRecords(schemaID string) ([]*models.TagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TagRecord, 0, len(s.recordOrder))
	for _, key := range s.recordOrder {
		rec := s.records[key]
		if schemaID != "" && rec.SchemaID != schemaID {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

// FindOrCreateVideo 以 Identity 為鍵登錄影片；已存在時回傳既有 ID，不改動任何欄位。
func (s *Store) FindOrCreateVideo(video *models.Video) (int64, error) {
	if video == nil {
		return 0, fmt.Errorf("影片不得為空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.videos[video.Identity]; ok {
		return existing.ID, nil
	}
	s.nextVideoID++
	clone := *video
	clone.ID = s.nextVideoID
	if clone.Status == "" {
		clone.Status = models.VideoStatusPending
	}
	if clone.RegisteredAt.IsZero() {
		clone.RegisteredAt = time.Now()
	}
	s.videos[clone.Identity] = &clone
	s.videoOrder = append(s.videoOrder, clone.Identity)
	return clone.ID, nil
}

// UpdateVideoStatus 更新影片的分析狀態與相關欄位。
func (s *Store) UpdateVideoStatus(identity string, status models.VideoStatus, analyzedAt sql.NullTime, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.videos[identity]
	if !ok {
		return fmt.Errorf("影片 '%s': %w", identity, storage.ErrNotFound)
	}
	video.Status = status
	video.AnalyzedAt = analyzedAt
	video.ErrorMessage = models.NullStringFrom(errorMessage)
	return nil
}

// GetVideoByIdentity 依 Identity 取得影片。
func (s *Store) GetVideoByIdentity(identity string) (*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.videos[identity]
	if !ok {
		return nil, fmt.Errorf("影片 '%s': %w", identity, storage.ErrNotFound)
	}
	clone := *video
	return &clone, nil
}

// ListVideos 依登錄順序回傳影片；status 非空時只回傳該狀態的影片。
func (s *Store) ListVideos(status models.VideoStatus, limit int) ([]*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Video, 0, len(s.videoOrder))
	for _, identity := range s.videoOrder {
		video := s.videos[identity]
		if status != "" && video.Status != status {
			continue
		}
		clone := *video
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close 讓介面與 MySQL 實作一致，這裡沒有要釋放的資源。
func (s *Store) Close() error {
	return nil
}

func cloneRecord(r *models.TagRecord) *models.TagRecord {
	clone := *r
	clone.Fields = make([]models.FieldValue, len(r.Fields))
	copy(clone.Fields, r.Fields)
	if r.Errors != nil {
		clone.Errors = make([]models.FieldError, len(r.Errors))
		copy(clone.Errors, r.Errors)
	}
	return &clone
}
