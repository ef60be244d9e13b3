package library

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/models"
)

// 影片庫只認這些副檔名，其他檔案掃描時一律略過。
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mpeg": true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
}

// FileSystemLibrary 負責與存放影片檔案的本機目錄互動。
type FileSystemLibrary struct {
	basePath string // 影片庫根目錄的絕對路徑
}

// NewFileSystemLibrary 建立影片庫實例，根目錄不存在時會嘗試建立。
func NewFileSystemLibrary(libCfg config.LibraryConfig) (*FileSystemLibrary, error) {
	if libCfg.VideoPath == "" {
		return nil, fmt.Errorf("影片庫設定中的 videoPath 不得為空")
	}
	absBasePath, err := filepath.Abs(libCfg.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("無法取得影片庫 videoPath 的絕對路徑 '%s': %w", libCfg.VideoPath, err)
	}

	if _, err := os.Stat(absBasePath); os.IsNotExist(err) {
		log.Printf("資訊：影片庫根目錄 '%s' 不存在，正在嘗試建立...", absBasePath)
		if err := os.MkdirAll(absBasePath, os.ModePerm); err != nil {
			return nil, fmt.Errorf("無法建立影片庫根目錄 '%s': %w", absBasePath, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("檢查影片庫根目錄 '%s' 時發生錯誤: %w", absBasePath, err)
	}

	log.Printf("資訊：FileSystemLibrary 初始化成功，影片根路徑設定為: %s", absBasePath)
	return &FileSystemLibrary{basePath: absBasePath}, nil
}

// BasePath 回傳影片庫根目錄的絕對路徑。
func (l *FileSystemLibrary) BasePath() string {
	return l.basePath
}

// Scan 走訪影片庫根目錄，回傳所有影片檔案的路徑與檔案屬性。
func (l *FileSystemLibrary) Scan() ([]models.VideoFileInfo, error) {
	var files []models.VideoFileInfo
	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("讀取檔案屬性失敗 '%s': %w", path, err)
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return fmt.Errorf("計算相對路徑失敗 '%s': %w", path, err)
		}
		files = append(files, models.VideoFileInfo{
			AbsolutePath: path,
			RelativePath: filepath.ToSlash(rel),
			FileName:     d.Name(),
			SizeBytes:    info.Size(),
			ModTime:      info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("掃描影片庫 '%s' 失敗: %w", l.basePath, err)
	}
	return files, nil
}

// Resolve 將庫內相對路徑安全地轉成絕對路徑，拒絕跳脫根目錄的路徑。
func (l *FileSystemLibrary) Resolve(relativePath string) (string, error) {
	if relativePath == "" {
		return "", fmt.Errorf("影片路徑不得為空")
	}
	fullPath := filepath.Join(l.basePath, filepath.FromSlash(relativePath))
	cleaned, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("無法解析影片絕對路徑 '%s': %w", relativePath, err)
	}
	if cleaned != l.basePath && !strings.HasPrefix(cleaned, l.basePath+string(os.PathSeparator)) {
		return "", fmt.Errorf("路徑 '%s' 超出影片庫根目錄", relativePath)
	}
	return cleaned, nil
}
