package schema

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// 編輯器存檔常會連發多個事件，對同一檔案的重載做短暫去抖動。
const reloadDebounce = 500 * time.Millisecond

// Watcher 監看提示範本目錄，檔案變動時重新載入對應範本。
// 重新載入失敗時保留舊版本，一次失誤的編輯不會讓運作中的註冊表失去範本。
type Watcher struct {
	registry *Registry
	dir      string
	fw       *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher 建立範本目錄監看器。
func NewWatcher(registry *Registry, dir string) (*Watcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("範本註冊表不得為空")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("無法建立檔案監看器: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("無法監看範本目錄 '%s': %w", dir, err)
	}
	return &Watcher{
		registry: registry,
		dir:      dir,
		fw:       fw,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start 啟動監看迴圈，直到 ctx 取消或監看器關閉為止。
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		log.Printf("資訊：[SchemaWatcher] 開始監看範本目錄: %s", w.dir)
		for {
			select {
			case <-ctx.Done():
				w.Close()
				return
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				log.Printf("錯誤：[SchemaWatcher] 監看範本目錄時發生錯誤: %v", err)
			}
		}
	}()
}

// Close 停止監看。
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
		return
	}
	id := strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name))

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.registry.Remove(id)
		log.Printf("資訊：[SchemaWatcher] 範本檔已移除，自註冊表退場: %s", id)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.scheduleReload(event.Name, id)
	}
}

func (w *Watcher) scheduleReload(path, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(reloadDebounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		tpl, err := w.registry.LoadFile(path)
		if err != nil {
			log.Printf("警告：[SchemaWatcher] 重新載入範本 '%s' 失敗，保留舊版本: %v", id, err)
			return
		}
		log.Printf("資訊：[SchemaWatcher] 範本 '%s' 已重新載入，指紋: %s", tpl.ID, tpl.Version)
	})
}
