package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig 控制管理介面 HTTP 伺服器。
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig 對應 config.yaml 的 database 區段。
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
}

// LibraryConfig 指向影片庫根目錄，掃描與串流皆以此為界。
type LibraryConfig struct {
	VideoPath string `mapstructure:"videoPath"`
}

// GeminiConfig 控制生成端行為：模型、速率與上傳門檻。
type GeminiConfig struct {
	APIKey             string `mapstructure:"apiKey"`
	Model              string `mapstructure:"model"`
	RequestsPerMinute  int    `mapstructure:"requestsPerMinute"`
	InlineFileLimitMB  int64  `mapstructure:"inlineFileLimitMB"`
	UploadPollSeconds  int    `mapstructure:"uploadPollSeconds"`
	UploadPollMaxTries int    `mapstructure:"uploadPollMaxTries"`
}

// SchemasConfig 指定欄位範本目錄與目前選用的範本。
type SchemasConfig struct {
	Dir          string `mapstructure:"dir"`
	SelectedID   string `mapstructure:"selectedID"`
	WatchEnabled bool   `mapstructure:"watchEnabled"`
}

// AnalysisConfig 控制分析批次的重試與併發上限。
type AnalysisConfig struct {
	MaxRetries     int `mapstructure:"maxRetries"`
	BackoffBaseMs  int `mapstructure:"backoffBaseMs"`
	BackoffCapMs   int `mapstructure:"backoffCapMs"`
	MaxConcurrency int `mapstructure:"maxConcurrency"`
}

// SchedulerConfig 控制排程任務的啟用與週期。
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ScanCronSpec    string `mapstructure:"scanCronSpec"`
	AnalyzeCronSpec string `mapstructure:"analyzeCronSpec"`
}

// ExportConfig 指定匯出檔案的輸出目錄。
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// Config 是整個應用程式的設定根節點。
type Config struct {
	AppName   string          `mapstructure:"appName"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Library   LibraryConfig   `mapstructure:"library"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Schemas   SchemasConfig   `mapstructure:"schemas"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Export    ExportConfig    `mapstructure:"export"`
}

// Load 讀取設定檔並套用預設值與環境變數覆寫。
func Load(configPath string, configName string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 設定預設值
	v.SetDefault("appName", "VideoTagger-DefaultApp")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("gemini.model", "gemini-2.5-pro-latest")
	v.SetDefault("gemini.requestsPerMinute", 10)
	v.SetDefault("gemini.inlineFileLimitMB", 20)
	v.SetDefault("gemini.uploadPollSeconds", 2)
	v.SetDefault("gemini.uploadPollMaxTries", 30)
	v.SetDefault("schemas.dir", "schemas")
	v.SetDefault("schemas.watchEnabled", true)
	v.SetDefault("analysis.maxRetries", 2)
	v.SetDefault("analysis.backoffBaseMs", 500)
	v.SetDefault("analysis.backoffCapMs", 8000)
	v.SetDefault("analysis.maxConcurrency", 3)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.scanCronSpec", "0 */5 * * * *")
	v.SetDefault("scheduler.analyzeCronSpec", "0 */10 * * * *")
	v.SetDefault("export.dir", "exports")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("警告：找不到設定檔，將使用預設值和環境變數。")
		} else {
			return nil, fmt.Errorf("讀取設定檔時發生錯誤: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("無法解析設定檔到結構: %w", err)
	}

	if cfg.Gemini.APIKey == "" {
		fmt.Println("警告：Gemini API Key 未設定！")
	}
	if cfg.Schemas.SelectedID == "" {
		fmt.Println("警告：未指定預設欄位範本，將採用範本目錄中的第一個。")
	}

	fmt.Println("資訊：設定載入成功。")
	return &cfg, nil
}
