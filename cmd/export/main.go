package main

import (
	"VideoTagger-admin/internal/config"
	"VideoTagger-admin/internal/export"
	"VideoTagger-admin/internal/storage/mysql"
	"flag"
	"log"
)

func main() {
	formatFlag := flag.String("format", "", "輸出格式 (csv, json, xlsx)，留空時三種格式都輸出")
	schemaFlag := flag.String("schema", "", "只匯出指定範本 ID 的紀錄，留空代表全部")
	outFlag := flag.String("out", "", "輸出目錄，留空時使用設定檔中的 export.dir")
	flag.Parse()

	// 載入配置
	cfg, err := config.Load("configs", "config")
	if err != nil {
		log.Fatalf("無法載入配置: %v", err)
	}

	// 初始化資料庫連接
	db, err := mysql.NewMySQLStore(cfg.Database)
	if err != nil {
		log.Fatalf("無法連接到資料庫: %v", err)
	}
	defer db.Close()

	records, err := db.ListTagRecords(*schemaFlag)
	if err != nil {
		log.Fatalf("無法獲取驗證紀錄: %v", err)
	}
	if len(records) == 0 {
		log.Println("資料庫中沒有符合條件的驗證紀錄，仍會輸出只含表頭的檔案。")
	}

	outputDir := *outFlag
	if outputDir == "" {
		outputDir = cfg.Export.Dir
	}
	formats := []string{export.FormatCSV, export.FormatJSON, export.FormatExcel}
	if *formatFlag != "" {
		formats = []string{*formatFlag}
	}
	for _, format := range formats {
		outputFile, err := export.WriteFile(outputDir, format, records)
		if err != nil {
			log.Fatalf("匯出 %s 失敗: %v", format, err)
		}
		log.Printf("已匯出 %d 筆驗證紀錄: %s", len(records), outputFile)
	}
}
