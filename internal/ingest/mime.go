package ingest

import (
	"log"
	"mime"
	"path/filepath"
	"strings"
)

var spreadsheetTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	".xltx": "application/vnd.openxmlformats-officedocument.spreadsheetml.template",
	".xltm": "application/vnd.ms-excel.template.macroEnabled.12",
}

func init() {
	for ext, typ := range spreadsheetTypes {
		ensureMimeType(ext, typ)
	}
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("ingest: failed to register MIME type for %s: %v", ext, err)
	}
}

// ContentType returns the MIME type of a supported workbook filename.
func ContentType(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := spreadsheetTypes[ext]; !ok {
		return "", false
	}
	return mime.TypeByExtension(ext), true
}
