package batchexport

import (
	"strings"
	"time"

	"docverify-backend/internal/documents"
)

// csvHeader matches the column layout the downstream intake system ingests.
var csvHeader = []string{
	"案件ID", "書類種別", "氏名", "生年月日", "住所",
	"画像オブジェクトキー", "確認者ID", "確認日時", "OCR実行日時",
}

// renderCSV renders the export file. Every field is quoted, including the
// header, so downstream parsers never have to guess about embedded commas in
// Japanese addresses.
func renderCSV(docs []documents.ConfirmedDocument) string {
	var sb strings.Builder
	writeRow(&sb, csvHeader)
	for _, cd := range docs {
		writeRow(&sb, []string{
			cd.Document.ID,
			cd.Document.Type.Label(),
			cd.Data.Name,
			stringOrEmpty(cd.Data.BirthDate),
			cd.Data.Address,
			cd.Document.ImageKey,
			cd.ConfirmedBy,
			timeOrEmpty(cd.ConfirmedAt),
			timeOrEmpty(cd.Data.OCRExecutedAt),
		})
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(JST).Format(time.RFC3339)
}
