package notify

import (
	"time"

	"github.com/kirana/posreport/internal/domain/report"
)

func testMessage() report.Message {
	period, _ := report.ResolvePeriod(time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC), report.KindDaily, time.UTC)
	return report.Message{
		Subject:  "Daily Sales Report - 2024-03-15",
		HTMLBody: "<p>Total Bills: 2</p>",
		Attachments: []report.Attachment{{
			Filename:    "Inventory_2024-03-15.csv",
			ContentType: "text/csv; charset=utf-8",
			Content:     []byte("Name,Barcode,Category,Stock\nAtta,890,Grains,12\n"),
		}},
		Period: period,
		RunID:  "run-1",
	}
}
