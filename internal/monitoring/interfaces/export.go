package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// BuildStatsPDF renders a minimal PDF for subscription statistics.
func BuildStatsPDF(stats monitoring.SubscriptionStats, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Gateway Monitoring Statistics")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Users: %d", stats.TotalUsers))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Subscriptions: %d", stats.TotalSubscriptions))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Monitored Gateways: %d", stats.MonitoredGateways))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(100, 6, "Gateway", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Subscribers", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, stat := range stats.TopGateways {
		pdf.CellFormat(100, 6, stat.GatewayID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", stat.Subscribers), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatsXLSX renders a minimal XLSX for subscription statistics.
func BuildStatsXLSX(stats monitoring.SubscriptionStats, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	gatewaysSheet := "gateways"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(gatewaysSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Gateway Monitoring Statistics")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Users")
	_ = f.SetCellValue(summarySheet, "B4", stats.TotalUsers)
	_ = f.SetCellValue(summarySheet, "A5", "Subscriptions")
	_ = f.SetCellValue(summarySheet, "B5", stats.TotalSubscriptions)
	_ = f.SetCellValue(summarySheet, "A6", "Monitored Gateways")
	_ = f.SetCellValue(summarySheet, "B6", stats.MonitoredGateways)

	_ = f.SetCellValue(gatewaysSheet, "A1", "Gateway")
	_ = f.SetCellValue(gatewaysSheet, "B1", "Subscribers")
	for i, stat := range stats.TopGateways {
		row := i + 2
		_ = f.SetCellValue(gatewaysSheet, fmt.Sprintf("A%d", row), stat.GatewayID)
		_ = f.SetCellValue(gatewaysSheet, fmt.Sprintf("B%d", row), stat.Subscribers)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
