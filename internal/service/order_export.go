package service

import (
	"bytes"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/xuri/excelize/v2"
)

const orderExportSheet = "Orders"

// OrderExportHeader 导出表头，每个订单明细一行
var OrderExportHeader = []string{
	"Order ID",
	"Status",
	"Created At",
	"Customer Email",
	"Currency",
	"Order Total",
	"Checkout Session",
	"Variant ID",
	"Title",
	"SKU",
	"Unit Price",
	"Quantity",
	"Line Total",
}

var orderExportColumnWidths = []float64{38, 12, 22, 28, 10, 14, 30, 38, 30, 16, 12, 10, 12}

// GenerateOrderExport 生成订单导出 Excel 文件；没有订单时只有表头
func GenerateOrderExport(orders []*domain.Order) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，出错路径各自 Close

	index, err := f.NewSheet(orderExportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range OrderExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(orderExportSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(orderExportSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(orderExportSheet, name, name, orderExportColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	row := 2
	for _, o := range orders {
		for _, values := range orderExportRows(o) {
			for col, v := range values {
				if v == nil || v == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					f.Close()
					return nil, err
				}
				if err := f.SetCellValue(orderExportSheet, cell, v); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
				}
			}
			row++
		}
	}

	// 冻结表头
	if err := f.SetPanes(orderExportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// orderExportRows 订单没有明细时也输出一行订单信息
func orderExportRows(o *domain.Order) [][]any {
	head := []any{
		o.OrderID,
		string(o.Status),
		o.CreatedAt.UTC().Format(time.RFC3339),
		o.CustomerEmail,
		o.Currency,
		formatMinor(o.TotalAmount),
		o.CheckoutSessionID,
	}
	if len(o.Items) == 0 {
		return [][]any{head}
	}
	rows := make([][]any, 0, len(o.Items))
	for _, it := range o.Items {
		r := append(append([]any(nil), head...),
			it.VariantID,
			it.TitleSnapshot,
			it.SKUSnapshot,
			formatMinor(it.UnitPriceAmount),
			it.Quantity,
			formatMinor(it.LineTotalAmount),
		)
		rows = append(rows, r)
	}
	return rows
}

// formatMinor 以两位小数展示 minor units（1500 → "15.00"）
func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
