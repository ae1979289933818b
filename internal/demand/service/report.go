package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
)

var demandExportHeaders = []string{
	"Name", "Status", "Responsible", "Created", "Expected", "Finalized", "On Time", "Tasks Done", "Notes",
}

// ExportDemands renders the demands matching the filters as an xlsx
// workbook plus a suggested file name.
func (s *DemandService) ExportDemands(ctx context.Context, filters map[string]interface{}) (*excelize.File, string, error) {
	demands, err := s.repos.Demand.ListForExport(ctx, filters)
	if err != nil {
		return nil, "", fmt.Errorf("list demands: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Demands"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range demandExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	labels := make(map[entity.Responsible]string)
	for rowIdx := range demands {
		d := &demands[rowIdx]
		row := rowIdx + 2
		completed, total := countCompleted(d.TaskStatuses)

		target := d.Responsible()
		if _, ok := labels[target]; !ok {
			labels[target] = responsibleLabel(ctx, s, target)
		}

		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), d.Name)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), d.Status)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), labels[target])
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), d.CreatedAt.UTC().Format("2006-01-02"))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), d.ExpectedAt.UTC().Format("2006-01-02"))
		if d.FinalizedAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), d.FinalizedAt.UTC().Format("2006-01-02"))
			onTime := "no"
			if d.OnTime {
				onTime = "yes"
			}
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), onTime)
		}
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), fmt.Sprintf("%d/%d", completed, total))
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), d.Notes)
	}

	colWidths := []float64{30, 12, 20, 12, 12, 12, 8, 10, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	name := fmt.Sprintf("demands-%s.xlsx", time.Now().UTC().Format("20060102"))
	return f, name, nil
}

func responsibleLabel(ctx context.Context, s *DemandService, r entity.Responsible) string {
	switch {
	case r.IsUser():
		if user, err := s.repos.User.FindUser(ctx, r.UserID); err == nil {
			return user.Name
		}
		return r.UserID
	case r.RoleID != "":
		if role, err := s.repos.User.FindRole(ctx, r.RoleID); err == nil {
			return role.Name
		}
		return r.RoleID
	default:
		return ""
	}
}
