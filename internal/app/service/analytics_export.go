package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	clicksSheet = "Clicks"
	urlsSheet   = "URLs"
)

// ExportUser renders the user's daily clicks and URL list as an XLSX workbook.
func (s *analyticsService) ExportUser(ctx context.Context, userID uint) ([]byte, error) {
	daily, err := s.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	urls, err := s.urls.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", clicksSheet); err != nil {
		return nil, exportError(err)
	}
	if _, err := f.NewSheet(urlsSheet); err != nil {
		return nil, exportError(err)
	}

	if err := f.SetSheetRow(clicksSheet, "A1", &[]interface{}{"Date", "Clicks"}); err != nil {
		return nil, exportError(err)
	}
	for i, row := range daily {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(clicksSheet, cell, &[]interface{}{row.Day, row.Clicks}); err != nil {
			return nil, exportError(err)
		}
	}

	header := []interface{}{"Short Code", "Original URL", "Total Clicks", "Active", "Created At"}
	if err := f.SetSheetRow(urlsSheet, "A1", &header); err != nil {
		return nil, exportError(err)
	}
	for i, u := range urls {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{u.ShortCode, u.OriginalURL, u.TotalClicks, u.Active, u.CreatedAt.UTC().Format(time.RFC3339)}
		if err := f.SetSheetRow(urlsSheet, cell, &values); err != nil {
			return nil, exportError(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, exportError(err)
	}
	return buf.Bytes(), nil
}

func exportError(err error) error {
	return newError(ErrEncoding, "failed to build analytics export", err)
}
