package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/milkledger/internal/config"
	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// GoogleSheetRepository appends daily reports to a Google Sheets range.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	reportRange   string
	logger        *zap.Logger

	mu          sync.Mutex
	headerReady bool
}

// NewGoogleSheetRepository builds a Google Sheets backed report mirror.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if cfg.ReportRange == "" {
		return nil, fmt.Errorf("report range must not be empty")
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}
	return newRepository(service, cfg, logger), nil
}

func newRepository(service *sheetsapi.Service, cfg config.SheetsConfig, logger *zap.Logger) *GoogleSheetRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		reportRange:   cfg.ReportRange,
		logger:        logger,
	}
}

// AppendReport writes one report as a new row at the end of the report range.
// The column header is written first when the sheet has no header row yet.
func (r *GoogleSheetRepository) AppendReport(ctx context.Context, report models.DailyReport) error {
	if err := r.ensureHeader(ctx); err != nil {
		return err
	}
	if err := r.appendRow(ctx, reportRow(report)); err != nil {
		return fmt.Errorf("append report into range %s: %w", r.reportRange, err)
	}

	r.logger.Debug("report appended to sheet",
		zap.String("range", r.reportRange),
		zap.String("farm_id", report.FarmID),
		zap.String("date", report.Date))
	return nil
}

func (r *GoogleSheetRepository) ensureHeader(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.headerReady {
		return nil
	}

	headerRange := headerRowOf(r.reportRange)
	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header row %s: %w", headerRange, err)
	}
	if len(resp.Values) == 0 {
		if err := r.appendRow(ctx, reportHeader); err != nil {
			return fmt.Errorf("write header row into range %s: %w", r.reportRange, err)
		}
		r.logger.Info("report header written", zap.String("range", r.reportRange))
	}

	r.headerReady = true
	return nil
}

func (r *GoogleSheetRepository) appendRow(ctx context.Context, values []interface{}) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	_, err := r.service.Spreadsheets.Values.Append(r.spreadsheetID, r.reportRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// headerRowOf returns the first row of the sheet a range points into,
// "Reports!A:K" becoming "Reports!1:1".
func headerRowOf(sheetRange string) string {
	if i := strings.LastIndexByte(sheetRange, '!'); i >= 0 {
		return sheetRange[:i] + "!1:1"
	}
	return "1:1"
}

// reportHeader names the columns written by reportRow.
var reportHeader = []interface{}{
	"Date", "Farm", "Morning (L)", "Morning animals", "Evening (L)", "Evening animals",
	"Total (L)", "Animals milked", "Average (L)", "Top animal", "Top animal (L)",
}

// reportRow flattens a report into spreadsheet cells in reportHeader order.
func reportRow(report models.DailyReport) []interface{} {
	return []interface{}{
		report.Date,
		report.FarmID,
		report.MorningYield,
		report.MorningAnimals,
		report.EveningYield,
		report.EveningAnimals,
		report.TotalYield,
		report.AnimalsMilked,
		report.AverageYield,
		report.TopAnimalID,
		report.TopAnimalYield,
	}
}
