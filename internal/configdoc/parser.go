// Package configdoc turns tabular configuration documents (CSV or XLSX) into
// the normalized SharingConfig object. Each row is tagged by its `record`
// column; anything outside the closed set of record types is rejected before
// it can reach the orchestrator.
package configdoc

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/shareflow/internal/domain"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a tabular document and builds a SharingConfig. The first row is
// the header; list-valued cells are semicolon separated.
func Parse(fileName string, data io.Reader) (domain.SharingConfig, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return domain.SharingConfig{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return domain.SharingConfig{}, &domain.ValidationError{Msg: "file is empty"}
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		rows, err = parseCSV(payload)
	case ".xlsx":
		rows, err = parseXLSX(payload)
	default:
		return domain.SharingConfig{}, ErrUnsupportedFormat
	}
	if err != nil {
		return domain.SharingConfig{}, err
	}
	if len(rows) < 2 {
		return domain.SharingConfig{}, &domain.ValidationError{Msg: "document has no data rows"}
	}

	return buildConfig(rows)
}

func parseCSV(payload []byte) ([][]string, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}

func parseXLSX(payload []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.ValidationError{Msg: "workbook has no sheets"}
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func buildConfig(rows [][]string) (domain.SharingConfig, error) {
	headers := map[string]int{}
	for i, name := range rows[0] {
		headers[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := headers["record"]; !ok {
		return domain.SharingConfig{}, &domain.ValidationError{Msg: "header row is missing the record column"}
	}

	cfg := domain.SharingConfig{}
	shareIndex := map[string]int{}

	for rowNum, row := range rows[1:] {
		cell := func(name string) string {
			idx, ok := headers[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		record := strings.ToLower(cell("record"))
		if record == "" {
			continue
		}

		switch record {
		case "metadata":
			applyMetadata(&cfg, strings.ToLower(cell("name")), cell("value"))
		case "recipient":
			cfg.Recipients = append(cfg.Recipients, domain.RecipientSpec{
				Name:              cell("name"),
				Kind:              cell("kind"),
				Addresses:         splitList(cell("addresses")),
				AddressesToAdd:    splitList(cell("addresses_to_add")),
				AddressesToRemove: splitList(cell("addresses_to_remove")),
			})
		case "share":
			cfg.Shares = append(cfg.Shares, domain.ShareSpec{
				Name:               cell("name"),
				Objects:            splitList(cell("objects")),
				ObjectsToAdd:       splitList(cell("objects_to_add")),
				ObjectsToRemove:    splitList(cell("objects_to_remove")),
				Recipients:         splitList(cell("recipients")),
				RecipientsToAdd:    splitList(cell("recipients_to_add")),
				RecipientsToRemove: splitList(cell("recipients_to_remove")),
			})
			shareIndex[cell("name")] = len(cfg.Shares) - 1
		case "pipeline":
			shareName := cell("share")
			idx, ok := shareIndex[shareName]
			if !ok {
				return domain.SharingConfig{}, &domain.ValidationError{
					Msg: fmt.Sprintf("row %d: pipeline %q references unknown share %q", rowNum+2, cell("name"), shareName),
				}
			}
			cfg.Shares[idx].Pipelines = append(cfg.Shares[idx].Pipelines, domain.PipelineSpec{
				Name:   cell("name"),
				Source: cell("source"),
				Target: cell("target"),
				Schedule: domain.Schedule{
					Mode:     domain.ScheduleMode(strings.ToUpper(cell("schedule_mode"))),
					Expr:     cell("schedule_expr"),
					Timezone: cell("timezone"),
				},
			})
		default:
			return domain.SharingConfig{}, &domain.ValidationError{
				Msg: fmt.Sprintf("row %d: unknown record type %q", rowNum+2, record),
			}
		}
	}

	// Semantic validation happens at submission, where a failing config is
	// still persisted as a VALIDATION_FAILED work order.
	return cfg, nil
}

func applyMetadata(cfg *domain.SharingConfig, key, value string) {
	switch key {
	case "strategy":
		cfg.Strategy = domain.Strategy(strings.ToUpper(value))
	case "requester":
		cfg.Requester = value
	case "business_line":
		cfg.BusinessLine = value
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
