package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pawn-pos/internal/domain"
	pricingrepo "pawn-pos/internal/repository/pricing"
)

type PercentageWriter interface {
	UpsertMetalType(ctx context.Context, mt pricingrepo.MetalType) error
	UpsertPercentage(ctx context.Context, metalTypeID int, tt domain.TransactionType, pct decimal.Decimal) error
}

// CSVImporter loads a price estimate percentage table. Each row describes one
// metal type with an optional percentage column per estimate type:
//
//	metal_type_id,metal,name,pawn,buy,retail
//	3,gold,14K Gold,50,60,120
type CSVImporter struct {
	reader *csv.Reader
	repo   PercentageWriter
}

func NewCSVImporter(r io.Reader, repo PercentageWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // spreadsheet exports drop trailing empty cells
	csvr.TrimLeadingSpace = true
	return &CSVImporter{reader: csvr, repo: repo}
}

type csvRow struct {
	line        int
	metalType   pricingrepo.MetalType
	percentages map[domain.TransactionType]decimal.Decimal
}

// Result counts what Run wrote.
type Result struct {
	MetalTypes  int
	Percentages int
}

// Run parses every row before writing anything, so a malformed file leaves the
// table untouched.
func (i *CSVImporter) Run(ctx context.Context) (Result, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["metal_type_id"]; !ok {
		return Result{}, errors.New("missing metal_type_id column")
	}

	var rows []csvRow
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Result{}, fmt.Errorf("read row %d: %w", line, err)
		}
		row, err := parseRow(line, record, index)
		if err != nil {
			return Result{}, err
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}

	var res Result
	for _, row := range rows {
		if row.metalType.Metal != "" {
			if err := i.repo.UpsertMetalType(ctx, row.metalType); err != nil {
				return res, fmt.Errorf("upsert metal type %d: %w", row.metalType.ID, err)
			}
			res.MetalTypes++
		}
		for _, tt := range domain.EstimateTypes {
			pct, ok := row.percentages[tt]
			if !ok {
				continue
			}
			if err := i.repo.UpsertPercentage(ctx, row.metalType.ID, tt, pct); err != nil {
				return res, fmt.Errorf("upsert percentage %d/%s: %w", row.metalType.ID, tt, err)
			}
			res.Percentages++
		}
	}
	return res, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(line int, record []string, index map[string]int) (*csvRow, error) {
	idStr := pick(record, index, "metal_type_id")
	if idStr == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("row %d: invalid metal_type_id %q", line, idStr)
	}

	row := &csvRow{
		line: line,
		metalType: pricingrepo.MetalType{
			ID:    id,
			Metal: domain.Metal(strings.ToLower(pick(record, index, "metal"))),
			Name:  pick(record, index, "name"),
		},
		percentages: make(map[domain.TransactionType]decimal.Decimal),
	}
	if row.metalType.Metal != "" && row.metalType.Name == "" {
		row.metalType.Name = string(row.metalType.Metal)
	}

	for _, tt := range domain.EstimateTypes {
		raw := strings.TrimSuffix(pick(record, index, string(tt)), "%")
		if raw == "" {
			continue
		}
		pct, err := decimal.NewFromString(raw)
		if err != nil || pct.IsNegative() {
			return nil, fmt.Errorf("row %d: invalid %s percentage %q", line, tt, raw)
		}
		row.percentages[tt] = pct
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
