package provider

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"TdxBridge/internal/model"
)

// reportHeader is the fixed little-endian header of a report table.
type reportHeader struct {
	Version    int16
	ReportDate uint32
	Count      uint16
	_          uint32
	ReportSize uint32
	_          uint32
}

// reportItem locates one security's values inside the table.
type reportItem struct {
	Code   [6]byte
	Market byte
	Offset uint32
}

const (
	reportHeaderSize = 20
	reportItemSize   = 11
)

var errNoTable = errors.New("archive holds no .dat table")

// DecodeReport opens a gpcw archive and decodes its report table.
func DecodeReport(path string) ([]model.FinancialRecord, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".dat") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return DecodeReportTable(data)
	}
	return nil, errNoTable
}

// DecodeReportTable decodes the raw table held inside a gpcw archive.
// Each row carries code, report_date and col1..colN; non-finite values become nil.
func DecodeReportTable(data []byte) ([]model.FinancialRecord, error) {
	var hdr reportHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.ReportSize%4 != 0 {
		return nil, fmt.Errorf("report size %d is not a multiple of 4", hdr.ReportSize)
	}
	indexEnd := reportHeaderSize + int(hdr.Count)*reportItemSize
	if indexEnd > len(data) {
		return nil, fmt.Errorf("index of %d items exceeds table size %d", hdr.Count, len(data))
	}

	reportDate := fmt.Sprintf("%08d", hdr.ReportDate)
	cols := int(hdr.ReportSize / 4)
	records := make([]model.FinancialRecord, 0, hdr.Count)

	for i := 0; i < int(hdr.Count); i++ {
		var item reportItem
		off := reportHeaderSize + i*reportItemSize
		if err := binary.Read(bytes.NewReader(data[off:off+reportItemSize]), binary.LittleEndian, &item); err != nil {
			return nil, fmt.Errorf("read item %d: %w", i, err)
		}
		start := int(item.Offset)
		end := start + int(hdr.ReportSize)
		if start < indexEnd || end > len(data) {
			return nil, fmt.Errorf("item %d: offset %d out of range", i, item.Offset)
		}

		values := make([]float32, cols)
		if err := binary.Read(bytes.NewReader(data[start:end]), binary.LittleEndian, values); err != nil {
			return nil, fmt.Errorf("read values of item %d: %w", i, err)
		}

		rec := make(model.FinancialRecord, cols+2)
		rec["code"] = strings.TrimRight(string(item.Code[:]), "\x00 ")
		rec["report_date"] = reportDate
		for j, v := range values {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				rec["col"+strconv.Itoa(j+1)] = nil
				continue
			}
			rec["col"+strconv.Itoa(j+1)] = f
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseArchive decodes dir/filename and classifies failures as parse errors.
func parseArchive(dir, filename string) ([]model.FinancialRecord, error) {
	records, err := DecodeReport(filepath.Join(dir, filepath.Base(filename)))
	if err != nil {
		return nil, model.Wrap(model.KindParse, err, "parse %s", filename)
	}
	return records, nil
}
