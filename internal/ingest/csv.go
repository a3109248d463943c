// Package ingest moves raw transit datasets from their sources into the
// store: CSV decoding, dataset download, import and periodic refresh.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"reflect"
	"strings"
)

// ErrNoCSV is returned when a zip archive holds no .csv entry.
var ErrNoCSV = errors.New("no csv file in archive")

// ParseCSV decodes every record of r into a T. Columns are matched to the
// string fields of T by their csv tag; unknown columns are ignored and
// missing ones leave the field empty.
func ParseCSV[T any](r io.Reader) ([]T, error) {
	reader := newReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fieldMap := buildFieldMap[T](header)

	var results []T
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		results = append(results, decodeRecord[T](record, fieldMap))
	}
	return results, nil
}

// ParseCSVFile decodes the CSV file at name.
func ParseCSVFile[T any](name string) ([]T, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	rows, err := ParseCSV[T](f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return rows, nil
}

// ParseZipCSV decodes the first .csv entry of a zip archive held in memory.
// Static datasets are shipped as single-file archives.
func ParseZipCSV[T any](data []byte) ([]T, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".csv") {
			continue
		}
		rows, err := parseZipFile[T](f)
		if err != nil {
			return nil, "", fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		return rows, f.Name, nil
	}
	return nil, "", ErrNoCSV
}

func parseZipFile[T any](f *zip.File) ([]T, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()
	return ParseCSV[T](rc)
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

type fieldMapping struct {
	csvIndex   int
	fieldIndex int
}

// buildFieldMap maps CSV column positions to struct field positions.
func buildFieldMap[T any](header []string) []fieldMapping {
	var t T
	typ := reflect.TypeOf(t)

	tagToField := make(map[string]int)
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Type.Kind() != reflect.String {
			continue
		}
		if tag := f.Tag.Get("csv"); tag != "" && tag != "-" {
			tagToField[tag] = i
		}
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\xef\xbb\xbf")
	}

	var mappings []fieldMapping
	for csvIdx, colName := range header {
		if fieldIdx, ok := tagToField[strings.TrimSpace(colName)]; ok {
			mappings = append(mappings, fieldMapping{csvIndex: csvIdx, fieldIndex: fieldIdx})
		}
	}
	return mappings
}

func decodeRecord[T any](record []string, fieldMap []fieldMapping) T {
	var t T
	v := reflect.ValueOf(&t).Elem()
	for _, fm := range fieldMap {
		if fm.csvIndex < len(record) {
			v.Field(fm.fieldIndex).SetString(record[fm.csvIndex])
		}
	}
	return t
}
