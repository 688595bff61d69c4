package ingestion_engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/queryforge/queryforge/internal/core/errs"
)

// ReadDoc reads a document and returns its content as an ordered list of
// text units: one unit per logical page/section. The format is inferred
// from the lowercased extension of docName.
//
// Read failures are returned, not swallowed; the pipeline decides whether
// a failing document aborts the build (it does not).
func ReadDoc(docName, localPath string) ([]string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(docName), "."))

	switch ext {
	case "txt", "html", "htm":
		// One unit per file. HTML markup is handled by the markup-aware
		// normalizer, not here.
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", docName, err)
		}
		return []string{string(data)}, nil

	case "csv":
		return readCSV(localPath)

	case "pdf":
		return readPDF(localPath)

	case "docx", "ppt", "pptx", "pptm":
		res, err := docconv.ConvertPath(localPath)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", docName, err)
		}
		// docconv loads the whole document as one section.
		return []string{res.Body}, nil

	default:
		return nil, errs.Wrap(errs.ErrUnsupportedFormat, "cannot read %s: extension %q", docName, ext)
	}
}

// readCSV maps each row to one single-line text unit of comma-joined
// "header: value" pairs, so a row stays one sentence through windowing and
// reads as a self-contained record during retrieval.
func readCSV(localPath string) ([]string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	units := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var sb strings.Builder
		for i, field := range row {
			if i > 0 {
				sb.WriteString(", ")
			}
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(field)
		}
		units = append(units, sb.String())
	}
	return units, nil
}
