package jobs

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"leadgenBack/internal/models"
)

// headerAliases maps normalized spreadsheet headers onto lead fields.
var headerAliases = map[string]string{
	"email":          "email",
	"e-mail":         "email",
	"email address":  "email",
	"work email":     "email",
	"first name":     "first_name",
	"firstname":      "first_name",
	"first":          "first_name",
	"given name":     "first_name",
	"last name":      "last_name",
	"lastname":       "last_name",
	"last":           "last_name",
	"surname":        "last_name",
	"title":          "title",
	"job title":      "title",
	"position":       "title",
	"seniority":      "seniority",
	"company":        "company",
	"company name":   "company",
	"organization":   "company",
	"domain":         "company_domain",
	"company domain": "company_domain",
	"website":        "company_domain",
	"company size":   "company_size",
	"employees":      "company_size",
	"size":           "company_size",
	"phone":          "phone",
	"phone number":   "phone",
	"mobile":         "phone",
	"linkedin":       "linkedin_url",
	"linkedin url":   "linkedin_url",
	"city":           "city",
	"country":        "country",
	"tags":           "tags",
}

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ParseLeadFile reads the header row and returns one field map per data row. Rows that
// are completely empty are skipped.
func ParseLeadFile(format string, data []byte) ([]map[string]string, error) {
	var records [][]string
	switch format {
	case FormatCSV:
		r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrInvalidUpload, err)
			}
			records = append(records, rec)
		}
	case FormatXLSX:
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidUpload, err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", models.ErrInvalidUpload)
		}
		records, err = f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidUpload, err)
		}
	default:
		return nil, fmt.Errorf("%w: format %q", models.ErrInvalidUpload, format)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", models.ErrInvalidUpload)
	}
	columns := make([]string, len(records[0]))
	hasEmail := false
	for i, h := range records[0] {
		key := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(h, "_", " ")), " "))
		columns[i] = headerAliases[key]
		if columns[i] == "email" {
			hasEmail = true
		}
	}
	if !hasEmail {
		return nil, fmt.Errorf("%w: no email column", models.ErrInvalidUpload)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(columns))
		empty := true
		for i, v := range rec {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				empty = false
				row[columns[i]] = v
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func leadFromRow(workspaceID string, row map[string]string) models.Lead {
	lead := models.Lead{
		WorkspaceID:   workspaceID,
		Email:         strings.ToLower(row["email"]),
		FirstName:     row["first_name"],
		LastName:      row["last_name"],
		Title:         row["title"],
		Seniority:     strings.ToLower(row["seniority"]),
		Company:       row["company"],
		CompanyDomain: row["company_domain"],
		CompanySize:   row["company_size"],
		Phone:         row["phone"],
		LinkedInURL:   row["linkedin_url"],
		City:          row["city"],
		Country:       row["country"],
		Source:        models.LeadSourceBulkUpload,
		Status:        models.LeadStatusNew,
		Tags:          []string{},
	}
	for _, t := range strings.FieldsFunc(row["tags"], func(r rune) bool { return r == ';' || r == ',' || r == '|' }) {
		if t = strings.TrimSpace(t); t != "" {
			lead.Tags = append(lead.Tags, t)
		}
	}
	return lead
}
