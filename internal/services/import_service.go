package services

import (
	"errors"
	"io"
	"strings"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ErrNoImportableRows indicates the sheet had no usable contact rows
var ErrNoImportableRows = errors.New("no importable rows found")

// ImportResult summarizes one spreadsheet import run.
type ImportResult struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// ImportService loads contacts in bulk from an xlsx sheet. Rows missing a
// company name or email, and rows duplicating an existing contact's email,
// are skipped rather than failing the run.
type ImportService struct {
	db         *gorm.DB
	logService *LogService
}

// NewImportService creates a new ImportService instance
func NewImportService(db *gorm.DB, logService *LogService) *ImportService {
	return &ImportService{
		db:         db,
		logService: logService,
	}
}

// ImportContacts reads the first sheet of the workbook and creates contacts
// for the user's team. The first row is treated as a header row.
func (s *ImportService) ImportContacts(user *models.User, filename string, r io.Reader) (*ImportResult, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoImportableRows
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrNoImportableRows
	}

	columns := mapColumns(rows[0])
	if _, ok := columns["company_name"]; !ok {
		return nil, errors.New("sheet is missing a company_name column")
	}

	result := &ImportResult{}
	for _, row := range rows[1:] {
		company := cell(row, columns, "company_name")
		email := strings.ToLower(cell(row, columns, "email"))
		if company == "" || email == "" {
			result.Skipped++
			continue
		}

		var count int64
		if err := s.db.Model(&models.Contact{}).
			Where("team_id = ? AND LOWER(email) = ?", user.TeamID, email).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			result.Skipped++
			continue
		}

		contact := &models.Contact{
			CompanyName: company,
			HRName:      cell(row, columns, "hr_name"),
			Email:       email,
			Phone:       cell(row, columns, "phone"),
			LinkedIn:    cell(row, columns, "linkedin"),
			Context:     cell(row, columns, "context"),
			Status:      models.StatusPending,
			TeamID:      user.TeamID,
			CreatedByID: user.ID,
		}
		if !user.IsCore() {
			contact.AssignedToID = &user.ID
		}

		if err := s.db.Create(contact).Error; err != nil {
			result.Skipped++
			continue
		}
		result.Saved++
	}

	s.logService.LogImport(user.ID, filename, result.Saved, result.Skipped, nil)

	if result.Saved == 0 && result.Skipped == 0 {
		return nil, ErrNoImportableRows
	}
	return result, nil
}

// mapColumns maps normalized header names to column indices. Headers are
// lowercased, trimmed, and spaces become underscores, so "HR Name" and
// "hr_name" both land on the same key.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		if key != "" {
			columns[key] = i
		}
	}
	return columns
}

func cell(row []string, columns map[string]int, key string) string {
	idx, ok := columns[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
