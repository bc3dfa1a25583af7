package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"gorm.io/gorm"
)

// LogService handles logging operations
type LogService struct {
	db       *gorm.DB
	logLevel models.LogLevel
}

// NewLogService creates a new LogService instance
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{
		db:       db,
		logLevel: models.LogLevelInfo,
	}
}

// NewLogServiceWithLevel creates a new LogService instance with specified log level
func NewLogServiceWithLevel(db *gorm.DB, level string) *LogService {
	return &LogService{
		db:       db,
		logLevel: parseLogLevel(level),
	}
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) models.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return models.LogLevelDebug
	case "INFO":
		return models.LogLevelInfo
	case "WARN", "WARNING":
		return models.LogLevelWarn
	case "ERROR":
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}

// shouldLog checks if a log entry should be recorded based on log level
func (s *LogService) shouldLog(level models.LogLevel) bool {
	levelPriority := map[models.LogLevel]int{
		models.LogLevelDebug: 0,
		models.LogLevelInfo:  1,
		models.LogLevelWarn:  2,
		models.LogLevelError: 3,
	}

	return levelPriority[level] >= levelPriority[s.logLevel]
}

// LogEntry represents a log entry to be created
type LogEntry struct {
	UserID  uint
	Level   models.LogLevel
	Module  models.LogModule
	Action  string
	Message string
	Details interface{} // Will be serialized to JSON
}

// Log creates a new log entry
func (s *LogService) Log(entry LogEntry) error {
	if !s.shouldLog(entry.Level) {
		return nil
	}

	var detailsJSON string
	if entry.Details != nil {
		bytes, err := json.Marshal(entry.Details)
		if err != nil {
			detailsJSON = "{}"
		} else {
			detailsJSON = string(bytes)
		}
	}

	log := &models.Log{
		UserID:  entry.UserID,
		Level:   string(entry.Level),
		Module:  string(entry.Module),
		Action:  entry.Action,
		Message: entry.Message,
		Details: detailsJSON,
	}

	return s.db.Create(log).Error
}

// LogInfo creates an INFO level log entry
func (s *LogService) LogInfo(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{
		UserID:  userID,
		Level:   models.LogLevelInfo,
		Module:  module,
		Action:  action,
		Message: message,
		Details: details,
	})
}

// LogWarn creates a WARN level log entry
func (s *LogService) LogWarn(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{
		UserID:  userID,
		Level:   models.LogLevelWarn,
		Module:  module,
		Action:  action,
		Message: message,
		Details: details,
	})
}

// LogError creates an ERROR level log entry
func (s *LogService) LogError(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{
		UserID:  userID,
		Level:   models.LogLevelError,
		Module:  module,
		Action:  action,
		Message: message,
		Details: details,
	})
}

// LogDebug creates a DEBUG level log entry
func (s *LogService) LogDebug(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.Log(LogEntry{
		UserID:  userID,
		Level:   models.LogLevelDebug,
		Module:  module,
		Action:  action,
		Message: message,
		Details: details,
	})
}

// DraftDetails represents details for draft generation logs
type DraftDetails struct {
	ContactID uint   `json:"contact_id"`
	Model     string `json:"model,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// LogDraftGenerated logs a draft generation attempt
func (s *LogService) LogDraftGenerated(userID uint, contactID uint, model string, attempts int, err error) error {
	details := DraftDetails{
		ContactID: contactID,
		Model:     model,
		Attempts:  attempts,
	}

	level := models.LogLevelInfo
	message := "Draft generated"

	if err != nil {
		level = models.LogLevelError
		details.ErrorMsg = err.Error()
		message = "Draft generation failed"
	}

	return s.Log(LogEntry{
		UserID:  userID,
		Level:   level,
		Module:  models.LogModuleDraft,
		Action:  "generate",
		Message: message,
		Details: details,
	})
}

// SendDetails represents details for outbound mail logs
type SendDetails struct {
	ContactID uint   `json:"contact_id,omitempty"`
	To        string `json:"to"`
	Subject   string `json:"subject,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Threaded  bool   `json:"threaded"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// LogEmailSend logs an outbound send attempt
func (s *LogService) LogEmailSend(userID uint, contactID uint, to, subject, messageID string, threaded bool, err error) error {
	details := SendDetails{
		ContactID: contactID,
		To:        to,
		Subject:   subject,
		MessageID: messageID,
		Threaded:  threaded,
	}

	level := models.LogLevelInfo
	message := "Email sent"

	if err != nil {
		level = models.LogLevelError
		details.ErrorMsg = err.Error()
		message = "Failed to send email"
	}

	return s.Log(LogEntry{
		UserID:  userID,
		Level:   level,
		Module:  models.LogModuleMail,
		Action:  "send",
		Message: message,
		Details: details,
	})
}

// PollDetails represents details for reply poll logs
type PollDetails struct {
	Candidates int    `json:"candidates"`
	Matched    int    `json:"matched"`
	Persisted  int    `json:"persisted"`
	ErrorMsg   string `json:"error_msg,omitempty"`
}

// LogReplyPoll logs the outcome of a mailbox poll cycle
func (s *LogService) LogReplyPoll(candidates, matched, persisted int, err error) error {
	details := PollDetails{
		Candidates: candidates,
		Matched:    matched,
		Persisted:  persisted,
	}

	level := models.LogLevelInfo
	message := "Reply poll completed"

	if err != nil {
		level = models.LogLevelError
		details.ErrorMsg = err.Error()
		message = "Reply poll failed"
	}

	return s.Log(LogEntry{
		UserID:  0,
		Level:   level,
		Module:  models.LogModuleReply,
		Action:  "poll",
		Message: message,
		Details: details,
	})
}

// AuthDetails represents details for authentication logs
type AuthDetails struct {
	Email    string `json:"email,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
	Status   string `json:"status"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// LogLogin logs a login attempt
func (s *LogService) LogLogin(userID uint, email, clientIP string, success bool, err error) error {
	details := AuthDetails{
		Email:    email,
		ClientIP: clientIP,
		Status:   "success",
	}

	level := models.LogLevelInfo
	message := "User logged in"

	if !success {
		level = models.LogLevelWarn
		details.Status = "failed"
		message = "Login attempt failed"
		if err != nil {
			details.ErrorMsg = err.Error()
		}
	}

	return s.Log(LogEntry{
		UserID:  userID,
		Level:   level,
		Module:  models.LogModuleAuth,
		Action:  "login",
		Message: message,
		Details: details,
	})
}

// ImportDetails represents details for spreadsheet import logs
type ImportDetails struct {
	Filename string `json:"filename,omitempty"`
	Saved    int    `json:"saved"`
	Skipped  int    `json:"skipped"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// LogImport logs a contact import run
func (s *LogService) LogImport(userID uint, filename string, saved, skipped int, err error) error {
	details := ImportDetails{
		Filename: filename,
		Saved:    saved,
		Skipped:  skipped,
	}

	level := models.LogLevelInfo
	message := "Contacts imported"

	if err != nil {
		level = models.LogLevelError
		details.ErrorMsg = err.Error()
		message = "Contact import failed"
	}

	return s.Log(LogEntry{
		UserID:  userID,
		Level:   level,
		Module:  models.LogModuleImport,
		Action:  "import",
		Message: message,
		Details: details,
	})
}

// LogQuery represents query parameters for log retrieval
type LogQuery struct {
	UserID    uint
	Level     string
	Module    string
	Action    string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	Limit     int
}

// LogQueryResult represents the result of a log query
type LogQueryResult struct {
	Total int64
	Logs  []models.Log
}

// QueryLogs retrieves logs based on query parameters
func (s *LogService) QueryLogs(query LogQuery) (*LogQueryResult, error) {
	db := s.db.Model(&models.Log{})

	if query.UserID > 0 {
		db = db.Where("user_id = ?", query.UserID)
	}
	if query.Level != "" {
		db = db.Where("level = ?", query.Level)
	}
	if query.Module != "" {
		db = db.Where("module = ?", query.Module)
	}
	if query.Action != "" {
		db = db.Where("action = ?", query.Action)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}

	offset := (query.Page - 1) * query.Limit

	var logs []models.Log
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.Limit).Find(&logs).Error; err != nil {
		return nil, err
	}

	return &LogQueryResult{
		Total: total,
		Logs:  logs,
	}, nil
}

// GetRecentLogs retrieves the most recent logs
func (s *LogService) GetRecentLogs(limit int) ([]models.Log, error) {
	if limit <= 0 {
		limit = 100
	}

	var logs []models.Log
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
