package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/beingkumara/placement-pitcher/internal/functions/extract"
	"gorm.io/gorm"
)

var (
	// ErrAllProvidersFailed indicates every backend in the chain failed
	ErrAllProvidersFailed = errors.New("all draft providers failed")
	// ErrContactNotFound indicates the contact does not exist or is not visible
	ErrContactNotFound = errors.New("contact not found")
)

// DraftResult is the parsed output of a successful generation. It is
// returned to the caller and never persisted.
type DraftResult struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Completer is the per-model generation call. Satisfied by ai.Client and
// by fakes in tests.
type Completer interface {
	Complete(model, prompt string) (string, error)
}

// DraftService generates outreach drafts by walking an ordered chain of
// generative backends until one returns a parseable subject/body pair.
type DraftService struct {
	db         *gorm.DB
	client     Completer
	models     []string
	extractor  extract.Extractor
	logService *LogService
}

// NewDraftService creates a new DraftService instance
func NewDraftService(db *gorm.DB, client Completer, chain []string, extractor extract.Extractor, logService *LogService) *DraftService {
	return &DraftService{
		db:         db,
		client:     client,
		models:     chain,
		extractor:  extractor,
		logService: logService,
	}
}

// GenerateDraft builds a prompt for the contact and tries each configured
// model in order. A backend or parse failure moves to the next model; only
// when every model has failed does the caller see an error.
func (s *DraftService) GenerateDraft(userID, contactID uint) (*DraftResult, error) {
	var contact models.Contact
	err := s.db.Preload("SentEmails").Preload("Replies").First(&contact, contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}

	var settings models.Settings
	if err := s.db.First(&settings).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	prompt := s.buildPrompt(&contact, &settings)

	var failures []string
	for i, model := range s.models {
		raw, err := s.client.Complete(model, prompt)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", model, err))
			continue
		}

		draft, err := parseDraft(raw)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", model, err))
			continue
		}

		s.logService.LogDraftGenerated(userID, contactID, model, i+1, nil)
		return draft, nil
	}

	err = fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(failures, "; "))
	s.logService.LogDraftGenerated(userID, contactID, "", len(s.models), err)
	return nil, err
}

// transcriptEntry is one line of the merged conversation history.
type transcriptEntry struct {
	at      time.Time
	speaker string
	subject string
	body    string
}

func (s *DraftService) buildPrompt(contact *models.Contact, settings *models.Settings) string {
	hrName := strings.TrimSpace(contact.HRName)
	if hrName == "" {
		hrName = "Hiring Manager"
	}

	contactContext := strings.TrimSpace(contact.Context)
	if contactContext == "" {
		contactContext = "General placement collaboration inquiry"
	}

	transcript, lastSubject := mergeTranscript(contact)

	var sb strings.Builder
	sb.WriteString("You are writing a professional placement outreach email on behalf of a university placement cell.\n\n")

	if settings.HasStats() {
		sb.WriteString("Placement statistics to mention where relevant:\n")
		sb.WriteString(settings.StatsText())
		sb.WriteString("\n")
	}
	if s.extractor != nil && settings.BrochureURL != "" {
		if brochure := s.extractor.ExtractText(settings.BrochureURL); brochure != "" {
			sb.WriteString("Placement brochure content for reference:\n")
			sb.WriteString(brochure)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Recipient: ")
	sb.WriteString(hrName)
	sb.WriteString(" at ")
	sb.WriteString(contact.EffectiveCompanyName())
	sb.WriteString("\n")
	sb.WriteString("Purpose: ")
	sb.WriteString(contactContext)
	sb.WriteString("\n\n")

	sb.WriteString("Previous conversation:\n")
	if len(transcript) == 0 {
		sb.WriteString("No previous conversation.\n")
	} else {
		for _, entry := range transcript {
			sb.WriteString(fmt.Sprintf("[%s]: %s\n%s\n", entry.speaker, entry.subject, entry.body))
		}
	}
	sb.WriteString("\n")

	if len(transcript) > 0 {
		sb.WriteString(fmt.Sprintf("This is a continuing thread. The subject MUST be exactly %q.\n", "Re: "+lastSubject))
	} else {
		sb.WriteString("This is the first email in the thread. Write an original, specific subject line.\n")
	}

	sb.WriteString("Respond with ONLY a JSON object with exactly two string fields, \"subject\" and \"body\". No other text.")

	return sb.String()
}

// mergeTranscript interleaves sent mail and replies chronologically and
// returns the subject of the most recent entry.
func mergeTranscript(contact *models.Contact) ([]transcriptEntry, string) {
	entries := make([]transcriptEntry, 0, len(contact.SentEmails)+len(contact.Replies))
	for _, sent := range contact.SentEmails {
		entries = append(entries, transcriptEntry{
			at:      sent.SentAt,
			speaker: "You",
			subject: sent.Subject,
			body:    sent.Body,
		})
	}
	for _, reply := range contact.Replies {
		entries = append(entries, transcriptEntry{
			at:      reply.ReceivedAt,
			speaker: "Recipient",
			subject: reply.Subject,
			body:    reply.Body,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	})

	if len(entries) == 0 {
		return entries, ""
	}
	return entries, entries[len(entries)-1].subject
}

// parseDraft unwraps an optional code fence and decodes the strict
// two-field draft object. Both fields must be non-empty.
func parseDraft(raw string) (*DraftResult, error) {
	cleaned := unwrapCodeFence(raw)

	var draft DraftResult
	if err := json.Unmarshal([]byte(cleaned), &draft); err != nil {
		return nil, fmt.Errorf("unparseable draft: %v", err)
	}
	if strings.TrimSpace(draft.Subject) == "" || strings.TrimSpace(draft.Body) == "" {
		return nil, errors.New("draft missing subject or body")
	}
	return &draft, nil
}

// unwrapCodeFence strips a surrounding markdown fence, tolerating both a
// language-tagged fence (```json) and a bare one (```).
func unwrapCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// Drop the fence line itself, tagged or not.
		firstLine := strings.TrimSpace(text[:idx])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{}") {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
