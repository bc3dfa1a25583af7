package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/beingkumara/placement-pitcher/internal/config"
	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/emersion/go-imap"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"gorm.io/gorm"
)

var (
	// ErrMailboxUnreachable indicates a connection or auth failure
	ErrMailboxUnreachable = errors.New("mailbox unreachable")
	// ErrMailboxMisconfigured indicates required connection parameters are absent
	ErrMailboxMisconfigured = errors.New("mailbox not configured")
)

// maxRepliesPerCycle caps how many matched messages one poll cycle ingests.
const maxRepliesPerCycle = 50

// maxReplyChars is the stored length limit for a cleaned reply body.
const maxReplyChars = 1000

// Envelope is the lightweight view of one unseen mailbox message. From is
// the bare lowercased sender address.
type Envelope struct {
	UID       uint32
	From      string
	Subject   string
	MessageID string
}

// Mailbox is one open read-write session against the reply inbox. The
// production implementation speaks IMAP; tests substitute an in-memory one.
type Mailbox interface {
	UnseenNewestFirst() ([]Envelope, error)
	FetchRaw(uid uint32) ([]byte, error)
	MarkSeen(uid uint32) error
	Close() error
}

// MailboxDialer opens a fresh Mailbox session for one poll cycle.
type MailboxDialer interface {
	Dial() (Mailbox, error)
}

// ReplyService scans the inbox for unseen messages, matches senders to
// contacts, cleans quoted content, and records replies. A message is
// flagged seen only after every matched contact has been persisted.
type ReplyService struct {
	db         *gorm.DB
	dialer     MailboxDialer
	locks      *KeyedMutex
	logService *LogService
}

// NewReplyService creates a new ReplyService instance
func NewReplyService(db *gorm.DB, dialer MailboxDialer, locks *KeyedMutex, logService *LogService) *ReplyService {
	return &ReplyService{
		db:         db,
		dialer:     dialer,
		locks:      locks,
		logService: logService,
	}
}

// PollOnce runs one poll cycle. Connection failures abort the cycle; a
// failure on one message never aborts the rest of the batch. Context
// cancellation stops the cycle cleanly without error.
func (s *ReplyService) PollOnce(ctx context.Context) error {
	mbox, err := s.dialer.Dial()
	if err != nil {
		s.logService.LogReplyPoll(0, 0, 0, err)
		return err
	}
	defer mbox.Close()

	envelopes, err := mbox.UnseenNewestFirst()
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrMailboxUnreachable, err)
		s.logService.LogReplyPoll(0, 0, 0, err)
		return err
	}

	matched := 0
	persisted := 0
	for _, env := range envelopes {
		if ctx.Err() != nil {
			// Shutdown mid-cycle is a benign abort; unseen messages
			// stay eligible for the next cycle.
			break
		}
		if matched >= maxRepliesPerCycle {
			break
		}
		if env.From == "" {
			continue
		}

		var contacts []models.Contact
		if err := s.db.Where("email LIKE ?", "%"+env.From+"%").Find(&contacts).Error; err != nil {
			s.logService.LogError(0, models.LogModuleReply, "match", "Contact lookup failed", map[string]interface{}{
				"from":  env.From,
				"error": err.Error(),
			})
			continue
		}
		if len(contacts) == 0 {
			// Leave unmatched messages unseen for later cycles and
			// manual inspection.
			continue
		}
		matched++

		raw, err := mbox.FetchRaw(env.UID)
		if err != nil {
			s.logService.LogError(0, models.LogModuleReply, "fetch", "Message fetch failed", map[string]interface{}{
				"uid":   env.UID,
				"error": err.Error(),
			})
			continue
		}

		body := truncateReply(cleanReplyContent(extractTextBody(raw)))

		if !s.persistReply(contacts, env, body) {
			continue
		}
		persisted++

		if err := mbox.MarkSeen(env.UID); err != nil {
			// The reply is saved; next cycle may reprocess this
			// message and append a duplicate, never lose it.
			s.logService.LogWarn(0, models.LogModuleReply, "flag", "Failed to mark message seen", map[string]interface{}{
				"uid":   env.UID,
				"error": err.Error(),
			})
		}
	}

	s.logService.LogReplyPoll(len(envelopes), matched, persisted, nil)
	return nil
}

// persistReply appends the reply to every matched contact and reports
// whether all of them were persisted.
func (s *ReplyService) persistReply(contacts []models.Contact, env Envelope, body string) bool {
	ok := true
	for i := range contacts {
		contact := &contacts[i]

		s.locks.Lock(contact.ID)
		err := s.db.Transaction(func(tx *gorm.DB) error {
			record := &models.EmailReply{
				ContactID:  contact.ID,
				Subject:    env.Subject,
				Body:       body,
				ReceivedAt: time.Now(),
				FromEmail:  env.From,
				MessageID:  env.MessageID,
			}
			if err := tx.Create(record).Error; err != nil {
				return err
			}
			return tx.Model(&models.Contact{}).Where("id = ?", contact.ID).
				Update("status", models.StatusReplyReceived).Error
		})
		s.locks.Unlock(contact.ID)

		if err != nil {
			ok = false
			s.logService.LogError(0, models.LogModuleReply, "persist", "Failed to record reply", map[string]interface{}{
				"contact_id": contact.ID,
				"error":      err.Error(),
			})
		}
	}
	return ok
}

// extractTextBody pulls readable text out of a raw message, preferring
// plain-text parts and falling back to markup only when none exist.
func extractTextBody(raw []byte) string {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return ""
	}

	var plain, markup strings.Builder
	collectTextParts(entity, &plain, &markup)

	if plain.Len() > 0 {
		return plain.String()
	}
	return markup.String()
}

func collectTextParts(entity *message.Entity, plain, markup *strings.Builder) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			collectTextParts(part, plain, markup)
		}
		return
	}

	mediaType, _, _ := entity.Header.ContentType()
	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return
	}

	switch mediaType {
	case "text/plain":
		plain.Write(data)
	case "text/html":
		markup.Write(data)
	}
}

// quoteHeaderPattern matches attribution lines introducing quoted history.
var quoteHeaderPattern = regexp.MustCompile(`^On .+(wrote|sent):$`)

// cleanReplyContent keeps only the fresh content above the first quoted
// block. The first line that looks like a quote header stops the scan,
// discarding everything below it.
func cleanReplyContent(body string) string {
	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if quoteHeaderPattern.MatchString(trimmed) ||
			strings.HasPrefix(trimmed, "-----Original Message-----") ||
			strings.HasPrefix(trimmed, "From: ") ||
			strings.HasPrefix(trimmed, ">") {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// truncateReply bounds the stored body, marking truncation with an ellipsis.
func truncateReply(body string) string {
	runes := []rune(body)
	if len(runes) <= maxReplyChars {
		return body
	}
	return string(runes[:maxReplyChars]) + "..."
}

// IMAPMailboxDialer opens real IMAP sessions against the configured inbox.
type IMAPMailboxDialer struct {
	cfg config.IMAPConfig
}

// NewIMAPMailboxDialer creates a new IMAPMailboxDialer
func NewIMAPMailboxDialer(cfg config.IMAPConfig) *IMAPMailboxDialer {
	return &IMAPMailboxDialer{cfg: cfg}
}

// Dial connects, authenticates, and selects the reply folder read-write.
func (d *IMAPMailboxDialer) Dial() (Mailbox, error) {
	if d.cfg.Host == "" || d.cfg.Username == "" {
		return nil, ErrMailboxMisconfigured
	}

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var c *client.Client
	if d.cfg.UseSSL {
		tlsConfig := &tls.Config{ServerName: d.cfg.Host}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMailboxUnreachable, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrMailboxUnreachable, err)
		}
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMailboxUnreachable, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrMailboxUnreachable, err)
		}
	}

	c.Timeout = 2 * time.Minute

	// Some providers require client identification before login.
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		_, _ = idClient.ID(id.ID{
			id.FieldName:    "Placement Pitcher",
			id.FieldVersion: "1.0.0",
		})
	}

	if err := c.Login(d.cfg.Username, d.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: login failed: %v", ErrMailboxUnreachable, err)
	}

	folder := d.cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: failed to select %s: %v", ErrMailboxUnreachable, folder, err)
	}

	return &imapMailbox{c: c}, nil
}

// imapMailbox adapts an authenticated go-imap client to the Mailbox interface.
type imapMailbox struct {
	c *client.Client
}

func (m *imapMailbox) UnseenNewestFirst() ([]Envelope, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqSet, items, messages)
	}()

	var envelopes []Envelope
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		env := Envelope{
			UID:       msg.Uid,
			Subject:   msg.Envelope.Subject,
			MessageID: msg.Envelope.MessageId,
		}
		if len(msg.Envelope.From) > 0 {
			env.From = strings.ToLower(msg.Envelope.From[0].Address())
		}
		envelopes = append(envelopes, env)
	}
	if err := <-done; err != nil {
		return nil, err
	}

	sort.Slice(envelopes, func(i, j int) bool {
		return envelopes[i].UID > envelopes[j].UID
	})
	return envelopes, nil
}

func (m *imapMailbox) FetchRaw(uid uint32) ([]byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	// Peek so an undeliverable reply stays unseen for the next cycle.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		if msg == nil {
			continue
		}
		if body := msg.GetBody(section); body != nil {
			raw, _ = io.ReadAll(body)
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("no body for uid %d", uid)
	}
	return raw, nil
}

func (m *imapMailbox) MarkSeen(uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return m.c.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil)
}

func (m *imapMailbox) Close() error {
	return m.c.Logout()
}
