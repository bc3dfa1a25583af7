package services

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/beingkumara/placement-pitcher/internal/config"
	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const smtpConnectTimeout = 10 * time.Second

// ErrTransportUnavailable indicates the outbound transport is unreachable
// or misconfigured. No contact state is mutated when this is returned.
var ErrTransportUnavailable = errors.New("mail transport unavailable")

// Transport delivers a fully rendered message. The production
// implementation speaks SMTP; tests substitute a recorder.
type Transport interface {
	Send(from string, recipients []string, msg []byte) error
}

// Attachment is one file included with an outbound message.
type Attachment struct {
	Filename string
	Content  []byte
}

// MailerService renders and transmits outreach mail, then records the sent
// message on the contact. Recording happens only after the transport
// confirms transmission.
type MailerService struct {
	db         *gorm.DB
	transport  Transport
	from       string
	locks      *KeyedMutex
	logService *LogService
}

// NewMailerService creates a new MailerService instance
func NewMailerService(db *gorm.DB, transport Transport, from string, locks *KeyedMutex, logService *LogService) *MailerService {
	return &MailerService{
		db:         db,
		transport:  transport,
		from:       from,
		locks:      locks,
		logService: logService,
	}
}

// Send transmits a message to contactEmail and appends the sent record.
// inReplyTo is the thread id of the message being answered, empty for a
// fresh thread. The contact is resolved within the acting user's team:
// exact match first, containment as a legacy fallback.
func (s *MailerService) Send(actingUser *models.User, contactEmail, subject, body string, attachments []Attachment, inReplyTo string) error {
	contact, err := s.resolveContact(actingUser.TeamID, contactEmail)
	if err != nil {
		return err
	}

	headers := NewThreadHeaders(inReplyTo)
	msg := buildMessage(s.from, contactEmail, subject, body, attachments, headers)

	if err := s.transport.Send(s.from, []string{contactEmail}, msg); err != nil {
		s.logService.LogEmailSend(actingUser.ID, contact.ID, contactEmail, subject, headers.MessageID, inReplyTo != "", err)
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	names := make([]string, 0, len(attachments))
	for _, att := range attachments {
		names = append(names, att.Filename)
	}

	s.locks.Lock(contact.ID)
	defer s.locks.Unlock(contact.ID)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		record := &models.SentEmail{
			ContactID:       contact.ID,
			Subject:         subject,
			Body:            body,
			SentAt:          time.Now(),
			MessageID:       headers.MessageID,
			AttachmentNames: strings.Join(names, ","),
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return tx.Model(&models.Contact{}).Where("id = ?", contact.ID).
			Update("status", models.StatusSent).Error
	})
	if err != nil {
		return err
	}

	s.logService.LogEmailSend(actingUser.ID, contact.ID, contactEmail, subject, headers.MessageID, inReplyTo != "", nil)
	return nil
}

// SendSystemEmail sends a plain notification that is not tied to a
// contact thread, e.g. an assignment notice or invitation.
func (s *MailerService) SendSystemEmail(to, subject, body string) error {
	headers := NewThreadHeaders("")
	msg := buildMessage(s.from, to, subject, body, nil, headers)
	if err := s.transport.Send(s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return nil
}

// resolveContact finds the team's contact for an email address. Exact
// case-insensitive match wins; containment covers addresses stored with
// formatting noise.
func (s *MailerService) resolveContact(teamID uint, email string) (*models.Contact, error) {
	needle := strings.ToLower(strings.TrimSpace(email))

	var contact models.Contact
	err := s.db.Where("team_id = ? AND LOWER(email) = ?", teamID, needle).First(&contact).Error
	if err == nil {
		return &contact, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = s.db.Where("team_id = ? AND LOWER(email) LIKE ?", teamID, "%"+needle+"%").First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// buildMessage renders the full RFC 5322 message. The plain body goes out
// as HTML with line breaks converted to <br> markup.
func buildMessage(from, to, subject, body string, attachments []Attachment, headers ThreadHeaders) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: =?UTF-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(subject))))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", headers.MessageID))
	if headers.InReplyTo != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", headers.InReplyTo))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", headers.References))
	}
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")

	htmlBody := strings.ReplaceAll(body, "\n", "<br>")

	if len(attachments) == 0 {
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(htmlBody))))
		buf.WriteString("\r\n")
		return buf.Bytes()
	}

	boundary := generateBoundary()
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(htmlBody))))
	buf.WriteString("\r\n")

	for _, att := range attachments {
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		encodedFilename := fmt.Sprintf("=?UTF-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(att.Filename)))
		buf.WriteString(fmt.Sprintf("Content-Type: application/octet-stream; name=\"%s\"\r\n", encodedFilename))
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		buf.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", encodedFilename))
		buf.WriteString("\r\n")
		buf.WriteString(wrapBase64(base64.StdEncoding.EncodeToString(att.Content)))
		buf.WriteString("\r\n")
	}

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return buf.Bytes()
}

// generateBoundary generates a MIME boundary
func generateBoundary() string {
	return "----=_Part_" + uuid.NewString()
}

// wrapBase64 wraps base64 content to 76 characters per line (MIME standard)
func wrapBase64(content string) string {
	const lineLength = 76
	var sb strings.Builder
	for len(content) > lineLength {
		sb.WriteString(content[:lineLength])
		sb.WriteString("\r\n")
		content = content[lineLength:]
	}
	sb.WriteString(content)
	return sb.String()
}

// loginAuth implements smtp.Auth for LOGIN authentication, which several
// providers require instead of PLAIN.
type loginAuth struct {
	username, password string
}

func newLoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch strings.ToLower(strings.TrimSpace(string(fromServer))) {
		case "username:":
			return []byte(a.username), nil
		case "password:":
			return []byte(a.password), nil
		default:
			return nil, errors.New("unknown LOGIN challenge")
		}
	}
	return nil, nil
}

// SMTPTransport is the production Transport speaking SMTP with SSL or
// opportunistic STARTTLS.
type SMTPTransport struct {
	cfg config.SMTPConfig
}

// NewSMTPTransport creates a new SMTPTransport
func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

// Send delivers msg to recipients over a fresh SMTP session.
func (t *SMTPTransport) Send(from string, recipients []string, msg []byte) error {
	if t.cfg.Host == "" || t.cfg.Username == "" {
		return errors.New("smtp transport not configured")
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)

	var client *smtp.Client
	if t.cfg.UseSSL {
		tlsConfig := &tls.Config{ServerName: t.cfg.Host}
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: smtpConnectTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("smtp connect failed: %v", err)
		}
		client, err = smtp.NewClient(conn, t.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake failed: %v", err)
		}
	} else {
		var err error
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp connect failed: %v", err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			// Continue in the clear if the upgrade is refused.
			_ = client.StartTLS(&tls.Config{ServerName: t.cfg.Host})
		}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	if err := client.Auth(auth); err != nil {
		if err2 := client.Auth(newLoginAuth(t.cfg.Username, t.cfg.Password)); err2 != nil {
			return fmt.Errorf("authentication failed (tried PLAIN and LOGIN): %v", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %v", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO failed for %s: %v", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %v", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %v", err)
	}

	// Some servers return an odd response to QUIT after a successful send.
	client.Quit()
	return nil
}
