package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fakeMessage is one message in the fake inbox.
type fakeMessage struct {
	env  Envelope
	raw  []byte
	seen bool
}

// fakeMailbox is an in-memory Mailbox.
type fakeMailbox struct {
	messages     []*fakeMessage
	failMarkSeen bool
	failFetchUID uint32
	closed       bool
}

func (m *fakeMailbox) UnseenNewestFirst() ([]Envelope, error) {
	var envs []Envelope
	for _, msg := range m.messages {
		if !msg.seen {
			envs = append(envs, msg.env)
		}
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].UID > envs[j].UID })
	return envs, nil
}

func (m *fakeMailbox) FetchRaw(uid uint32) ([]byte, error) {
	if m.failFetchUID != 0 && uid == m.failFetchUID {
		return nil, errors.New("fetch failed")
	}
	for _, msg := range m.messages {
		if msg.env.UID == uid {
			return msg.raw, nil
		}
	}
	return nil, errors.New("no such message")
}

func (m *fakeMailbox) MarkSeen(uid uint32) error {
	if m.failMarkSeen {
		return errors.New("store failed")
	}
	for _, msg := range m.messages {
		if msg.env.UID == uid {
			msg.seen = true
		}
	}
	return nil
}

func (m *fakeMailbox) Close() error {
	m.closed = true
	return nil
}

// fakeDialer hands out the same fake mailbox every cycle.
type fakeDialer struct {
	mbox *fakeMailbox
	err  error
}

func (d *fakeDialer) Dial() (Mailbox, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.mbox, nil
}

func plainMessage(from, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\nSubject: %s\r\nContent-Type: text/plain\r\n\r\n%s", from, subject, body))
}

func TestPollOnce_EndToEnd(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")

	mbox := &fakeMailbox{messages: []*fakeMessage{{
		env: Envelope{UID: 7, From: "hr@acme.com", Subject: "Re: Hello", MessageID: "<abc@mail>"},
		raw: plainMessage("hr@acme.com", "Re: Hello", "Interested!\n\nOn Tue wrote:\n> prior"),
	}}}
	svc := NewReplyService(db, &fakeDialer{mbox: mbox}, NewKeyedMutex(), NewLogService(db))

	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	var got models.Contact
	if err := db.Preload("Replies").First(&got, contact.ID).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got.Status != models.StatusReplyReceived {
		t.Errorf("status = %q, want %q", got.Status, models.StatusReplyReceived)
	}
	if len(got.Replies) != 1 {
		t.Fatalf("replies length = %d, want 1", len(got.Replies))
	}
	if got.Replies[0].Body != "Interested!" {
		t.Errorf("cleaned body = %q, want %q", got.Replies[0].Body, "Interested!")
	}
	if got.Replies[0].MessageID != "<abc@mail>" {
		t.Errorf("source message id = %q, want %q", got.Replies[0].MessageID, "<abc@mail>")
	}
	if !mbox.messages[0].seen {
		t.Error("processed message must be flagged seen")
	}
	if !mbox.closed {
		t.Error("session must be closed after the cycle")
	}

	// A second cycle finds nothing unseen and must not duplicate.
	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("second PollOnce failed: %v", err)
	}
	var replyCount int64
	db.Model(&models.EmailReply{}).Count(&replyCount)
	if replyCount != 1 {
		t.Errorf("reply count after second cycle = %d, want 1", replyCount)
	}
}

func TestPollOnce_UnmatchedStaysUnseen(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	seedContact(t, db, user, "hr@acme.com")

	mbox := &fakeMailbox{messages: []*fakeMessage{{
		env: Envelope{UID: 3, From: "stranger@other.com", Subject: "Hi"},
		raw: plainMessage("stranger@other.com", "Hi", "Hello?"),
	}}}
	svc := NewReplyService(db, &fakeDialer{mbox: mbox}, NewKeyedMutex(), NewLogService(db))

	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if mbox.messages[0].seen {
		t.Error("unmatched message must stay unseen for later cycles")
	}
	var replyCount int64
	db.Model(&models.EmailReply{}).Count(&replyCount)
	if replyCount != 0 {
		t.Errorf("no reply may be recorded for an unmatched message")
	}
}

func TestPollOnce_PersistThenFlagCrashSimulation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")

	mbox := &fakeMailbox{
		failMarkSeen: true,
		messages: []*fakeMessage{{
			env: Envelope{UID: 5, From: "hr@acme.com", Subject: "Re: Hello"},
			raw: plainMessage("hr@acme.com", "Re: Hello", "Count me in"),
		}},
	}
	svc := NewReplyService(db, &fakeDialer{mbox: mbox}, NewKeyedMutex(), NewLogService(db))

	// The flag step fails after persistence, simulating a crash between
	// the two: the reply is saved, the message stays unseen.
	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	var replyCount int64
	db.Model(&models.EmailReply{}).Where("contact_id = ?", contact.ID).Count(&replyCount)
	if replyCount != 1 {
		t.Fatalf("reply must be persisted before flagging, got %d", replyCount)
	}
	if mbox.messages[0].seen {
		t.Fatal("message must remain unseen when flagging fails")
	}

	// Recovery cycle: the message is reprocessed. A duplicate record is
	// acceptable; a lost reply is not.
	mbox.failMarkSeen = false
	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("recovery PollOnce failed: %v", err)
	}
	db.Model(&models.EmailReply{}).Where("contact_id = ?", contact.ID).Count(&replyCount)
	if replyCount < 1 {
		t.Errorf("reply data was lost across cycles")
	}
	if !mbox.messages[0].seen {
		t.Error("message must be flagged seen after recovery")
	}
}

func TestPollOnce_PerCandidateIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	seedContact(t, db, user, "hr@acme.com")
	seedContact(t, db, user, "talent@globex.com")

	mbox := &fakeMailbox{
		failFetchUID: 9,
		messages: []*fakeMessage{
			{
				env: Envelope{UID: 9, From: "hr@acme.com", Subject: "Broken"},
				raw: nil,
			},
			{
				env: Envelope{UID: 4, From: "talent@globex.com", Subject: "Re: Pitch"},
				raw: plainMessage("talent@globex.com", "Re: Pitch", "Sounds good"),
			},
		},
	}
	svc := NewReplyService(db, &fakeDialer{mbox: mbox}, NewKeyedMutex(), NewLogService(db))

	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	var replyCount int64
	db.Model(&models.EmailReply{}).Count(&replyCount)
	if replyCount != 1 {
		t.Errorf("the failing message must not abort the rest of the batch, replies = %d", replyCount)
	}
}

func TestPollOnce_DialErrors(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewReplyService(db, &fakeDialer{err: ErrMailboxMisconfigured}, NewKeyedMutex(), NewLogService(db))
	if err := svc.PollOnce(context.Background()); !errors.Is(err, ErrMailboxMisconfigured) {
		t.Errorf("expected ErrMailboxMisconfigured, got %v", err)
	}

	svc = NewReplyService(db, &fakeDialer{err: fmt.Errorf("%w: dial tcp", ErrMailboxUnreachable)}, NewKeyedMutex(), NewLogService(db))
	if err := svc.PollOnce(context.Background()); !errors.Is(err, ErrMailboxUnreachable) {
		t.Errorf("expected ErrMailboxUnreachable, got %v", err)
	}
}

func TestPollOnce_CancellationIsBenign(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	seedContact(t, db, user, "hr@acme.com")

	mbox := &fakeMailbox{messages: []*fakeMessage{{
		env: Envelope{UID: 1, From: "hr@acme.com", Subject: "Re: Hello"},
		raw: plainMessage("hr@acme.com", "Re: Hello", "Yes"),
	}}}
	svc := NewReplyService(db, &fakeDialer{mbox: mbox}, NewKeyedMutex(), NewLogService(db))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.PollOnce(ctx); err != nil {
		t.Errorf("cancellation must be a benign abort, got %v", err)
	}
	if mbox.messages[0].seen {
		t.Error("cancelled cycle must not have processed the message")
	}
}

func TestCleanReplyContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spec example", "Thanks!\nOn Mon, Jan 1 wrote:\n> old text", "Thanks!"},
		{"sent variant", "Got it.\nOn Friday sent:\nolder", "Got it."},
		{"original message marker", "Sure.\n-----Original Message-----\nFrom: x", "Sure."},
		{"from line", "Will do.\nFrom: someone@x.com\nbody", "Will do."},
		{"quote marker", "Top.\n> quoted", "Top."},
		{"indented quote header", "Hi.\n   On Tue wrote:\n> q", "Hi."},
		{"no quotes", "Just a plain reply.", "Just a plain reply."},
		{"stop not skip", "Keep.\n> quoted\nAfter the quote", "Keep."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanReplyContent(tt.in); got != tt.want {
				t.Errorf("cleanReplyContent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateReply_Exact(t *testing.T) {
	body := strings.Repeat("a", 1500)
	got := truncateReply(body)
	if len(got) != maxReplyChars+3 {
		t.Errorf("truncated length = %d, want %d", len(got), maxReplyChars+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated body must end with an ellipsis marker")
	}
}

// Property: stored reply bodies never exceed the cap plus the ellipsis,
// and bodies within the cap pass through untouched.
func TestProperty_TruncationBound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("bounded_with_ellipsis", prop.ForAll(
		func(body string) bool {
			got := truncateReply(body)
			runes := []rune(body)
			if len(runes) <= maxReplyChars {
				return got == body
			}
			gotRunes := []rune(got)
			return len(gotRunes) == maxReplyChars+3 && strings.HasSuffix(got, "...")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestExtractTextBody_PrefersPlainText(t *testing.T) {
	raw := []byte("From: a@b.c\r\n" +
		"Content-Type: multipart/alternative; boundary=\"bb\"\r\n" +
		"\r\n" +
		"--bb\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>Rich version</p>\r\n" +
		"--bb\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Plain version\r\n" +
		"--bb--\r\n")

	got := extractTextBody(raw)
	if !strings.Contains(got, "Plain version") {
		t.Errorf("plain part must win, got %q", got)
	}
	if strings.Contains(got, "Rich version") {
		t.Errorf("markup must not leak when a plain part exists, got %q", got)
	}
}

func TestExtractTextBody_MarkupFallback(t *testing.T) {
	raw := []byte("From: a@b.c\r\nContent-Type: text/html\r\n\r\n<p>Only markup</p>")
	got := extractTextBody(raw)
	if !strings.Contains(got, "Only markup") {
		t.Errorf("markup must be used when no plain part exists, got %q", got)
	}
}
