package sync

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/smtp"
	"strings"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/brandon/jmap-core/internal/config"
)

// IMAPSynchronizer implements EmailSynchronizer over one pooled IMAP
// connection per account, generalizing the teacher's single-account
// IMAPClient/SMTPClient pair (internal/email) to the core's
// account-id-keyed model. Authentication goes through go-sasl's PLAIN
// mechanism rather than client.Login, the one place the teacher's own
// stack offers a more explicit alternative to what it used.
type IMAPSynchronizer struct {
	cfg     *config.Config
	log     *logrus.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[string]*client.Client
}

// NewIMAPSynchronizer builds a synchronizer over cfg's accounts,
// throttled to limit concurrent/sustained IMAP load the way
// matta-gotmuch throttles Gmail API calls.
func NewIMAPSynchronizer(cfg *config.Config, log *logrus.Logger) *IMAPSynchronizer {
	return &IMAPSynchronizer{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		clients: make(map[string]*client.Client),
	}
}

// Close logs out of every pooled connection.
func (s *IMAPSynchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for accountId, c := range s.clients {
		if err := c.Logout(); err != nil {
			s.log.WithError(err).WithField("account", accountId).Warn("imap logout failed")
		}
	}
	s.clients = make(map[string]*client.Client)
	return nil
}

func (s *IMAPSynchronizer) connect(ctx context.Context, accountId string) (*client.Client, *config.AccountConfig, error) {
	acc, err := s.cfg.GetAccountByName(accountId)
	if err != nil {
		return nil, nil, fmt.Errorf("unknown account %s: %w", accountId, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[accountId]; ok {
		return c, acc, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	addr := fmt.Sprintf("%s:%d", acc.IMAPHost, acc.IMAPPort)
	cl, err := client.DialTLS(addr, &tls.Config{
		ServerName: acc.IMAPHost,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := cl.Authenticate(sasl.NewPlainClient("", acc.IMAPUsername, acc.IMAPPassword)); err != nil {
		cl.Close()
		return nil, nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	s.clients[accountId] = cl
	s.log.WithField("account", accountId).Info("imap connected")
	return cl, acc, nil
}

// ListFolders generalizes the teacher's IMAPClient.ListFolders
// (goroutine + channel around client.List) to run across every account
// that errgroup can fan out to concurrently, but is called here for one
// account at a time since the Mailbox domain handler drives the fan-out.
func (s *IMAPSynchronizer) ListFolders(ctx context.Context, accountId string) ([]FetchedFolder, error) {
	cl, _, err := s.connect(ctx, accountId)
	if err != nil {
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- cl.List("", "*", mailboxes)
	}()

	var folders []FetchedFolder
	for m := range mailboxes {
		folders = append(folders, FetchedFolder{
			Name: m.Name,
			Path: m.Name,
			Role: inferRole(m.Name),
		})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

func inferRole(name string) string {
	switch strings.ToLower(name) {
	case "inbox":
		return "inbox"
	case "sent", "sent items", "sent mail":
		return "sent"
	case "drafts":
		return "drafts"
	case "trash", "deleted items":
		return "trash"
	case "junk", "spam":
		return "junk"
	case "archive":
		return "archive"
	default:
		return ""
	}
}

// FetchMessages generalizes FetchEmails+parseMessage, selecting a
// folder by path and fetching every message with a uid greater than
// uidSince (0 fetches the most recent 100, matching the teacher's
// default window).
func (s *IMAPSynchronizer) FetchMessages(ctx context.Context, accountId, folderPath string, uidSince uint32) ([]FetchedMessage, error) {
	cl, _, err := s.connect(ctx, accountId)
	if err != nil {
		return nil, err
	}

	mbox, err := cl.Select(folderPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	fetch := cl.Fetch
	if uidSince == 0 {
		start := uint32(1)
		if mbox.Messages > 100 {
			start = mbox.Messages - 99
		}
		seqSet.AddRange(start, mbox.Messages)
	} else {
		seqSet.AddRange(uidSince+1, 0)
		fetch = cl.UidFetch
	}

	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchInternalDate, imap.FetchUid, imap.FetchRFC822}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- fetch(seqSet, items, messages)
	}()

	var out []FetchedMessage
	for msg := range messages {
		if uidSince > 0 && msg.Uid <= uidSince {
			continue
		}
		out = append(out, s.parseMessage(msg))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return out, nil
}

func (s *IMAPSynchronizer) parseMessage(msg *imap.Message) FetchedMessage {
	fm := FetchedMessage{
		Uid:       msg.Uid,
		MessageId: msg.Envelope.MessageId,
		Subject:   msg.Envelope.Subject,
		Date:      msg.Envelope.Date,
	}
	if len(msg.Envelope.From) > 0 {
		fm.SenderName = msg.Envelope.From[0].PersonalName
		fm.SenderEmail = msg.Envelope.From[0].Address()
	}
	for _, to := range msg.Envelope.To {
		fm.To = append(fm.To, to.Address())
	}
	for _, cc := range msg.Envelope.Cc {
		fm.Cc = append(fm.Cc, cc.Address())
	}
	for _, bcc := range msg.Envelope.Bcc {
		fm.Bcc = append(fm.Bcc, bcc.Address())
	}
	fm.Flags = append(fm.Flags, msg.Flags...)

	bodyBytes := s.readBody(msg.Body)
	if len(bodyBytes) == 0 {
		return fm
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(bodyBytes))
	if err != nil {
		s.log.WithError(err).Debug("failed to parse message with enmime, using raw body")
		fm.BodyText = string(bodyBytes)
		return fm
	}
	fm.BodyText = env.Text
	fm.BodyHTML = env.HTML
	return fm
}

func (s *IMAPSynchronizer) readBody(body map[*imap.BodySectionName]imap.Literal) []byte {
	if literal, ok := body[nil]; ok {
		return readLiteral(literal)
	}
	if literal, ok := body[&imap.BodySectionName{}]; ok {
		return readLiteral(literal)
	}
	for _, literal := range body {
		if b := readLiteral(literal); len(b) > 0 {
			return b
		}
	}
	return nil
}

func readLiteral(literal imap.Literal) []byte {
	var out []byte
	buf := make([]byte, 1024)
	for {
		n, err := literal.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
	}
	return out
}

// Send generalizes SMTPClient.Send/createMessage, connecting fresh for
// each call since outbound SMTP is infrequent enough not to warrant
// pooling the way the pulled IMAP connections are.
func (s *IMAPSynchronizer) Send(ctx context.Context, accountId string, msg OutgoingMessage) error {
	acc, err := s.cfg.GetAccountByName(accountId)
	if err != nil {
		return fmt.Errorf("unknown account %s: %w", accountId, err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	body := buildMessage(acc.SMTPUsername, msg)
	addr := fmt.Sprintf("%s:%d", acc.SMTPHost, acc.SMTPPort)
	var auth smtp.Auth
	if acc.SMTPPassword != "" {
		auth = smtp.PlainAuth("", acc.SMTPUsername, acc.SMTPPassword, acc.SMTPHost)
	}
	recipients := append(append(append([]string{}, msg.To...), msg.Cc...), msg.Bcc...)

	if acc.SMTPPort == 465 {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: acc.SMTPHost})
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		defer conn.Close()
		cl, err := smtp.NewClient(conn, acc.SMTPHost)
		if err != nil {
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
		defer cl.Close()
		return sendVia(cl, auth, acc.SMTPUsername, recipients, body)
	}

	cl, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer cl.Close()
	if err := cl.StartTLS(&tls.Config{ServerName: acc.SMTPHost}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	return sendVia(cl, auth, acc.SMTPUsername, recipients, body)
}

func sendVia(cl *smtp.Client, auth smtp.Auth, from string, recipients []string, body []byte) error {
	if auth != nil {
		if err := cl.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	if err := cl.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range recipients {
		if err := cl.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", to, err)
		}
	}
	w, err := cl.Data()
	if err != nil {
		return fmt.Errorf("failed to send data command: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return cl.Quit()
}

func buildMessage(from string, msg OutgoingMessage) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	if len(msg.Cc) > 0 {
		buf.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(msg.Cc, ", ")))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	if msg.InReplyTo != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", msg.InReplyTo))
	}
	if msg.BodyHTML != "" {
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.BodyHTML)
	} else {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.BodyText)
	}
	return buf.Bytes()
}

// SyncAllFolders fans out FetchMessages across every folder reported by
// ListFolders, using errgroup the way matta-gotmuch/sync.go fans its
// folder sync out, and calls onMessages once per folder as results
// arrive rather than collecting everything into one slice first.
// onMessages is invoked concurrently, once per folder, and must be
// safe to call that way.
func (s *IMAPSynchronizer) SyncAllFolders(ctx context.Context, accountId string, onMessages func(folder FetchedFolder, messages []FetchedMessage) error) error {
	folders, err := s.ListFolders(ctx, accountId)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, folder := range folders {
		folder := folder
		g.Go(func() error {
			messages, err := s.FetchMessages(ctx, accountId, folder.Path, 0)
			if err != nil {
				return fmt.Errorf("folder %s: %w", folder.Path, err)
			}
			return onMessages(folder, messages)
		})
	}
	return g.Wait()
}
