// Package sync defines the external-source side of spec §6's
// sync_folders/sync_imap/sync_calendars/sync_addressbooks backing-store
// capabilities, and ships the production IMAP implementation plus a
// calendar/addressbook test double.
package sync

import (
	"context"
	"time"
)

// FetchedFolder is one mailbox reported by ListFolders, generalizing
// the teacher's types.Folder.
type FetchedFolder struct {
	Name       string
	Path       string
	ParentPath string
	Role       string
}

// FetchedMessage is one message reported by FetchMessages, generalizing
// the teacher's types.Email (parseMessage).
type FetchedMessage struct {
	Uid         uint32
	MessageId   string
	Subject     string
	SenderName  string
	SenderEmail string
	To          []string
	Cc          []string
	Bcc         []string
	Date        time.Time
	Flags       []string
	BodyText    string
	BodyHTML    string
}

// OutgoingMessage is a message to hand to Send, generalizing the
// teacher's email.EmailMessage.
type OutgoingMessage struct {
	To        []string
	Cc        []string
	Bcc       []string
	Subject   string
	BodyText  string
	BodyHTML  string
	InReplyTo string
}

// EmailSynchronizer is the external collaborator sync_folders and
// sync_imap depend on: one per-account IMAP connection pool behind an
// account-id-keyed API, rather than the teacher's single-account
// IMAPClient.
type EmailSynchronizer interface {
	ListFolders(ctx context.Context, accountId string) ([]FetchedFolder, error)
	FetchMessages(ctx context.Context, accountId, folderPath string, uidSince uint32) ([]FetchedMessage, error)
	Send(ctx context.Context, accountId string, msg OutgoingMessage) error
}

// CollabSynchronizer is the external collaborator sync_calendars and
// sync_addressbooks depend on. changed reports whether the backing
// store should treat the account's Calendar/CalendarEvent or
// Addressbook/Contact rows as stale and re-pull them.
type CollabSynchronizer interface {
	SyncCalendars(ctx context.Context, accountId string) (changed bool, err error)
	SyncAddressbooks(ctx context.Context, accountId string) (changed bool, err error)
}
