package main

import (
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/brandon/jmap-core/internal/config"
	"github.com/brandon/jmap-core/internal/domain/calendar"
	"github.com/brandon/jmap-core/internal/domain/contact"
	"github.com/brandon/jmap-core/internal/domain/email"
	"github.com/brandon/jmap-core/internal/domain/identity"
	"github.com/brandon/jmap-core/internal/domain/mailbox"
	"github.com/brandon/jmap-core/internal/domain/preferences"
	"github.com/brandon/jmap-core/internal/domain/quota"
	"github.com/brandon/jmap-core/internal/domain/snippet"
	"github.com/brandon/jmap-core/internal/domain/storagenode"
	"github.com/brandon/jmap-core/internal/domain/submission"
	"github.com/brandon/jmap-core/internal/domain/thread"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/sync"
)

// buildRegistry opens the backing store and wires every data type's
// uniform-verb Capability and handler onto a fresh Registry.
func buildRegistry(cfg *config.Config, log *logrus.Logger) (*jmap.Registry, *store.Store, error) {
	s, err := store.Open(cfg.CachePath, log)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := s.Blobs(filepath.Join(filepath.Dir(cfg.CachePath), "blobs"))
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	emailSync := sync.NewIMAPSynchronizer(cfg, log)
	var collab sync.CollabSynchronizer = sync.NullCollabSynchronizer{}

	mailboxes := s.Type("Mailbox")
	idx := thread.NewIndex(s.Type("Thread"))

	mailboxCap := mailbox.New(mailboxes, emailSync)
	threadCap := thread.New(s.Type("Thread"))
	emailCap := email.New(s.Type("Email"), mailboxes, idx, blobs, emailSync)
	submissionCap := submission.New(s.Type("EmailSubmission"), emailCap, emailSync)
	storagenodeCap := storagenode.New(blobs)

	prefsBundle := preferences.New(s)
	identityCap := identity.New(s, cfg)
	quotaCap := quota.New(s, blobs)

	calendarCap := calendar.NewCalendar(s.Type("Calendar"), collab)
	eventCap := calendar.NewEvent(s.Type("CalendarEvent"), s.Type("Calendar"))
	calendarPrefs := calendar.NewPreferences(s)

	addressbookCap := contact.NewAddressbook(s.Type("Addressbook"), collab)
	contactCap := contact.NewContact(s.Type("Contact"), s.Type("Addressbook"))
	groupCap := contact.NewContactGroup(s.Type("ContactGroup"))

	reg := jmap.NewRegistry(log, nil)
	mailbox.Register(reg, mailboxCap)
	thread.Register(reg, threadCap)
	email.Register(reg, emailCap)
	submission.Register(reg, submissionCap, emailCap)
	storagenode.Register(reg, storagenodeCap)
	preferences.Register(reg, prefsBundle)
	identity.Register(reg, identityCap)
	quota.Register(reg, quotaCap)
	calendar.Register(reg, calendarCap, eventCap, calendarPrefs)
	contact.Register(reg, addressbookCap, contactCap, groupCap)
	snippet.Register(reg, emailCap)

	return reg, s, nil
}
