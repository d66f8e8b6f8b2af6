package sync

import "context"

// NullCollabSynchronizer is the CollabSynchronizer test double spec §6's
// binding calls for: no CalDAV/CardDAV client exists anywhere in the
// retrieval pack, so Calendar/CalendarEvent and Addressbook/Contact rows
// are served entirely out of the backing store and this reports that
// nothing ever changes upstream. See DESIGN.md, "internal/sync", Open
// Question decision.
type NullCollabSynchronizer struct{}

func (NullCollabSynchronizer) SyncCalendars(ctx context.Context, accountId string) (bool, error) {
	return false, nil
}

func (NullCollabSynchronizer) SyncAddressbooks(ctx context.Context, accountId string) (bool, error) {
	return false, nil
}
