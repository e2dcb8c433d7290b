package storage

import "strings"

// classify maps driver-level faults onto the package sentinels. The
// modernc.org/sqlite driver surfaces constraint and locking faults as plain
// errors, so classification goes by message text. Errors matching no known
// class pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrEmailTaken
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return ErrBusy
	}
	return err
}
