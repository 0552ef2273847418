// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "errors"

var (
	// ErrConnection is fatal to a run: the session could not be established or the mailbox not listed.
	ErrConnection = errors.New("mailbox connection failed")
	// ErrMessageFetch marks a single message that could not be fetched. The run continues without it.
	ErrMessageFetch = errors.New("message fetch failed")
	// ErrPersist is fatal to a run: the report or the status could not be written.
	ErrPersist = errors.New("could not persist run")
	// ErrCorruptStatus is returned when the status file exists but cannot be parsed.
	ErrCorruptStatus = errors.New("status file is corrupt")
	ErrRunInProgress = errors.New("a run is already in progress")
)
