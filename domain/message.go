// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

type Category string

const (
	Newsletter = Category("newsletter")
	Promotion  = Category("promotion")
	Large      = Category("large")
	Personal   = Category("personal")
	Other      = Category("other")
)

type Action string

const (
	Archive = Action("archive")
	Trash   = Action("trash")
	Keep    = Action("keep")
)

// CanonicalMessage is the decode-safe representation of one fetched message.
type CanonicalMessage struct {
	Date        *time.Time
	From        string
	Subject     string
	SizeMB      float64
	Unsubscribe string
	MessageKey  string

	Category Category
	Action   Action
}
