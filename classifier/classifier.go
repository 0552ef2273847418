// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"strings"

	"github.com/CrawX/go-imap-cleaner/domain"
)

// LargeMB is the size above which a message is considered large.
const LargeMB = 5.0

var (
	promoKeywords   = []string{"sale", "offer", "discount", "deal", "limited time", "coupon", "promo"}
	personalDomains = []string{"gmail.com", "proton.me", "protonmail.com", "outlook.com", "yahoo.com"}
)

// Classify assigns a category and an advisory action. The checks are evaluated in a fixed order and the
// first match wins, so a large newsletter is still a newsletter.
func Classify(subject, from, unsubscribe string, sizeMB float64) (domain.Category, domain.Action) {
	if len(strings.TrimSpace(unsubscribe)) > 0 {
		return domain.Newsletter, domain.Archive
	}

	if containsAny(strings.ToLower(subject), promoKeywords) {
		return domain.Promotion, domain.Trash
	}

	if sizeMB > LargeMB {
		return domain.Large, domain.Archive
	}

	if containsAny(strings.ToLower(from), personalDomains) {
		return domain.Personal, domain.Keep
	}

	return domain.Other, domain.Keep
}

// ClassifyMessage sets Category and Action on a decoded message.
func ClassifyMessage(msg *domain.CanonicalMessage) {
	msg.Category, msg.Action = Classify(msg.Subject, msg.From, msg.Unsubscribe, msg.SizeMB)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
