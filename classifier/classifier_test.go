// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"testing"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		subject     string
		from        string
		unsubscribe string
		sizeMB      float64
		category    domain.Category
		action      domain.Action
	}{
		{"newsletter", "Weekly Newsletter", "news@example.com", "<mailto:u@example.com>", 0.2, domain.Newsletter, domain.Archive},
		{"promotion", "BIG SALE 50% off", "shop@example.com", "", 0.1, domain.Promotion, domain.Trash},
		{"large", "Project Update", "boss@example.com", "", 7.4, domain.Large, domain.Archive},
		{"personal", "Hi", "alice@gmail.com", "", 0.05, domain.Personal, domain.Keep},
		{"other", "Invoice", "billing@example.com", "", 0.05, domain.Other, domain.Keep},

		{"newsletter_beats_large", "Monthly digest", "news@example.com", "<https://example.com/u>", 12, domain.Newsletter, domain.Archive},
		{"newsletter_beats_promotion", "Limited time offer", "news@example.com", "<https://example.com/u>", 0.1, domain.Newsletter, domain.Archive},
		{"promotion_beats_large", "Coupon inside", "shop@example.com", "", 9, domain.Promotion, domain.Trash},
		{"promotion_beats_personal", "great DEAL for you", "bob@yahoo.com", "", 0.1, domain.Promotion, domain.Trash},
		{"large_beats_personal", "Photos", "carol@outlook.com", "", 5.01, domain.Large, domain.Archive},

		{"whitespace_unsubscribe", "Hello", "dave@proton.me", "   ", 0.1, domain.Personal, domain.Keep},
		{"threshold_not_large", "Exactly five", "x@example.com", "", 5.0, domain.Other, domain.Keep},
		{"keyword_substring", "Promotional material", "x@example.com", "", 0.1, domain.Promotion, domain.Trash},
		{"multiword_keyword", "A LIMITED TIME event", "x@example.com", "", 0.1, domain.Promotion, domain.Trash},
		{"personal_case_insensitive", "Hi", "Erin <ERIN@ProtonMail.com>", "", 0.1, domain.Personal, domain.Keep},
		{"empty", "", "", "", 0, domain.Other, domain.Keep},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			category, action := Classify(tc.subject, tc.from, tc.unsubscribe, tc.sizeMB)
			assert.Equal(t, tc.category, category)
			assert.Equal(t, tc.action, action)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		category, action := Classify("Project Update", "boss@example.com", "", 7.4)
		assert.Equal(t, domain.Large, category)
		assert.Equal(t, domain.Archive, action)
	}

	// Keyword sets must not be mutated by classification
	assert.Equal(t, []string{"sale", "offer", "discount", "deal", "limited time", "coupon", "promo"}, promoKeywords)
	assert.Equal(t, []string{"gmail.com", "proton.me", "protonmail.com", "outlook.com", "yahoo.com"}, personalDomains)
}

func TestClassifyMessage(t *testing.T) {
	msg := &domain.CanonicalMessage{Subject: "Hi", From: "alice@gmail.com", SizeMB: 0.05}
	ClassifyMessage(msg)

	assert.Equal(t, domain.Personal, msg.Category)
	assert.Equal(t, domain.Keep, msg.Action)
	assert.Equal(t, "Hi", msg.Subject)
}
