// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/stretchr/testify/assert"
)

func rawMail(from, subject, unsubscribe string, bodySize int) []byte {
	b := &strings.Builder{}
	fmt.Fprintf(b, "From: %s\r\nSubject: %s\r\nDate: Mon, 6 Oct 2025 09:12:00 +0200\r\n", from, subject)
	if len(unsubscribe) > 0 {
		fmt.Fprintf(b, "List-Unsubscribe: %s\r\n", unsubscribe)
	}
	b.WriteString("\r\n")
	b.WriteString(strings.Repeat("x", bodySize))
	return []byte(b.String())
}

func Test_ClassifyAllConcurrent(t *testing.T) {
	mails := [][]byte{
		rawMail("news@example.com", "Weekly Newsletter", "<mailto:u@example.com>", 200*1024),
		rawMail("shop@example.com", "BIG SALE 50% off", "", 100*1024),
		rawMail("boss@example.com", "Project Update", "", 74*1024*1024/10),
		rawMail("alice@gmail.com", "Hi", "", 50*1024),
		[]byte("not a mail at all"),
	}

	cc := &ConcurrentClassifier{Concurrency: 2}

	resultsChan := make(chan []domain.CanonicalMessage)
	go func() {
		resultsChan <- cc.ClassifyAll(mails)
	}()

	select {
	case results := <-resultsChan:
		assert.Len(t, results, 5)
		expected := []struct {
			subject  string
			category domain.Category
			action   domain.Action
		}{
			{"Weekly Newsletter", domain.Newsletter, domain.Archive},
			{"BIG SALE 50% off", domain.Promotion, domain.Trash},
			{"Project Update", domain.Large, domain.Archive},
			{"Hi", domain.Personal, domain.Keep},
			{"", domain.Other, domain.Keep},
		}
		for i, e := range expected {
			assert.Equal(t, e.subject, results[i].Subject, "order must be preserved")
			assert.Equal(t, e.category, results[i].Category)
			assert.Equal(t, e.action, results[i].Action)
		}
		assert.Equal(t, 7.4, results[2].SizeMB)
	case <-time.After(5 * time.Second):
		assert.Fail(t, "timeout when classifying mails concurrently")
	}
}

func Test_ClassifyAllEmpty(t *testing.T) {
	cc := &ConcurrentClassifier{}
	assert.Empty(t, cc.ClassifyAll(nil))
}
