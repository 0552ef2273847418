// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"github.com/CrawX/go-imap-cleaner/domain"
	"github.com/CrawX/go-imap-cleaner/mail"
)

const DefaultConcurrency = 4

type ConcurrentClassifier struct {
	Concurrency int
}

// ClassifyAll decodes and classifies every raw mail. Results keep the order of the input.
func (cc *ConcurrentClassifier) ClassifyAll(mails [][]byte) []domain.CanonicalMessage {
	concurrency := cc.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	semaphore := make(chan bool, concurrency)
	results := make([]domain.CanonicalMessage, len(mails))
	for i := 0; i < len(mails); i++ {
		semaphore <- true
		go func(index int) {
			msg := mail.Decode(mails[index])
			ClassifyMessage(&msg)
			results[index] = msg
			<-semaphore
		}(i)
	}

	for i := 0; i < concurrency; i++ {
		semaphore <- true
	}

	return results
}
