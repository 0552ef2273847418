// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"math"
	"strings"

	"github.com/CrawX/go-imap-cleaner/domain"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

const bytesPerMB = 1024 * 1024

// Decode turns raw message bytes into a CanonicalMessage. It never fails: every field that cannot be
// decoded degrades to its zero value, the raw header value for text fields.
func Decode(rawMail []byte) domain.CanonicalMessage {
	msg := domain.CanonicalMessage{
		SizeMB: SizeMB(len(rawMail)),
	}

	header, ok := readHeader(rawMail)
	if !ok {
		return msg
	}

	msg.From = decodeText(header, "From")
	msg.Subject = decodeText(header, "Subject")
	msg.Unsubscribe = strings.TrimSpace(header.Get("List-Unsubscribe"))
	msg.MessageKey = messageKey(header)

	date, err := header.Date()
	if err == nil && !date.IsZero() {
		msg.Date = &date
	}

	return msg
}

// SizeMB converts a byte count to megabytes rounded to two decimals.
func SizeMB(size int) float64 {
	if size <= 0 {
		return 0
	}
	return math.Round(float64(size)/bytesPerMB*100) / 100
}

func readHeader(rawMail []byte) (mail.Header, bool) {
	entity, err := message.Read(bytes.NewReader(rawMail))
	if entity != nil {
		// Unknown charsets or transfer encodings only affect the body.
		return mail.Header{Header: entity.Header}, true
	}

	// The header block is broken somewhere, keep whatever fields were parsed before that point.
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(rawMail)))
	if err != nil && h.Len() == 0 {
		return mail.Header{}, false
	}

	return mail.Header{Header: message.Header{Header: h}}, true
}

func decodeText(header mail.Header, key string) string {
	raw := header.Get(key)
	text, err := header.Text(key)
	if err != nil {
		return raw
	}

	return strings.TrimSpace(text)
}

func messageKey(header mail.Header) string {
	messageIdHeader := header.Values("Message-Id")
	receivedHeader := header.Values("Received")
	if len(receivedHeader) == 0 && len(messageIdHeader) == 0 {
		return ""
	}

	key, err := hash([][]string{messageIdHeader, receivedHeader})
	if err != nil {
		return ""
	}

	return key
}

func ShortSubject(subject string) string {
	runes := []rune(subject)
	if len(runes) > 30 {
		subject = string(runes[:30]) + "..."
	}
	return subject
}

func hash(input [][]string) (string, error) {
	sha := sha256.New()
	for _, i := range input {
		for _, ii := range i {
			_, err := sha.Write([]byte(ii))
			if err != nil {
				return "", fmt.Errorf("could not hash: %w", err)
			}
		}
	}

	return fmt.Sprintf("%x", sha.Sum(nil)), nil
}
