package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxPhotos caps how many photo references a single draft may carry.
const MaxPhotos = 10

var (
	ErrLotNotFound     = errors.New("catalog: lot not found")
	ErrPendingNotFound = errors.New("catalog: pending submission not found")
)

// Draft is a seller submission in progress. Photos hold Telegram file
// ids; Price holds extracted digits only. Comment is optional.
type Draft struct {
	OwnerID   int64    `json:"owner_id"`
	Photos    []string `json:"photos"`
	Title     string   `json:"title"`
	Era       string   `json:"era"`
	Condition string   `json:"condition"`
	Size      string   `json:"size"`
	City      string   `json:"city"`
	Price     string   `json:"price"`
	Comment   string   `json:"comment,omitempty"`
}

func (d Draft) Validate() error {
	if d.OwnerID == 0 {
		return fmt.Errorf("owner_id is required")
	}
	if len(d.Photos) == 0 {
		return fmt.Errorf("at least one photo is required")
	}
	if len(d.Photos) > MaxPhotos {
		return fmt.Errorf("too many photos: %d > %d", len(d.Photos), MaxPhotos)
	}
	for _, ref := range d.Photos {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("photo reference is required")
		}
	}
	fields := []struct {
		name  string
		value string
	}{
		{"title", d.Title},
		{"era", d.Era},
		{"condition", d.Condition},
		{"size", d.Size},
		{"city", d.City},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	if _, err := NormalizePrice(d.Price); err != nil {
		return err
	}
	return nil
}

// PendingSubmission is a finalized draft waiting for a moderation
// decision. Immutable once appended.
type PendingSubmission struct {
	Draft
	PendingID   int       `json:"pending_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Lot is a published catalog entry.
type Lot struct {
	Draft
	ID          int       `json:"id"`
	PublishedAt time.Time `json:"published_at"`
}

// NormalizePrice extracts the digit runs from a free-form price string
// ("3 500 EUR" becomes "3500"). No digits, or a zero value, is an
// error.
func NormalizePrice(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("price must contain digits")
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "", fmt.Errorf("price must be greater than zero")
	}
	return digits, nil
}
