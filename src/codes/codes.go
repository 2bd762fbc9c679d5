// Package codes generates human readable order codes and ticket redemption
// codes.
package codes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ticketing/src/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const sequenceWidth = 6

// Allocator hands out the next order code for an event. Next runs inside
// the reservation transaction.
type Allocator interface {
	Next(ctx context.Context, tx *gorm.DB, event *models.Event) (string, error)
}

// Prefix is the part of an order code shared by every order of an event in
// its start year, e.g. "RF-2026" for "Rock Fest".
func Prefix(event *models.Event) string {
	words := strings.Split(slug.Make(event.Title), "-")
	var b strings.Builder
	switch {
	case len(words) == 1 && words[0] != "":
		w := words[0]
		if len(w) > 3 {
			w = w[:3]
		}
		b.WriteString(w)
	default:
		for _, w := range words {
			if w != "" {
				b.WriteByte(w[0])
			}
		}
	}
	initials := strings.ToUpper(b.String())
	if initials == "" {
		initials = "ORD"
	}
	return fmt.Sprintf("%s-%d", initials, event.StartDate.Year())
}

func Format(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, sequenceWidth, seq)
}

// sequenceOf parses the trailing counter of a code, 0 when there is none.
func sequenceOf(code string) int64 {
	i := strings.LastIndex(code, "-")
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseInt(code[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// highestSequence returns the largest counter already used under prefix,
// including soft-deleted orders.
func highestSequence(tx *gorm.DB, prefix string) (int64, error) {
	var latest []string
	err := tx.Model(&models.Order{}).Unscoped().
		Where("code LIKE ?", prefix+"-%").
		Order("code desc").
		Limit(1).
		Pluck("code", &latest).Error
	if err != nil {
		return 0, err
	}
	if len(latest) == 0 {
		return 0, nil
	}
	return sequenceOf(latest[0]), nil
}

// StoreAllocator continues from the highest code already stored. Two
// concurrent reservations for the same prefix are only kept apart by the
// transaction isolation and the unique index on orders.code.
type StoreAllocator struct{}

func NewStoreAllocator() *StoreAllocator {
	return &StoreAllocator{}
}

func (a *StoreAllocator) Next(ctx context.Context, tx *gorm.DB, event *models.Event) (string, error) {
	prefix := Prefix(event)
	seq, err := highestSequence(tx.WithContext(ctx), prefix)
	if err != nil {
		return "", fmt.Errorf("read latest order code: %w", err)
	}
	return Format(prefix, seq+1), nil
}

// NewRedemptionCode returns a random code printed on a ticket.
func NewRedemptionCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TKT-" + strings.ToUpper(id[:16])
}
