package models

import (
	"time"

	"github.com/google/uuid"
)

type ChannelType string

const (
	ChannelTypePrivate ChannelType = "PRIVATE"
	ChannelTypeGroup   ChannelType = "GROUP"
)

// Channel is either a *PrivateChannel or a *GroupChannel. The interface is sealed:
// only this package can add variants, so a type switch over the two cases is
// exhaustive.
type Channel interface {
	Base() *ChannelBase
	Type() ChannelType
	sealed()
}

// ChannelBase holds the columns every channel has.
type ChannelBase struct {
	ID            uuid.UUID  `json:"id"`
	IsClosed      bool       `json:"is_closed"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PrivateChannel is a 1:1 conversation. It tracks no participant count or limit.
type PrivateChannel struct {
	ChannelBase
}

func (c *PrivateChannel) Base() *ChannelBase { return &c.ChannelBase }
func (c *PrivateChannel) Type() ChannelType  { return ChannelTypePrivate }
func (c *PrivateChannel) sealed()            {}

// GroupChannel is a capacity-limited channel tied to a marketplace item.
//
// Invariant: 0 <= ParticipantsCount <= ChannelLimit. When the count reaches 0 the
// channel and its messages are deleted.
type GroupChannel struct {
	ChannelBase
	OwnerID           uuid.UUID `json:"owner_id"`
	ItemID            int64     `json:"item_id"`
	DefaultTitle      string    `json:"default_title"`
	ParticipantsCount int       `json:"participants_count"`
	ChannelLimit      int       `json:"channel_limit"`
}

func (c *GroupChannel) Base() *ChannelBase { return &c.ChannelBase }
func (c *GroupChannel) Type() ChannelType  { return ChannelTypeGroup }
func (c *GroupChannel) sealed()            {}

func (c *GroupChannel) IsFull() bool {
	return c.ParticipantsCount >= c.ChannelLimit
}

// ChannelRecord is the flat shape a channel row is scanned into before it is turned
// into its variant. Group-only columns are nil for private channels.
type ChannelRecord struct {
	ID                uuid.UUID
	ChannelType       ChannelType
	IsClosed          bool
	OwnerID           *uuid.UUID
	ItemID            *int64
	DefaultTitle      *string
	ParticipantsCount *int
	ChannelLimit      *int
	LastMessageAt     *time.Time
	CreatedAt         time.Time
}

// Channel converts the record into its variant. Unknown types yield nil.
func (r ChannelRecord) Channel() Channel {
	base := ChannelBase{
		ID:            r.ID,
		IsClosed:      r.IsClosed,
		LastMessageAt: r.LastMessageAt,
		CreatedAt:     r.CreatedAt,
	}
	switch r.ChannelType {
	case ChannelTypePrivate:
		return &PrivateChannel{ChannelBase: base}
	case ChannelTypeGroup:
		g := &GroupChannel{ChannelBase: base}
		if r.OwnerID != nil {
			g.OwnerID = *r.OwnerID
		}
		if r.ItemID != nil {
			g.ItemID = *r.ItemID
		}
		if r.DefaultTitle != nil {
			g.DefaultTitle = *r.DefaultTitle
		}
		if r.ParticipantsCount != nil {
			g.ParticipantsCount = *r.ParticipantsCount
		}
		if r.ChannelLimit != nil {
			g.ChannelLimit = *r.ChannelLimit
		}
		return g
	}
	return nil
}
