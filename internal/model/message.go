package model

import "time"

type (
	// Message is one entry of a thread history. The JSON names are the sealed
	// plaintext format and must stay stable.
	Message struct {
		MessageID string     `json:"message_id"`
		SenderID  PartyID    `json:"sender_id"`
		Content   string     `json:"content"`
		CreatedAt time.Time  `json:"timestamp"`
		Read      bool       `json:"read"`
		Edited    bool       `json:"edited"`
		Deleted   bool       `json:"deleted"`
		EditedAt  *time.Time `json:"edited_at,omitempty"`
	}

	Page struct {
		ThreadID      ThreadID  `json:"thread_id"`
		Participant1  PartyID   `json:"participant1_id"`
		Participant2  PartyID   `json:"participant2_id"`
		Messages      []Message `json:"messages"`
		TotalCount    int       `json:"total_count"`
		Limit         int       `json:"limit"`
		Offset        int       `json:"offset"`
		HasMore       bool      `json:"has_more"`
		ReturnedCount int       `json:"returned_count"`
	}
)
