package model

import "time"

type (
	// SealedEnvelope is the at-rest form of a thread's whole message list.
	SealedEnvelope struct {
		IDsSorted     string `json:"ids_sorted"`
		SaltHex       string `json:"salt_hex"`
		NonceB64      string `json:"nonce_b64"`
		CiphertextB64 string `json:"ciphertext_b64"`
		KDFInfo       string `json:"kdf_info"`
	}

	AuditAction string

	AuditEntry struct {
		PartyID  PartyID     `json:"party_id" bson:"party_id"`
		Action   AuditAction `json:"action" bson:"action"`
		ThreadID ThreadID    `json:"thread_id" bson:"thread_id"`
		At       time.Time   `json:"at" bson:"at"`
	}

	// Event is pushed to the counterpart of a thread after a mutation. It
	// names the message but never carries its content, which the recipient
	// reads back through the store.
	Event struct {
		Type      string   `json:"type"`
		ThreadID  ThreadID `json:"thread_id"`
		From      PartyID  `json:"from"`
		MessageID string   `json:"message_id,omitempty"`
	}
)

const (
	AuditThreadCreated  AuditAction = "thread_created"
	AuditMessageSent    AuditAction = "message_sent"
	AuditMessageEdited  AuditAction = "message_edited"
	AuditMessageDeleted AuditAction = "message_deleted"
	AuditMessagesRead   AuditAction = "messages_read"
)

const (
	EventNewMessage     = "new_message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMessagesRead   = "messages_read"
)
