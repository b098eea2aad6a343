// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldOwnerID      = "owner_id"
	FieldRequestID    = "request_id"
	FieldFileUniqueID = "file_unique_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldBatchKey  = "batch_key"
	FieldWindowKey = "window_key"

	// File fields
	FieldFilename = "filename"
	FieldFileSize = "file_size"

	// Messaging fields
	FieldChatID    = "chat_id"
	FieldMessageID = "message_id"
)
