package network

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidPartyID is returned when party ID is invalid
	ErrInvalidPartyID = errors.New("invalid party ID")

	// ErrInvalidKey is returned when an identity key is malformed or missing
	ErrInvalidKey = errors.New("invalid identity key")

	// ErrMessageTooLarge is returned when message exceeds size limit
	ErrMessageTooLarge = errors.New("message too large")

	// ErrInvalidMessage is returned when message is malformed
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownMessageType is returned for an envelope type outside the protocol
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrSessionMismatch is returned when an envelope belongs to another session
	ErrSessionMismatch = errors.New("session mismatch")

	// ErrEncryptionFailed is returned when encryption fails
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned when decryption fails
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidNonce is returned when nonce is invalid or reused
	ErrInvalidNonce = errors.New("invalid or reused nonce")

	// ErrUnauthenticated is returned when a frame carries no valid tag for
	// its claimed sender
	ErrUnauthenticated = errors.New("frame not authenticated")

	// ErrTransportClosed is returned when transport is closed
	ErrTransportClosed = errors.New("transport closed")

	// ErrConnectionFailed is returned when connection fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrSendFailed is returned when message send fails
	ErrSendFailed = errors.New("failed to send message")
)
