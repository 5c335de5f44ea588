package pfm

import "errors"

var (
	ErrInvalidMagic       = errors.New("pfm: invalid magic line")
	ErrUnsupportedVersion = errors.New("pfm: unsupported format version")
	ErrInvalidSection     = errors.New("pfm: invalid section")
	ErrInvalidMeta        = errors.New("pfm: invalid metadata")
	ErrMalformed          = errors.New("pfm: malformed document")
	ErrLimitExceeded      = errors.New("pfm: limit exceeded")
	ErrNoIndex            = errors.New("pfm: no index")
	ErrIndexUnstable      = errors.New("pfm: index offsets did not converge")
	ErrChecksumMismatch   = errors.New("pfm: checksum mismatch")
	ErrSignatureInvalid   = errors.New("pfm: signature invalid")
	ErrDecryptFailed      = errors.New("pfm: decryption failed")
	ErrLocked             = errors.New("pfm: file locked by another writer")
	ErrWriterClosed       = errors.New("pfm: stream writer closed")
	ErrInvalidPack        = errors.New("pfm: invalid packed payload")
)
