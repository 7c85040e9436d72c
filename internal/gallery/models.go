package gallery

import "errors"

// FragmentID identifies one pipeline pass in logs.
type FragmentID string

// Fragment is the markup for one upload, waiting to be spliced into the
// document. Markup is never modified after construction.
type Fragment struct {
	ID     FragmentID
	Markup []byte
}

// MediaFile describes an upload written to the media directory.
type MediaFile struct {
	Name     string `json:"name"`
	Path     string `json:"-"`
	Size     int64  `json:"size"`
	Checksum string `json:"blake3"`
}

// UploadResult is returned to the client for a successful POST /media.
type UploadResult struct {
	MediaFile
	FragmentID FragmentID `json:"fragment_id"`
}

// CreateUser is the request body of POST /users.
type CreateUser struct {
	Username string `json:"username"`
}

// User is the response body of POST /users.
type User struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

var (
	// ErrMissingMedia is returned when the multipart body has no "media" part.
	ErrMissingMedia = errors.New("multipart body has no media field")

	// ErrMissingFilename is returned when the "media" part carries no filename.
	ErrMissingFilename = errors.New("media field has no filename")

	// ErrDuplicateMedia is returned when more than one "media" part is sent.
	ErrDuplicateMedia = errors.New("multipart body has more than one media field")

	// ErrInvalidMediaName is returned when no safe storage name can be derived
	// from the client filename.
	ErrInvalidMediaName = errors.New("invalid media name")

	// ErrUploadTooLarge is returned when the request body exceeds the upload cap.
	ErrUploadTooLarge = errors.New("upload too large")

	// ErrFooterMismatch is returned when the document does not end with the
	// footer. The document is left untouched.
	ErrFooterMismatch = errors.New("document does not end with footer")
)
