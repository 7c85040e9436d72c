package gallery

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
)

// MediaField is the multipart form field carrying the upload.
const MediaField = "media"

// stubUserID is returned for every created user.
const stubUserID = 1337

// ErrMalformedUpload is returned when the multipart body cannot be parsed.
var ErrMalformedUpload = errors.New("malformed multipart body")

// ErrMissingUsername is returned by CreateUser for an empty username.
var ErrMissingUsername = errors.New("username is required")

// Service turns uploads into stored media plus a pending fragment.
type Service struct {
	media MediaStore
	queue *PendingQueue
}

// NewService returns a Service that stores media in media and enqueues
// fragments on queue.
func NewService(media MediaStore, queue *PendingQueue) *Service {
	return &Service{media: media, queue: queue}
}

// ReceiveUpload reads a multipart body that must contain exactly one "media"
// part with a filename. The part is streamed to the media store and only
// published once the whole body has been read and validated; then a fragment
// referencing it is enqueued. On error neither stored media nor the queue
// change.
func (s *Service) ReceiveUpload(mr *multipart.Reader) (res UploadResult, err error) {
	var (
		staged StagedMedia
		frag   Fragment
	)
	defer func() {
		if err != nil && staged != nil {
			staged.Discard()
		}
	}()

	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return UploadResult{}, fmt.Errorf("%w: %w", ErrMalformedUpload, perr)
		}

		if part.FormName() != MediaField {
			part.Close()
			continue
		}
		if staged != nil {
			part.Close()
			return UploadResult{}, ErrDuplicateMedia
		}

		staged, frag, err = s.stage(part.FileName(), part)
		part.Close()
		if err != nil {
			return UploadResult{}, err
		}
	}

	if staged == nil {
		return UploadResult{}, ErrMissingMedia
	}
	if err := staged.Commit(); err != nil {
		return UploadResult{}, err
	}

	s.queue.Enqueue(frag)
	return UploadResult{MediaFile: staged.Media(), FragmentID: frag.ID}, nil
}

// stage validates filename, builds the fragment and writes body to the store
// without publishing it. staged is nil whenever err is non-nil.
func (s *Service) stage(filename string, body io.Reader) (StagedMedia, Fragment, error) {
	if filename == "" {
		return nil, Fragment{}, ErrMissingFilename
	}
	name, err := MediaName(filename)
	if err != nil {
		return nil, Fragment{}, err
	}
	frag, err := NewFragment(name)
	if err != nil {
		return nil, Fragment{}, err
	}

	staged, err := s.media.Stage(name, body)
	if err != nil {
		return nil, Fragment{}, err
	}
	return staged, frag, nil
}

// Pending returns the number of fragments waiting for the worker.
func (s *Service) Pending() int {
	return s.queue.Len()
}

// CreateUser echoes the username back with a fixed id.
func (s *Service) CreateUser(req CreateUser) (User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return User{}, ErrMissingUsername
	}
	return User{ID: stubUserID, Username: username}, nil
}
