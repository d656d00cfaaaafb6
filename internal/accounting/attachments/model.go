package attachments

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Attachment is a file reference. While composing, VoucherID is nil and the
// blob belongs to the composition session; after submission the blob is
// owned by the voucher.
type Attachment struct {
	ID          uuid.UUID
	VoucherID   *int64
	FileName    string
	ContentType string
	ByteSize    int64
	Checksum    string
	BlobRef     string
	CreatedAt   time.Time
}

// File is an upload offered to a composition session.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}
