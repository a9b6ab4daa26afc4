package cqrs

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---------- Document commands ----------

// UploadDocumentCommand adds a version. With DocumentID empty the upload
// lands on the live document of the same name, or creates one.
type UploadDocumentCommand struct {
	OrganizationID string
	UserID         string
	DocumentID     string
	Name           string
	ContentType    string
	Content        []byte
	Folder         string
	Tags           []string
	Description    string
	ChangeLog      string
}

type UpdateDocumentCommand struct {
	OrganizationID string
	UserID         string
	DocumentID     string
	Name           *string
	Folder         *string
	Tags           *[]string
	Description    *string
}

type RestoreVersionCommand struct {
	OrganizationID string
	UserID         string
	DocumentID     string
	Version        int
}

type DeleteDocumentCommand struct {
	OrganizationID string
	UserID         string
	DocumentID     string
}

type AddAnnotationCommand struct {
	OrganizationID string
	UserID         string
	DocumentID     string
	Type           string
	Content        string
	Position       models.AnnotationPosition
}

// UpdateAnnotationCommand and DeleteAnnotationCommand only reach the
// caller's own annotations.
type UpdateAnnotationCommand struct {
	OrganizationID string
	UserID         string
	DocumentID     string
	AnnotationID   string
	Content        *string
	Position       *models.AnnotationPosition
}

type DeleteAnnotationCommand struct {
	OrganizationID string
	UserID         string
	DocumentID     string
	AnnotationID   string
}

// ---------- Document queries ----------

// ListDocumentsQuery filters are optional. Search matches name, description
// or an exact tag; Tags matches documents carrying any of them.
type ListDocumentsQuery struct {
	OrganizationID string
	Folder         string
	Tags           []string
	Search         string
	ContentType    string
	From           time.Time
	To             time.Time
	Page           int
	Limit          int
}
