package models

import "time"

// DefaultDocumentFolder holds uploads that name no folder.
const DefaultDocumentFolder = "documents"

// Annotation types.
const (
	AnnotationHighlight = "highlight"
	AnnotationNote      = "note"
	AnnotationComment   = "comment"
	AnnotationStamp     = "stamp"
)

// Document is the organization-scoped record behind a file. Its content lives
// in versions; LatestVersion names the one served by default.
type Document struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"-"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Folder         string     `json:"folder"`
	Tags           []string   `json:"tags"`
	LatestVersion  int        `json:"latestVersion"`
	Size           int64      `json:"size"`
	ContentType    string     `json:"contentType"`
	CreatedBy      string     `json:"createdBy"`
	UpdatedBy      string     `json:"updatedBy"`
	CreatedAt      time.Time  `json:"createdTimestamp"`
	UpdatedAt      time.Time  `json:"updatedTimestamp"`
	DeletedAt      *time.Time `json:"-"`
}

type DocumentVersion struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"documentId"`
	Version     int       `json:"version"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Checksum    string    `json:"checksum"`
	ChangeLog   string    `json:"changeLog,omitempty"`
	IsLatest    bool      `json:"isLatest"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedTimestamp"`
}

// DocumentContent is one version's bytes with the metadata needed to serve them.
type DocumentContent struct {
	Name    string
	Version DocumentVersion
	Data    []byte
}

// AnnotationPosition places an annotation on a page; width and height are
// optional for point annotations.
type AnnotationPosition struct {
	Page   int      `json:"page"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

type DocumentAnnotation struct {
	ID         string             `json:"id"`
	DocumentID string             `json:"documentId"`
	UserID     string             `json:"userId"`
	Type       string             `json:"type"`
	Content    string             `json:"content"`
	Position   AnnotationPosition `json:"position"`
	CreatedAt  time.Time          `json:"createdTimestamp"`
	UpdatedAt  time.Time          `json:"updatedTimestamp"`
}

// DocumentDetail is a document with its latest version and annotations.
type DocumentDetail struct {
	Document
	Latest      *DocumentVersion     `json:"latest,omitempty"`
	Annotations []DocumentAnnotation `json:"annotations"`
}

type FolderUsage struct {
	Folder string `json:"folder"`
	Count  int    `json:"count"`
	Size   int64  `json:"size"`
}

type TypeUsage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// DocumentStats sizes count latest versions only.
type DocumentStats struct {
	TotalDocuments   int           `json:"totalDocuments"`
	TotalSize        int64         `json:"totalSize"`
	TotalVersions    int           `json:"totalVersions"`
	TotalAnnotations int           `json:"totalAnnotations"`
	ByFolder         []FolderUsage `json:"byFolder"`
	ByType           []TypeUsage   `json:"byType"`
}
