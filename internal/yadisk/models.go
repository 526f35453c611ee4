package yadisk

import (
	"encoding/json"
	"fmt"
)

const (
	TypeFile = "file"
	TypeDir  = "dir"
)

// RemoteItem is one entry of a directory listing. File entries carry a
// time-limited direct download URL in File.
type RemoteItem struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size,omitempty"`
	File     string `json:"file,omitempty"`
	MD5      string `json:"md5,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// Embedded mirrors the API's _embedded pagination envelope.
type Embedded struct {
	Items  []RemoteItem `json:"items"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
	Total  int          `json:"total"`
}

// FileMetadata is the flat resource record returned for a shared file.
type FileMetadata struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size"`
	File     string `json:"file,omitempty"`
	MD5      string `json:"md5,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// DirectoryMetadata is the resource record returned for a shared
// directory, with one page of children under _embedded.
type DirectoryMetadata struct {
	Type     string   `json:"type"`
	Name     string   `json:"name"`
	Path     string   `json:"path,omitempty"`
	Created  string   `json:"created,omitempty"`
	Modified string   `json:"modified,omitempty"`
	Embedded Embedded `json:"_embedded"`
}

// Resource holds exactly one decoded variant, discriminated by the
// API's type field.
type Resource struct {
	File *FileMetadata
	Dir  *DirectoryMetadata
}

func (r *Resource) IsDir() bool {
	return r.Dir != nil
}

type downloadLink struct {
	Href string `json:"href"`
	Size int64  `json:"size"`
}

func decodeResource(status int, body []byte) (*Resource, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, &APIError{StatusCode: status, Message: fmt.Sprintf("malformed resource JSON: %v", err)}
	}

	switch probe.Type {
	case TypeFile:
		var fm FileMetadata
		if err := json.Unmarshal(body, &fm); err != nil {
			return nil, &APIError{StatusCode: status, Message: fmt.Sprintf("malformed file metadata: %v", err)}
		}
		return &Resource{File: &fm}, nil
	case TypeDir:
		var dm DirectoryMetadata
		if err := json.Unmarshal(body, &dm); err != nil {
			return nil, &APIError{StatusCode: status, Message: fmt.Sprintf("malformed directory metadata: %v", err)}
		}
		return &Resource{Dir: &dm}, nil
	default:
		return nil, &APIError{StatusCode: status, Message: fmt.Sprintf("unexpected resource type %q", probe.Type)}
	}
}
