// Package resources stores the therapist's reference material: folders of
// text documents.
package resources

import (
	"time"
)

const (
	FolderCollection   = "resourceFolders"
	DocumentCollection = "resourceDocuments"
)

const DefaultFolderColor = "#6366f1"

type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

func (f *Folder) SetID(id string) { f.ID = id }

// FolderSummary is a folder with its document count, as listed on the page.
type FolderSummary struct {
	Folder
	Documents int `json:"documentCount"`
}

type Document struct {
	ID         string    `json:"id"`
	FolderID   string    `json:"folderId" validate:"required"`
	FolderName string    `json:"folderName"`
	Title      string    `json:"title" validate:"required"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	LastUpdate time.Time `json:"lastUpdate"`
}

func (d *Document) SetID(id string) { d.ID = id }
