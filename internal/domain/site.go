package domain

import (
	"errors"
	"time"
)

// File is a single generated artifact.
type File struct {
	Name    string
	Content string
}

// Site is the set of files produced by one generation, stored under Path.
type Site struct {
	Path         string
	Files        []File
	Model        string
	Turns        int
	PromptTokens int
	CreatedAt    time.Time
}

// Manifest describes a stored site without its file contents.
type Manifest struct {
	Path         string    `json:"path"`
	Files        []string  `json:"files"`
	Model        string    `json:"model,omitempty"`
	Turns        int       `json:"turns"`
	PromptTokens int       `json:"promptTokens"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrNotFound is returned by site stores when a site or file does not exist.
var ErrNotFound = errors.New("not found")
