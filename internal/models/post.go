package models

import "time"

type Post struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Path        string    `json:"path"`
	Layout      string    `json:"layout"`
	Author      string    `json:"author"`
	Title       string    `json:"title,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Body        string    `json:"body,omitempty"`
	Excerpt     string    `json:"excerpt,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Checksum    string    `json:"checksum"`
	ImportedAt  time.Time `json:"imported_at"`
}

type Author struct {
	Name  string `json:"name"`
	Posts int    `json:"posts"`
}
