package model

import (
	"slices"
	"time"
)

// Identity is an authenticated user principal.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"` // file name of the avatar, empty when unset
}

// AuthorSnapshot is a point-in-time copy of the author's Identity taken when a
// record is created. It is never refreshed from later profile edits.
type AuthorSnapshot struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// SnapshotOf copies the display fields of an identity.
func SnapshotOf(id Identity) AuthorSnapshot {
	return AuthorSnapshot{
		ID:       id.ID,
		Email:    id.Email,
		Username: id.Username,
		Avatar:   id.Avatar,
	}
}

// Attachment is an encoded file attached to a record.
type Attachment struct {
	Name string `json:"name"`
	Data string `json:"data"` // base64
}

// Comment is a single comment on a record.
type Comment struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	Created        time.Time `json:"created"`
}

// Record is a single feed post.
type Record struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	Attachments  []Attachment   `json:"attachments"`
	Location     string         `json:"location,omitempty"`
	AuthorID     string         `json:"authorId"`
	Author       AuthorSnapshot `json:"author"`
	Created      time.Time      `json:"created"`
	Updated      time.Time      `json:"updated"`
	LikeCount    int            `json:"likeCount"`
	LikedBy      []string       `json:"likedBy"`
	Comments     []Comment      `json:"comments"`
	CommentCount int            `json:"commentCount"`
}

// Score is the popularity of a record: likes plus comments.
func (r *Record) Score() int {
	return r.LikeCount + r.CommentCount
}

// IsLikedBy reports whether identityID is in the record's like set.
func (r *Record) IsLikedBy(identityID string) bool {
	return slices.Contains(r.LikedBy, identityID)
}

// Clone returns a deep copy so callers never share slices with the collection.
func (r *Record) Clone() Record {
	c := *r
	c.Attachments = slices.Clone(r.Attachments)
	c.LikedBy = slices.Clone(r.LikedBy)
	c.Comments = slices.Clone(r.Comments)
	return c
}

// Page is one page of a listing.
type Page struct {
	Items      []Record `json:"items"`
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
}

// IdentityPage is one page of the account directory.
type IdentityPage struct {
	Items      []Identity `json:"items"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	TotalItems int        `json:"totalItems"`
	TotalPages int        `json:"totalPages"`
}
