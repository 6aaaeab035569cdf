package feed

import (
	"fmt"
	"slices"
	"time"

	"feed-go/internal/model"
)

type editRequest struct {
	Text string `json:"text" validate:"max=5000"`
}

type locationRequest struct {
	Location string `json:"location" validate:"max=200"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// mutation changes rec in place on behalf of who. It reports whether
// anything changed; an unchanged record is not written back.
type mutation func(who *model.Identity, rec *model.Record) (bool, error)

// update runs fn against a copy of record id inside the critical section and,
// if fn changed it, stamps Updated and persists the collection with one Set.
// Authentication and existence are checked before fn runs; fn performs its
// own authorization and returns before mutating when it rejects.
func (s *Store) update(op, id string, fn mutation) (*model.Record, error) {
	who, err := s.requireIdentity(op, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(op)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, &Error{Kind: KindNotFound, Op: op, ID: id}
	}

	next := records[i].Clone()
	changed, err := fn(who, &next)
	if err != nil {
		return nil, err
	}
	if changed {
		next.Updated = s.clock.Now()
		records[i] = next
		if err := s.save(op, id, records); err != nil {
			return nil, err
		}
		s.logger.Debug("record updated", "op", op, "id", id, "by", who.ID)
	}

	out := next.Clone()
	return &out, nil
}

func authorOnly(op string) mutation {
	return func(who *model.Identity, rec *model.Record) (bool, error) {
		if rec.AuthorID != who.ID {
			return false, &Error{Kind: KindForbidden, Op: op, ID: rec.ID}
		}
		return true, nil
	}
}

// Edit replaces the text of a record. Only the author may edit.
func (s *Store) Edit(id, text string) (rec *model.Record, err error) {
	const op = "edit"
	defer s.observe(op, time.Now(), &err)

	if err := Validate(op, editRequest{Text: text}); err != nil {
		return nil, err
	}
	owner := authorOnly(op)
	return s.update(op, id, func(who *model.Identity, rec *model.Record) (bool, error) {
		if _, err := owner(who, rec); err != nil {
			return false, err
		}
		if text == "" && len(rec.Attachments) == 0 {
			return false, &Error{Kind: KindValidation, Op: op, ID: id, Field: "text", Err: fmt.Errorf("text is required")}
		}
		rec.Text = text
		return true, nil
	})
}

// SetLocation replaces the location of a record; an empty location clears it.
// Only the author may change it.
func (s *Store) SetLocation(id, location string) (rec *model.Record, err error) {
	const op = "locate"
	defer s.observe(op, time.Now(), &err)

	if err := Validate(op, locationRequest{Location: location}); err != nil {
		return nil, err
	}
	owner := authorOnly(op)
	return s.update(op, id, func(who *model.Identity, rec *model.Record) (bool, error) {
		if _, err := owner(who, rec); err != nil {
			return false, err
		}
		rec.Location = location
		return true, nil
	})
}

// Like adds the current identity to the record's likes. Liking twice is a
// no-op that returns the current state.
func (s *Store) Like(id string) (rec *model.Record, err error) {
	const op = "like"
	defer s.observe(op, time.Now(), &err)

	return s.update(op, id, func(who *model.Identity, rec *model.Record) (bool, error) {
		if rec.IsLikedBy(who.ID) {
			return false, nil
		}
		rec.LikedBy = append(rec.LikedBy, who.ID)
		rec.LikeCount = len(rec.LikedBy)
		return true, nil
	})
}

// Unlike removes the current identity from the record's likes. Unliking a
// record that is not liked is a no-op.
func (s *Store) Unlike(id string) (rec *model.Record, err error) {
	const op = "unlike"
	defer s.observe(op, time.Now(), &err)

	return s.update(op, id, func(who *model.Identity, rec *model.Record) (bool, error) {
		i := slices.Index(rec.LikedBy, who.ID)
		if i < 0 {
			return false, nil
		}
		rec.LikedBy = slices.Delete(rec.LikedBy, i, i+1)
		rec.LikeCount = len(rec.LikedBy)
		return true, nil
	})
}

// AddComment appends a comment by the current identity.
func (s *Store) AddComment(id, text string) (rec *model.Record, err error) {
	const op = "comment"
	defer s.observe(op, time.Now(), &err)

	if err := Validate(op, commentRequest{Text: text}); err != nil {
		return nil, err
	}
	return s.update(op, id, func(who *model.Identity, rec *model.Record) (bool, error) {
		rec.Comments = append(rec.Comments, model.Comment{
			ID:             s.idgen.New(),
			Text:           text,
			AuthorID:       who.ID,
			AuthorUsername: who.Username,
			Created:        s.clock.Now(),
		})
		rec.CommentCount++
		return true, nil
	})
}

// DeleteComment removes one comment. Only the comment's author may remove it,
// regardless of who authored the record.
func (s *Store) DeleteComment(recordID, commentID string) (rec *model.Record, err error) {
	const op = "uncomment"
	defer s.observe(op, time.Now(), &err)

	return s.update(op, recordID, func(who *model.Identity, rec *model.Record) (bool, error) {
		i := slices.IndexFunc(rec.Comments, func(c model.Comment) bool { return c.ID == commentID })
		if i < 0 {
			return false, &Error{Kind: KindNotFound, Op: op, ID: commentID}
		}
		if rec.Comments[i].AuthorID != who.ID {
			return false, &Error{Kind: KindForbidden, Op: op, ID: commentID}
		}
		rec.Comments = slices.Delete(rec.Comments, i, i+1)
		rec.CommentCount = max(rec.CommentCount-1, 0)
		return true, nil
	})
}

// RemoveAttachment drops the first attachment called name. Only the author
// may remove attachments.
func (s *Store) RemoveAttachment(recordID, name string) (rec *model.Record, err error) {
	const op = "detach"
	defer s.observe(op, time.Now(), &err)

	owner := authorOnly(op)
	return s.update(op, recordID, func(who *model.Identity, rec *model.Record) (bool, error) {
		if _, err := owner(who, rec); err != nil {
			return false, err
		}
		i := slices.IndexFunc(rec.Attachments, func(a model.Attachment) bool { return a.Name == name })
		if i < 0 {
			return false, &Error{Kind: KindNotFound, Op: op, ID: recordID, Field: "attachments", Err: fmt.Errorf("no attachment named %q", name)}
		}
		rec.Attachments = slices.Delete(rec.Attachments, i, i+1)
		return true, nil
	})
}
