package feed_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-go/internal/feed"
	"feed-go/internal/model"
	"feed-go/internal/testutil"
)

func aliceRecord(t *testing.T, f *testutil.StoreFixture, in feed.CreateInput) *model.Record {
	t.Helper()
	f.Identities.As(testutil.Alice)
	rec, err := f.Store.Create(in)
	require.NoError(t, err)
	return rec
}

func TestStore_Edit(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "before"})

	got, err := f.Store.Edit(rec.ID, "after")
	require.NoError(t, err)

	assert.Equal(t, "after", got.Text)
	assert.Equal(t, rec.Created, got.Created)
	assert.True(t, got.Updated.After(rec.Updated))

	stored, err := f.Store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestStore_Edit_NotAuthor(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "mine"})
	writes := f.Substrate.Sets()

	f.Identities.As(testutil.Bob)
	_, err := f.Store.Edit(rec.ID, "hijacked")

	assert.ErrorIs(t, err, feed.ErrForbidden)
	assert.Equal(t, writes, f.Substrate.Sets())
	stored, err := f.Store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", stored.Text)
	assert.Equal(t, rec.Updated, stored.Updated)
}

func TestStore_Edit_Errors(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "text only"})

	tests := []struct {
		name    string
		id      string
		text    string
		wantErr error
	}{
		{name: "missing record", id: "nope", text: "x", wantErr: feed.ErrNotFound},
		{name: "too long", id: rec.ID, text: strings.Repeat("a", 5001), wantErr: feed.ErrValidation},
		{name: "empty without attachments", id: rec.ID, text: "", wantErr: feed.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Store.Edit(tt.id, tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_Edit_EmptyTextKeepsAttachments(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{
		Text:        "caption",
		Attachments: []feed.Blob{feed.NewBytesBlob("a.jpg", []byte{1, 2, 3})},
	})

	got, err := f.Store.Edit(rec.ID, "")
	require.NoError(t, err)
	assert.Empty(t, got.Text)
	assert.Len(t, got.Attachments, 1)
}

func TestStore_Edit_Unauthenticated(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "x"})
	f.Identities.Anonymous()

	_, err := f.Store.Edit(rec.ID, "y")
	assert.ErrorIs(t, err, feed.ErrUnauthenticated)
}

func TestStore_SetLocation(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "x", Location: "Madrid"})

	got, err := f.Store.SetLocation(rec.ID, "Sevilla")
	require.NoError(t, err)
	assert.Equal(t, "Sevilla", got.Location)

	got, err = f.Store.SetLocation(rec.ID, "")
	require.NoError(t, err)
	assert.Empty(t, got.Location)

	_, err = f.Store.SetLocation(rec.ID, strings.Repeat("l", 201))
	assert.ErrorIs(t, err, feed.ErrValidation)

	f.Identities.As(testutil.Bob)
	_, err = f.Store.SetLocation(rec.ID, "Bilbao")
	assert.ErrorIs(t, err, feed.ErrForbidden)
}

func TestStore_Like(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "likeable"})

	f.Identities.As(testutil.Bob)
	first, err := f.Store.Like(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.LikeCount)
	assert.Equal(t, []string{testutil.Bob.ID}, first.LikedBy)
	writes := f.Substrate.Sets()

	second, err := f.Store.Like(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, writes, f.Substrate.Sets())

	f.Identities.As(testutil.Alice)
	third, err := f.Store.Like(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, third.LikeCount)
	assert.ElementsMatch(t, []string{testutil.Alice.ID, testutil.Bob.ID}, third.LikedBy)
}

func TestStore_Unlike(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "likeable"})

	liked, err := f.Store.Like(rec.ID)
	require.NoError(t, err)
	require.Equal(t, 1, liked.LikeCount)

	unliked, err := f.Store.Unlike(rec.ID)
	require.NoError(t, err)
	assert.Zero(t, unliked.LikeCount)
	assert.Empty(t, unliked.LikedBy)
	assert.True(t, unliked.Updated.After(liked.Updated))
	writes := f.Substrate.Sets()

	again, err := f.Store.Unlike(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, unliked, again)
	assert.Equal(t, writes, f.Substrate.Sets())
}

func TestStore_Like_Errors(t *testing.T) {
	f := testutil.NewStoreFixture()

	f.Identities.As(testutil.Alice)
	_, err := f.Store.Like("nope")
	assert.ErrorIs(t, err, feed.ErrNotFound)

	rec := aliceRecord(t, f, feed.CreateInput{Text: "x"})
	f.Identities.Anonymous()
	_, err = f.Store.Like(rec.ID)
	assert.ErrorIs(t, err, feed.ErrUnauthenticated)
	_, err = f.Store.Unlike(rec.ID)
	assert.ErrorIs(t, err, feed.ErrUnauthenticated)
}

func TestStore_Comments(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "discuss"})

	f.Identities.As(testutil.Bob)
	withOne, err := f.Store.AddComment(rec.ID, "first!")
	require.NoError(t, err)
	require.Len(t, withOne.Comments, 1)

	c := withOne.Comments[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "first!", c.Text)
	assert.Equal(t, testutil.Bob.ID, c.AuthorID)
	assert.Equal(t, testutil.Bob.Username, c.AuthorUsername)
	assert.False(t, c.Created.IsZero())
	assert.Equal(t, 1, withOne.CommentCount)

	f.Identities.As(testutil.Alice)
	withTwo, err := f.Store.AddComment(rec.ID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, 2, withTwo.CommentCount)
	assert.Equal(t, len(withTwo.Comments), withTwo.CommentCount)

	// The record's author cannot remove someone else's comment.
	_, err = f.Store.DeleteComment(rec.ID, c.ID)
	assert.ErrorIs(t, err, feed.ErrForbidden)

	f.Identities.As(testutil.Bob)
	withOneLeft, err := f.Store.DeleteComment(rec.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, withOneLeft.CommentCount)
	require.Len(t, withOneLeft.Comments, 1)
	assert.Equal(t, "thanks", withOneLeft.Comments[0].Text)

	_, err = f.Store.DeleteComment(rec.ID, c.ID)
	assert.ErrorIs(t, err, feed.ErrNotFound)
}

func TestStore_AddComment_Validation(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "x"})

	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "too long", text: strings.Repeat("c", 1001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Store.AddComment(rec.ID, tt.text)

			require.ErrorIs(t, err, feed.ErrValidation)
			var fe *feed.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "text", fe.Field)
		})
	}
}

func TestStore_CommentCountMatchesComments(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "x"})

	var ids []string
	for _, text := range []string{"a", "b", "c", "d"} {
		got, err := f.Store.AddComment(rec.ID, text)
		require.NoError(t, err)
		ids = append(ids, got.Comments[len(got.Comments)-1].ID)
	}
	for _, id := range ids[:3] {
		_, err := f.Store.DeleteComment(rec.ID, id)
		require.NoError(t, err)
	}

	got, err := f.Store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, len(got.Comments), got.CommentCount)
	assert.Equal(t, 1, got.CommentCount)
}

func TestStore_RemoveAttachment(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{
		Text: "album",
		Attachments: []feed.Blob{
			feed.NewBytesBlob("one.jpg", []byte("1")),
			feed.NewBytesBlob("two.jpg", []byte("2")),
		},
	})

	got, err := f.Store.RemoveAttachment(rec.ID, "one.jpg")
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "two.jpg", got.Attachments[0].Name)

	_, err = f.Store.RemoveAttachment(rec.ID, "one.jpg")
	require.ErrorIs(t, err, feed.ErrNotFound)
	var fe *feed.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "attachments", fe.Field)

	f.Identities.As(testutil.Bob)
	_, err = f.Store.RemoveAttachment(rec.ID, "two.jpg")
	assert.ErrorIs(t, err, feed.ErrForbidden)
}

func TestStore_UpdateWriteFailureKeepsState(t *testing.T) {
	f := testutil.NewStoreFixture()
	rec := aliceRecord(t, f, feed.CreateInput{Text: "stable"})

	f.Substrate.FailSets(feed.ErrStorageUnavailable)
	_, err := f.Store.Edit(rec.ID, "lost")
	require.ErrorIs(t, err, feed.ErrStorage)
	assert.ErrorIs(t, err, feed.ErrStorageUnavailable)
	f.Substrate.FailSets(nil)

	got, err := f.Store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "stable", got.Text)
}

// Two users share a feed: one posts, the other reacts, and the author
// cleans up.
func TestStore_TwoUserSession(t *testing.T) {
	f := testutil.NewStoreFixture()

	f.Identities.As(testutil.Alice)
	post, err := f.Store.Create(feed.CreateInput{Text: "Mi primer gato", Location: "Valencia"})
	require.NoError(t, err)

	f.Identities.As(testutil.Bob)
	_, err = f.Store.Like(post.ID)
	require.NoError(t, err)
	commented, err := f.Store.AddComment(post.ID, "¡Qué bonito!")
	require.NoError(t, err)
	assert.Equal(t, 2, commented.Score())

	_, err = f.Store.Edit(post.ID, "mine now")
	require.ErrorIs(t, err, feed.ErrForbidden)
	err = f.Store.Delete(post.ID)
	require.ErrorIs(t, err, feed.ErrForbidden)

	f.Identities.Anonymous()
	page, err := f.Store.List(feed.ListQuery{Page: 1, PerPage: 10, Filter: `text ~ "GATO"`})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Items[0].LikeCount)
	assert.Equal(t, 1, page.Items[0].CommentCount)

	f.Identities.As(testutil.Alice)
	require.NoError(t, f.Store.Delete(post.ID))

	page, err = f.Store.List(feed.ListQuery{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestStore_TimestampsFollowClock(t *testing.T) {
	f := testutil.NewStoreFixture()
	start := f.Clock.Now()
	f.Clock.Advance(time.Hour)

	rec := aliceRecord(t, f, feed.CreateInput{Text: "later"})

	// Reading the clock above stepped it by one minute.
	assert.Equal(t, start.Add(time.Hour+time.Minute), rec.Created)
}
