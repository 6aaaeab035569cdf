package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"feed-go/internal/feed"
	"feed-go/internal/testutil"
)

type directoryFixture struct {
	dir       *Directory
	substrate *testutil.FailingSubstrate
	clock     *testutil.StubClock
}

func newDirectoryFixture() *directoryFixture {
	sub := testutil.NewFailingSubstrate(testutil.NewTestSubstrate())
	clock := testutil.FixedClock()
	sessions := NewSessionResolver(sub, secret, time.Hour, clock, feed.NewNopLogger())
	dir := NewDirectory(sub, sessions, feed.Base64Encoder{}, feed.NewNopLogger(), clock, testutil.NewPrefixedIDGenerator("u"), Options{HashCost: bcrypt.MinCost})
	return &directoryFixture{dir: dir, substrate: sub, clock: clock}
}

func registration(email, username string) RegisterInput {
	return RegisterInput{
		Email:           email,
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
		Username:        username,
	}
}

func TestDirectory_Register(t *testing.T) {
	f := newDirectoryFixture()

	id, err := f.dir.Register(registration("Dana@Example.com", "dana"))
	require.NoError(t, err)

	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, "dana@example.com", id.Email)
	assert.Equal(t, "dana", id.Username)

	// Registering does not start a session.
	who, err := f.dir.Sessions().CurrentIdentity()
	require.NoError(t, err)
	assert.Nil(t, who)

	got, err := f.dir.Lookup(id.ID)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestDirectory_Register_DoesNotStorePlaintext(t *testing.T) {
	f := newDirectoryFixture()
	_, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)

	raw, ok, err := f.substrate.Get(UsersKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "correct horse")
}

func TestDirectory_Register_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *RegisterInput)
		wantField string
	}{
		{name: "missing email", mutate: func(in *RegisterInput) { in.Email = "" }, wantField: "email"},
		{name: "malformed email", mutate: func(in *RegisterInput) { in.Email = "not-an-email" }, wantField: "email"},
		{name: "short password", mutate: func(in *RegisterInput) { in.Password, in.PasswordConfirm = "short", "short" }, wantField: "password"},
		{name: "confirmation mismatch", mutate: func(in *RegisterInput) { in.PasswordConfirm = "something else" }, wantField: "passwordConfirm"},
		{name: "short username", mutate: func(in *RegisterInput) { in.Username = "ab" }, wantField: "username"},
		{name: "username with symbols", mutate: func(in *RegisterInput) { in.Username = "dana!" }, wantField: "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDirectoryFixture()
			in := registration("dana@example.com", "dana")
			tt.mutate(&in)

			_, err := f.dir.Register(in)

			require.ErrorIs(t, err, feed.ErrValidation)
			var fe *feed.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantField, fe.Field)
			assert.Zero(t, f.substrate.Sets())
		})
	}
}

func TestDirectory_Register_Duplicates(t *testing.T) {
	f := newDirectoryFixture()
	_, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		in        RegisterInput
		wantField string
	}{
		{name: "same email any case", in: registration("DANA@example.com", "other"), wantField: "email"},
		{name: "same username any case", in: registration("other@example.com", "Dana"), wantField: "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dir.Register(tt.in)

			require.ErrorIs(t, err, feed.ErrValidation)
			var fe *feed.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantField, fe.Field)
		})
	}
}

func TestDirectory_Login(t *testing.T) {
	f := newDirectoryFixture()
	registered, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)

	id, err := f.dir.Login("DANA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, registered, id)

	who, err := f.dir.Sessions().CurrentIdentity()
	require.NoError(t, err)
	assert.Equal(t, registered, who)
}

func TestDirectory_Login_Rejected(t *testing.T) {
	f := newDirectoryFixture()
	_, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "dana@example.com", password: "incorrect horse"},
		{name: "unknown email", email: "nobody@example.com", password: "correct horse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dir.Login(tt.email, tt.password)
			assert.ErrorIs(t, err, feed.ErrUnauthenticated)

			who, err := f.dir.Sessions().CurrentIdentity()
			require.NoError(t, err)
			assert.Nil(t, who)
		})
	}
}

func TestDirectory_Logout(t *testing.T) {
	f := newDirectoryFixture()
	_, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)
	_, err = f.dir.Login("dana@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, f.dir.Logout())

	who, err := f.dir.Sessions().CurrentIdentity()
	require.NoError(t, err)
	assert.Nil(t, who)
	assert.NoError(t, f.dir.Logout())
}

func TestDirectory_UpdateProfile(t *testing.T) {
	f := newDirectoryFixture()
	_, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)
	_, err = f.dir.Register(registration("eve@example.com", "eve"))
	require.NoError(t, err)

	_, err = f.dir.UpdateProfile("danita", nil)
	require.ErrorIs(t, err, feed.ErrUnauthenticated)

	_, err = f.dir.Login("dana@example.com", "correct horse")
	require.NoError(t, err)

	updated, err := f.dir.UpdateProfile("danita", feed.NewBytesBlob("me.png", []byte("img")))
	require.NoError(t, err)
	assert.Equal(t, "danita", updated.Username)
	assert.Equal(t, "me.png", updated.Avatar)

	who, err := f.dir.Sessions().CurrentIdentity()
	require.NoError(t, err)
	assert.Equal(t, updated, who)

	_, err = f.dir.UpdateProfile("Eve", nil)
	require.ErrorIs(t, err, feed.ErrValidation)

	// An empty username keeps the current one.
	kept, err := f.dir.UpdateProfile("", nil)
	require.NoError(t, err)
	assert.Equal(t, "danita", kept.Username)
	assert.Equal(t, "me.png", kept.Avatar)
}

func TestDirectory_UpdateProfile_DoesNotTouchPublishedRecords(t *testing.T) {
	f := newDirectoryFixture()
	_, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)
	_, err = f.dir.Login("dana@example.com", "correct horse")
	require.NoError(t, err)

	store := feed.NewStore(f.substrate, f.dir.Sessions(), feed.Base64Encoder{}, feed.NewNopLogger(), f.clock, testutil.NewPrefixedIDGenerator("rec"), feed.NopMetrics{}, feed.Options{})
	rec, err := store.Create(feed.CreateInput{Text: "before the rename"})
	require.NoError(t, err)

	_, err = f.dir.UpdateProfile("danita", nil)
	require.NoError(t, err)

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "dana", got.Author.Username)

	next, err := store.Create(feed.CreateInput{Text: "after the rename"})
	require.NoError(t, err)
	assert.Equal(t, "danita", next.Author.Username)
}

func TestDirectory_Lookup_Missing(t *testing.T) {
	f := newDirectoryFixture()

	_, err := f.dir.Lookup("u-404")
	assert.ErrorIs(t, err, feed.ErrNotFound)
}

func TestDirectory_StorageFailure(t *testing.T) {
	f := newDirectoryFixture()
	f.substrate.FailGets(feed.ErrStorageUnavailable)

	_, err := f.dir.Register(registration("dana@example.com", "dana"))
	assert.ErrorIs(t, err, feed.ErrStorage)

	_, err = f.dir.Login("dana@example.com", "correct horse")
	assert.ErrorIs(t, err, feed.ErrStorage)
}

func TestDirectory_UpdateProfile_SessionFailureKeepsProfile(t *testing.T) {
	f := newDirectoryFixture()
	dana, err := f.dir.Register(registration("dana@example.com", "dana"))
	require.NoError(t, err)
	_, err = f.dir.Login("dana@example.com", "correct horse")
	require.NoError(t, err)

	f.substrate.FailSetsOf(TokenKey, feed.ErrStorageUnavailable)
	_, err = f.dir.UpdateProfile("danita", feed.NewBytesBlob("me.png", []byte("img")))
	require.ErrorIs(t, err, feed.ErrStorage)
	require.ErrorIs(t, err, feed.ErrStorageUnavailable)

	stored, err := f.dir.Lookup(dana.ID)
	require.NoError(t, err)
	assert.Equal(t, "dana", stored.Username)
	assert.Empty(t, stored.Avatar)

	who, err := f.dir.Sessions().CurrentIdentity()
	require.NoError(t, err)
	assert.Equal(t, "dana", who.Username)

	f.substrate.FailSetsOf(TokenKey, nil)
	updated, err := f.dir.UpdateProfile("danita", nil)
	require.NoError(t, err)
	assert.Equal(t, "danita", updated.Username)
}

func TestDirectory_List(t *testing.T) {
	f := newDirectoryFixture()
	for _, name := range []string{"ana", "bob", "anabel", "carla", "juana"} {
		_, err := f.dir.Register(registration(name+"@example.com", name))
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		page      int
		perPage   int
		filter    string
		wantNames []string
		wantTotal int
		wantPages int
	}{
		{name: "everyone", page: 1, perPage: 10, wantNames: []string{"ana", "bob", "anabel", "carla", "juana"}, wantTotal: 5, wantPages: 1},
		{name: "second page", page: 2, perPage: 2, wantNames: []string{"anabel", "carla"}, wantTotal: 5, wantPages: 3},
		{name: "filtered", page: 1, perPage: 10, filter: `username ~ "ANA"`, wantNames: []string{"ana", "anabel", "juana"}, wantTotal: 3, wantPages: 1},
		{name: "filtered by email", page: 1, perPage: 10, filter: `email ~ "bob@"`, wantNames: []string{"bob"}, wantTotal: 1, wantPages: 1},
		{name: "past the end", page: 9, perPage: 2, wantNames: []string{}, wantTotal: 5, wantPages: 3},
		{name: "default page size", page: 1, perPage: 0, wantNames: []string{"ana", "bob", "anabel", "carla", "juana"}, wantTotal: 5, wantPages: 1},
		{name: "no match", page: 1, perPage: 10, filter: `username ~ "zed"`, wantNames: []string{}, wantTotal: 0, wantPages: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.dir.List(tt.page, tt.perPage, tt.filter)
			require.NoError(t, err)

			names := make([]string, 0, len(got.Items))
			for _, id := range got.Items {
				names = append(names, id.Username)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantTotal, got.TotalItems)
			assert.Equal(t, tt.wantPages, got.TotalPages)
			assert.Equal(t, tt.page, got.Page)
		})
	}
}

func TestDirectory_List_Errors(t *testing.T) {
	f := newDirectoryFixture()

	_, err := f.dir.List(0, 10, "")
	require.ErrorIs(t, err, feed.ErrValidation)
	var fe *feed.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "page", fe.Field)

	f.substrate.FailGets(feed.ErrStorageUnavailable)
	_, err = f.dir.List(1, 10, "")
	assert.ErrorIs(t, err, feed.ErrStorage)
}
