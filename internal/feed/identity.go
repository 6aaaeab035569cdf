package feed

import "feed-go/internal/model"

// IdentityResolver reports who is currently authenticated.
// CurrentIdentity returns nil and no error when nobody is logged in; an error
// means the lookup itself failed. Results are stable until login or logout.
type IdentityResolver interface {
	CurrentIdentity() (*model.Identity, error)
}
