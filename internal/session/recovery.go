package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/tempvortex/internal/model"
)

// Query parameters carried by a recovery link.
const (
	ParamAccount  = "account"
	ParamProvider = "provider"
	ParamToken    = "token"
)

var (
	// ErrNoRecovery means the parameters carry no recovery token.
	ErrNoRecovery = errors.New("no recovery parameters")

	// ErrInvalidRecovery means recovery parameters were present but do
	// not describe a usable account.
	ErrInvalidRecovery = errors.New("invalid recovery parameters")
)

// EncodeRecovery appends the recovery parameters for account to base.
// The token is included only when the account has one.
func EncodeRecovery(base string, account model.Account) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing recovery base %q: %w", base, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	q.Set(ParamAccount, account.Address)
	q.Set(ParamProvider, string(account.Provider))
	if account.Token != "" {
		q.Set(ParamToken, account.Token)
	} else {
		q.Del(ParamToken)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// DecodeRecovery rebuilds an account from recovery parameters without
// contacting the provider.
func DecodeRecovery(values url.Values) (*model.Account, error) {
	address := strings.TrimSpace(values.Get(ParamAccount))
	id := model.ProviderID(strings.TrimSpace(values.Get(ParamProvider)))
	if address == "" || id == "" {
		return nil, ErrNoRecovery
	}
	if !id.Valid() {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidRecovery, id)
	}

	acct := &model.Account{
		Address:  address,
		Token:    values.Get(ParamToken),
		Provider: id,
	}
	if _, _, err := acct.SplitAddress(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecovery, err)
	}
	return acct, nil
}

// HasRecovery reports whether any recovery parameter is present.
func HasRecovery(values url.Values) bool {
	return values.Has(ParamAccount) || values.Has(ParamProvider) || values.Has(ParamToken)
}

// StripRecovery removes the recovery parameters from u in place,
// keeping any other query parameters.
func StripRecovery(u *url.URL) {
	if u == nil {
		return
	}
	q := u.Query()
	q.Del(ParamAccount)
	q.Del(ParamProvider)
	q.Del(ParamToken)
	u.RawQuery = q.Encode()
}
