package models

// Token is an OAuth bearer token for a cloud storage provider. Tokens are
// obtained by the browser through the implicit flow and registered with the
// backend; there is no server-side code exchange and no refresh. A rejected
// token means the user must re-authenticate.
type Token struct {
	AccessToken string   `json:"access_token"`
	Provider    Provider `json:"provider"`
}

// Valid reports whether the token carries a usable access token
func (t *Token) Valid() bool {
	return t != nil && t.AccessToken != ""
}
