package model

// Credential is the stored OAuth token bundle used to call the Calendar API
// on a user's behalf. The JSON field names are the wire format shared between
// the auth server and the bot, so stored records stay readable by both.
type Credential struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
}
