package google

// DefaultOAuthScopes are the Google OAuth scopes required for calendar
// operations. These scopes are used consistently across the application for
// OAuth configurations.
//
// The scopes provide access to:
//   - OpenID Connect user identity (required to map tokens to accounts)
//   - Google Calendar: full read/write access
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",
}
