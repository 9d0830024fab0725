package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// DefaultOAuthScopes are the Google OAuth scopes mailfold requests.
//
// gmail.modify covers everything the organize pipeline does: listing
// and fetching messages, creating and deleting labels, and changing
// the labels on messages. Send and permanent message deletion stay
// out of reach of a leaked token.
var DefaultOAuthScopes = []string{
	gmail.GmailModifyScope,
}
