// Package google provides OAuth2 authentication and token management
// for the Gmail API.
//
// Tokens are cached on disk under the user cache directory
// (~/.cache/mailfold/ on Linux), one file per account, so several
// mailboxes can be organized from one machine.
package google
