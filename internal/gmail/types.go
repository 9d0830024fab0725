package gmail

// Label is a point-in-time snapshot of a remote Gmail label.
type Label struct {
	ID                    string
	Name                  string
	Type                  string // "system" or "user"
	LabelListVisibility   string
	MessageListVisibility string
	MessagesTotal         int64 // populated by GetLabel only; List omits counts
}

// IsSystem reports whether the label is managed by Gmail itself
// (INBOX, SENT, CATEGORY_*, ...). System labels are never created,
// deleted or migrated by the organize pipeline.
func (l Label) IsSystem() bool {
	return l.Type == "system"
}

// MessageRef identifies a message within a listing page. Listing
// returns identifiers only; the header snapshot comes from GetMetadata.
type MessageRef struct {
	ID       string
	ThreadID string
}

// MessagePage is one page of a mailbox listing together with the
// cursor for the next page. An empty NextPageToken means the listing
// is exhausted.
type MessagePage struct {
	Refs          []MessageRef
	NextPageToken string
}

// Message is the metadata snapshot the organize pipeline works on.
// Headers are extracted once at fetch time; label state reflects the
// mailbox at snapshot time and is only ever changed remotely through
// BatchModify, never locally.
type Message struct {
	ID             string
	ThreadID       string
	From           string
	To             string
	Subject        string
	Snippet        string
	HasUnsubscribe bool
	LabelIDs       []string
}
