package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mailfold/mailfold/internal/gateway"
	"github.com/mailfold/mailfold/internal/google"
	"github.com/mailfold/mailfold/internal/instrumentation"
)

// maxPageSize is the largest page the Gmail list endpoints accept.
const maxPageSize = 100

// metadataHeaders are the only headers the organize pipeline reads.
var metadataHeaders = []string{"From", "To", "Subject", "List-Unsubscribe"}

// Service exposes the remote Gmail operations the organize pipeline
// needs. Every call, read or write, is dispatched through the gateway
// so admission and retry policy apply uniformly.
type Service struct {
	svc     *gmail.UsersService
	gw      *gateway.Gateway
	account string
}

// Account returns the account name this service is associated with.
func (s *Service) Account() string {
	return s.account
}

// HasTokenForAccount checks if a cached OAuth token exists for the
// specified account.
func HasTokenForAccount(account string) bool {
	return google.HasTokenForAccount(account)
}

// HasToken checks if a cached OAuth token exists for the default account.
func HasToken() bool {
	return google.HasToken()
}

// NewServiceForAccount creates a Service for a specific account. The
// OAuth token must already be cached; run `mailfold auth` first.
func NewServiceForAccount(ctx context.Context, account string, gw *gateway.Gateway) (*Service, error) {
	client, err := google.GetHTTPClientForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s: %w", account, err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	if gw == nil {
		gw = gateway.New(gateway.DefaultConfig(), nil, nil)
	}

	return &Service{
		svc:     svc.Users,
		gw:      gw,
		account: account,
	}, nil
}

// NewService creates a Service for the default account.
func NewService(ctx context.Context, gw *gateway.Gateway) (*Service, error) {
	return NewServiceForAccount(ctx, "default", gw)
}

// ListLabels fetches every label in the mailbox in a single call.
func (s *Service) ListLabels(ctx context.Context) ([]Label, error) {
	var labels []Label
	err := s.gw.Execute(ctx, gateway.Operation{
		Name: instrumentation.OpLabelsList,
		Kind: gateway.Read,
		Do: func(ctx context.Context) error {
			res, err := s.svc.Labels.List("me").Context(ctx).Do()
			if err != nil {
				return err
			}
			labels = labels[:0]
			for _, l := range res.Labels {
				labels = append(labels, snapshotLabel(l))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// GetLabel fetches a single label including its message counts. The
// listing endpoint omits counts, so cleanup uses this per candidate.
func (s *Service) GetLabel(ctx context.Context, id string) (Label, error) {
	var label Label
	err := s.gw.Execute(ctx, gateway.Operation{
		Name: instrumentation.OpLabelsGet,
		Kind: gateway.Read,
		Do: func(ctx context.Context) error {
			l, err := s.svc.Labels.Get("me", id).Context(ctx).Do()
			if err != nil {
				return err
			}
			label = snapshotLabel(l)
			label.MessagesTotal = l.MessagesTotal
			return nil
		},
	})
	if err != nil {
		return Label{}, err
	}
	return label, nil
}

// CreateLabel creates a user label with the given full path name. Under
// dry run the remote call is skipped and a placeholder label with a
// synthetic id is returned so downstream planning can proceed.
func (s *Service) CreateLabel(ctx context.Context, name string) (Label, error) {
	var label Label
	err := s.gw.Execute(ctx, gateway.Operation{
		Name: instrumentation.OpLabelsCreate,
		Kind: gateway.Write,
		Do: func(ctx context.Context) error {
			l, err := s.svc.Labels.Create("me", &gmail.Label{
				Name:                  name,
				LabelListVisibility:   "labelShow",
				MessageListVisibility: "show",
			}).Context(ctx).Do()
			if err != nil {
				return err
			}
			label = snapshotLabel(l)
			return nil
		},
	})
	if err != nil {
		return Label{}, err
	}
	if s.gw.DryRun() {
		return Label{
			ID:                    DryRunLabelID(name),
			Name:                  name,
			Type:                  "user",
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}, nil
	}
	return label, nil
}

// DeleteLabel removes a user label. Messages keep their other labels.
func (s *Service) DeleteLabel(ctx context.Context, id string) error {
	return s.gw.Execute(ctx, gateway.Operation{
		Name: instrumentation.OpLabelsDelete,
		Kind: gateway.Write,
		Do: func(ctx context.Context) error {
			return s.svc.Labels.Delete("me", id).Context(ctx).Do()
		},
	})
}

// ListMessages fetches one page of message references matching the
// query. An empty pageToken starts from the beginning; the returned
// page carries the cursor for the next call.
func (s *Service) ListMessages(ctx context.Context, query, pageToken string, pageSize int64) (*MessagePage, error) {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var page *MessagePage
	err := s.gw.Execute(ctx, gateway.Operation{
		Name: instrumentation.OpMessagesList,
		Kind: gateway.Read,
		Do: func(ctx context.Context) error {
			req := s.svc.Messages.List("me").MaxResults(pageSize)
			if query != "" {
				req = req.Q(query)
			}
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			res, err := req.Context(ctx).Do()
			if err != nil {
				return err
			}
			page = &MessagePage{NextPageToken: res.NextPageToken}
			for _, m := range res.Messages {
				page.Refs = append(page.Refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetMetadata fetches the header snapshot for a single message. Only
// the headers the classifier consumes are requested.
func (s *Service) GetMetadata(ctx context.Context, id string) (Message, error) {
	var msg Message
	err := s.gw.Execute(ctx, gateway.Operation{
		Name: instrumentation.OpMessagesGet,
		Kind: gateway.Read,
		Do: func(ctx context.Context) error {
			m, err := s.svc.Messages.Get("me", id).
				Format("metadata").
				MetadataHeaders(metadataHeaders...).
				Context(ctx).Do()
			if err != nil {
				return err
			}
			msg = snapshotMessage(m)
			return nil
		},
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// BatchModify applies one add/remove label set to a group of messages.
// The batch is admitted at a cost proportional to the number of
// messages it touches, so it draws down quota exactly as the same
// modifications issued individually would.
func (s *Service) BatchModify(ctx context.Context, ids, addLabelIDs, removeLabelIDs []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(addLabelIDs) == 0 && len(removeLabelIDs) == 0 {
		return nil
	}
	return s.gw.Execute(ctx, gateway.Operation{
		Name: instrumentation.OpMessagesBatchModify,
		Kind: gateway.Write,
		Cost: float64(len(ids)),
		Do: func(ctx context.Context) error {
			return s.svc.Messages.BatchModify("me", &gmail.BatchModifyMessagesRequest{
				Ids:            ids,
				AddLabelIds:    addLabelIDs,
				RemoveLabelIds: removeLabelIDs,
			}).Context(ctx).Do()
		},
	})
}

// DryRun reports whether this service skips write operations.
func (s *Service) DryRun() bool {
	return s.gw.DryRun()
}

// DryRunLabelID returns the synthetic id used for a label that would be
// created. Deterministic per path so registry lookups stay consistent
// within a preview run.
func DryRunLabelID(name string) string {
	return "dry-run:" + name
}

// IsDryRunLabelID reports whether an id was synthesized by a preview
// run rather than returned by the remote service.
func IsDryRunLabelID(id string) bool {
	return strings.HasPrefix(id, "dry-run:")
}

// IsAlreadyExists reports whether an error is the remote service
// rejecting a label creation because the name is already taken. The
// hierarchy manager treats this as success and re-resolves the
// existing label by name.
func IsAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusConflict {
		return true
	}
	if gerr.Code != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(gerr.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "exists or conflicts")
}

// IsNotFound reports whether an error is the remote service saying the
// resource no longer exists. Cleanup treats a 404 on delete as a label
// that is already gone.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func snapshotLabel(l *gmail.Label) Label {
	return Label{
		ID:                    l.Id,
		Name:                  l.Name,
		Type:                  l.Type,
		LabelListVisibility:   l.LabelListVisibility,
		MessageListVisibility: l.MessageListVisibility,
	}
}

func snapshotMessage(m *gmail.Message) Message {
	msg := Message{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Snippet:  m.Snippet,
		LabelIDs: m.LabelIds,
	}
	if m.Payload == nil {
		return msg
	}
	for _, h := range m.Payload.Headers {
		switch {
		case strings.EqualFold(h.Name, "From"):
			msg.From = h.Value
		case strings.EqualFold(h.Name, "To"):
			msg.To = h.Value
		case strings.EqualFold(h.Name, "Subject"):
			msg.Subject = h.Value
		case strings.EqualFold(h.Name, "List-Unsubscribe"):
			msg.HasUnsubscribe = h.Value != ""
		}
	}
	return msg
}
