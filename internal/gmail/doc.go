// Package gmail adapts the Gmail API to the organize pipeline.
//
// The Service type exposes exactly the remote operations the pipeline
// needs: label listing, lookup, creation and deletion, paged message
// listing, per-message metadata fetch, and batched label modification.
// Every call goes through the gateway, so token-bucket admission,
// retry with backoff, and dry-run write suppression apply uniformly
// regardless of which component issues the call.
//
// Authentication uses the cached Google OAuth token from the google
// package (~/.cache/mailfold/). Multi-account is supported by naming
// the account; "default" is the unnamed single-account case.
//
// Example usage:
//
//	ctx := context.Background()
//	gw := gateway.New(gateway.DefaultConfig(), logger, metrics)
//	svc, err := gmail.NewService(ctx, gw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// One page of inbox messages
//	page, err := svc.ListMessages(ctx, "in:inbox", "", 100)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, ref := range page.Refs {
//	    msg, err := svc.GetMetadata(ctx, ref.ID)
//	    ...
//	}
package gmail
