// Package client is the GateGuard Go SDK.
//
// It wraps the scoring and audit-log endpoints of a gateguard-api server.
// The engine-facing Score call surfaces the server's test fault modes as
// distinct errors so callers can exercise their own failure handling:
//
//	c, err := client.New("http://localhost:8000", client.WithToken(os.Getenv("API_TOKEN")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := c.Score(ctx, client.ScoreRequest{Host: "example.com", Path: "/login"})
//	switch {
//	case errors.Is(err, client.ErrMalformedResponse):
//	    // invalid_test marker: 200 with a truncated body
//	case err != nil:
//	    var apiErr *client.APIError
//	    if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusInternalServerError {
//	        // error_test marker
//	    }
//	default:
//	    fmt.Println(res.Label, res.Score)
//	}
//
// # Browsing audit logs
//
//	page, err := c.ListLogs(ctx, client.ListOptions{Decision: "BLOCK", Limit: 20})
//	for _, item := range page.Items {
//	    fmt.Println(item.LogID, item.Host, item.AIScore)
//	}
//
//	detail, err := c.GetLog(ctx, page.Items[0].LogID)
//	if errors.Is(err, client.ErrNotFound) {
//	    // the log was never recorded
//	}
package client
