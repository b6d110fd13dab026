// Package transport provides the HTTP request capability used by the poller.
//
// # Overview
//
// A [Transport] hands out one [Request] per polling cycle. A request is sent
// asynchronously: [Request.Send] returns immediately and the outcome is
// delivered later to the callback as a [Response]. [Request.Abort] cancels an
// in-flight request on a best-effort basis.
//
// # Quick Start
//
//	client, err := transport.New(transport.Config{
//	    Timeout:   30 * time.Second,
//	    UserAgent: "pingpoll/1.0",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req, err := client.NewRequest()
//	if err != nil {
//	    log.Fatal(err) // transport.ErrUnavailable
//	}
//
//	req.Send("https://example.com/health", func(resp transport.Response) {
//	    if resp.Err != nil {
//	        log.Printf("request failed: %v", resp.Err)
//	        return
//	    }
//	    log.Printf("status %d, %d bytes", resp.StatusCode, len(resp.Body))
//	})
//
// # Error Handling
//
// Send never returns an error. Failures are reported through [Response.Err].
// Non-200 status codes are not errors at this layer; callers decide how to
// classify them. [StatusError] is provided for callers that want to turn a
// status code into an error value:
//
//	if resp.StatusCode != http.StatusOK {
//	    err := &transport.StatusError{Code: resp.StatusCode}
//	    var se *transport.StatusError
//	    if errors.As(err, &se) && se.Temporary() {
//	        // 5xx
//	    }
//	}
//
// # Context Support
//
// Each request owns a context derived from [context.Background]. It is
// cancelled by [Request.Abort] or when the configured timeout elapses.
package transport
