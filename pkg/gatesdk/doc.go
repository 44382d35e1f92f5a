// Package gatesdk is a Go client for the gatekeeper HTTP API.
//
// A Client keeps a cookie jar, so the session and CSRF cookies the gate sets
// travel with later requests automatically:
//
//	c, err := gatesdk.NewClient("http://localhost:8080")
//	if err != nil { ... }
//	if err := c.FetchCSRF(ctx); err != nil { ... }
//	if _, err := c.Login(ctx, gatesdk.LoginRequest{UserID: "alice", Password: "..."}); err != nil { ... }
//	p, err := c.Pay(ctx, gatesdk.PaymentRequest{AmountCents: 1500, Currency: "AUD"}, totpCode)
//
// Every mutating call after FetchCSRF sends the X-CSRF-Token header. Login
// swaps the token for one bound to the new session. Failed
// calls return *APIError carrying the status and the gate's error body.
package gatesdk
