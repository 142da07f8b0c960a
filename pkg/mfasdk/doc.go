// Package mfasdk provides a typed Go client for the SACCO MFA verification
// service, plus the wire types shared between the client and the service's
// HTTP handlers.
//
// Basic usage:
//
//	client := mfasdk.NewClient("https://mfa.internal:8080")
//	resp, err := client.Verify(ctx, mfasdk.VerifyRequest{
//		UserID: "member-1",
//		Factor: "totp",
//		Token:  "123456",
//	})
//
// Verification failures come back as *mfasdk.APIError with the service's
// closed failure-reason code; rate-limit rejections as *mfasdk.RateLimitError
// carrying the retry time.
package mfasdk
