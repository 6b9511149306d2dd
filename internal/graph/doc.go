// Package graph is the Microsoft Graph transport layer for the mirror.
//
// This package provides:
//   - An authenticated HTTP client with rate limiting and bounded retry of
//     throttled requests (Retry-After aware)
//   - Delta-query paging for mail folders, contact folders, and calendars
//   - The JSON $batch endpoint for pushing local edits, capped at 20
//     sub-requests per call
//   - Error handling for Microsoft Graph API responses
//
// # Delta Query
//
// Microsoft Graph supports incremental sync via delta queries:
//   - Mail: /me/mailFolders/{id}/messages/delta
//   - Contacts: /me/contactFolders/{id}/contacts/delta
//   - Calendar: /me/calendars/{id}/events/delta
//
// Delta queries return @odata.nextLink while more pages remain and
// @odata.deltaLink on the final page. Deleted entities appear as tombstones
// carrying an @removed annotation instead of payload. A 410 Gone response
// indicates the delta token has expired and a full sync is required.
//
// # Rate Limits
//
// Microsoft Graph allows approximately 10,000 requests per 10 minutes per
// app. This package implements conservative rate limiting to avoid hitting
// quotas, and honours Retry-After on 429 responses.
package graph
