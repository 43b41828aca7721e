// Package inventory owns the durable record of every known video: identity,
// location, transcript linkage, and missing/processing state.
//
// The persisted document shape is an external contract (a map of records keyed
// by video ID plus a last_scan timestamp); keep the JSON field names stable.
// All mutation goes through Store.Mutate so persistence is synchronous with
// every state change, and a link to a transcript is never silently replaced;
// re-linking requires an explicit Unlink.
package inventory
