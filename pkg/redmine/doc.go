// Package redmine provides types and helpers for working with paginated JSON
// REST resources in the Redmine style.
//
// # Overview
//
// A Resource describes one resource type: the key its payloads are wrapped
// under, its endpoint templates, and the relationship fields that are sent
// as "<name>_id". A Manager is the gateway for one Resource on top of a
// Transport; it fetches, creates, updates, deletes and queries. Every fetched
// or created item is an Entity: a bag of decoded attributes that records each
// assignment and pushes only those changes on Save.
//
// Most consumers build a client with the rmclient package and then use its
// per-resource managers:
//
//	cli, err := rmclient.NewWithKey(ctx, "https://redmine.example.com", key)
//	if err != nil { log.Fatal(err) }
//	defer cli.Close()
//
//	e, err := cli.Issues().Lookup(ctx, "42")
//	if err != nil { log.Fatal(err) }
//
//	issue := redmine.AsIssue(e)
//	_ = issue.SetSubject("Printer on fire")
//	_ = issue.SetStatus("5")
//	err = issue.Save(ctx, "escalating")
//
// # Queries and pagination
//
// Query returns a lazy Paginator. Pages are fetched only as items are
// consumed, 25 at a time unless QueryParams.Limit says otherwise:
//
//	p, err := cli.Issues().Query(ctx, redmine.NewQueryParams().WithFilter("status_id", "open"))
//	if err != nil { log.Fatal(err) }
//
//	for e, err := range p.Entities() {
//	  if err != nil { break }
//	  fmt.Println(e)
//	}
//
// Iteration ends on an empty page, when total_count shows the collection is
// exhausted, or when the response carries no total_count at all. In that
// last case only one page is read.
//
// # Custom fields
//
// custom_fields is exposed through a CustomFields overlay addressed by field
// id or name. Writes through the overlay are sent as custom_field_values on
// the next Save, together with any other pending changes.
//
// # Errors
//
// Non-success statuses surface as *ResponseError; IsNotFound, StatusCode and
// errors.Is(err, ErrNotFound) branch on them. Bodies that are not JSON
// surface as *DecodeError with the raw bytes. Operations a Resource has no
// template for fail with ErrUnsupportedOperation before any request is made.
package redmine
