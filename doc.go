// Package formtree converts nested value trees to and from the flat key/value
// pairs carried by HTML form submissions, and merges validation error trees.
//
// A [Value] holds objects, arrays, scalars, dates and binary blobs. [Encode]
// flattens it into ordered [Pairs] keyed by dotted paths such as
// "user.tags.[0]", and [Decode] rebuilds the tree from pairs read off a
// multipart/form-data body, a urlencoded body or a URL query. Leaves are
// JSON-encoded so that numbers, booleans and null survive the trip; blobs are
// carried as file parts and never stringified. [Value.Decode] binds a decoded
// tree into a struct using the same field tags.
//
// [Merge] combines the error tree computed locally with the one returned by a
// remote validator, honouring an allowlist of field keys built by
// [ValidKeys].
package formtree
