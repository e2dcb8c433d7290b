package httpapi

// Package httpapi exposes the user CRUD surface over HTTP/JSON: routing,
// request validation, and the mapping from storage sentinels to status codes.
