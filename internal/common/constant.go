// Package common contains shared constants and sentinel errors used across
// fieldsync components.
package common

// ConnectionIDColumn is the column every tenant-scoped table carries.
const ConnectionIDColumn = "connection_id"

// ContentTypeJSON is the media type of every protocol request/response body.
const ContentTypeJSON = "application/json"
