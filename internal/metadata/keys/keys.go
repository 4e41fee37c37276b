// Package keys centralizes metadata key construction so every component
// agrees on the layout of the /tessera/v1 keyspace.
package keys

import "net/url"

// Key prefixes. Segment and file keys contain slashes, so they are
// path-escaped before being embedded in a metadata key.
const (
	// PendingDeletePrefix holds segments whose deletion is deferred
	// because a reader still holds them.
	PendingDeletePrefix = "/tessera/v1/compact/pending/"

	// RemovingPrefix holds transient markers for segments mid-delete,
	// used for crash recovery.
	RemovingPrefix = "/tessera/v1/compact/removing/"

	// FileListPrefix holds the durable index of merged files.
	FileListPrefix = "/tessera/v1/filelist/"

	// StreamPrefix holds stream schemas, settings and deletion flags.
	StreamPrefix = "/tessera/v1/streams/"

	// ReadLockPrefix holds reader leases taken by in-flight queries.
	ReadLockPrefix = "/tessera/v1/locks/read/"
)

// PendingDelete returns the key for a segment's pending-delete record.
func PendingDelete(segmentKey string) string {
	return PendingDeletePrefix + url.PathEscape(segmentKey)
}

// Removing returns the key for a segment's removing marker.
func Removing(segmentKey string) string {
	return RemovingPrefix + url.PathEscape(segmentKey)
}

// FileList returns the key for a merged file's index record.
func FileList(fileKey string) string {
	return FileListPrefix + url.PathEscape(fileKey)
}

// StreamSchema returns the key holding a stream's latest schema and settings.
func StreamSchema(org, streamType, stream string) string {
	return StreamPrefix + org + "/" + streamType + "/" + stream + "/schema"
}

// StreamDeleting returns the key flagging a stream as being deleted.
func StreamDeleting(org, streamType, stream string) string {
	return StreamPrefix + org + "/" + streamType + "/" + stream + "/deleting"
}

// ReadLock returns the key for a reader lease on a segment.
func ReadLock(segmentKey string) string {
	return ReadLockPrefix + url.PathEscape(segmentKey)
}

// Unescape reverses the path escaping applied to a segment or file key
// embedded under one of the escaped prefixes.
func Unescape(escaped string) (string, error) {
	return url.PathUnescape(escaped)
}
