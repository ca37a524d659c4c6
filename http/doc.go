// Package http serves the guestbook and file pages.
//
// Routes:
//
//	GET  /                 greetings of one guestbook and the sign form
//	POST /sign             add a greeting
//	GET  /upload           upload form posting to a one-time upload URL
//	POST /upload_image     upload callback, reached through the upload endpoint
//	GET  /list             the current user's files
//	GET  /images, /audio, /video
//	GET  /view, /download  stream a file's blob
//	GET  /delete           delete a record by key
//	POST /_ah/upload/{id}  signed upload endpoint
//	GET  /_ah/health       liveness
//
// The identity provider mounts its own /_ah/login, /_ah/logout and
// /_ah/callback routes.
//
// # Upload endpoint
//
// A page obtains an upload URL from the service and posts a multipart form
// to it. The endpoint checks the URL signature, consumes the upload session,
// stores every file part as a blob and then dispatches the request to the
// session's callback path inside the same router. The callback reads the
// stored blobs with UploadsFromContext. The dispatched request keeps the
// endpoint's request id and is not logged a second time.
//
// # Errors
//
// Handlers map service errors to status codes with HandleError and answer
// with the error page. Detail stays in the log.
package http
