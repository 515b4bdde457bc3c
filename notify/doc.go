// Package notify sends the welcome mail new accounts receive.
//
// [Mailer] delivers a multipart/alternative message (plain text and HTML)
// over SMTP with implicit TLS. [LogNotifier] only records the intent and is
// used when outgoing mail is disabled.
package notify
