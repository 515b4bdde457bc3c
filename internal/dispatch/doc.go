// Package dispatch provides the buffered single-consumer queue behind audit
// delivery and welcome mail.
//
// Producers never wait on the consumer when DropIfFull is set; dropped items are
// counted. Close drains whatever is already buffered before returning.
package dispatch
