// Package notifier delivers birthday reminders over the configured
// channels (desktop notifications via DBus, Telegram).
//
// A dispatch succeeds only if every enabled channel accepted the message;
// a failed dispatch leaves the delivery ledger unwritten, so the next
// evaluation cycle retries.
package notifier
