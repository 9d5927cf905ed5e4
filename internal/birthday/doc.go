// Package birthday holds the domain model and the pure date logic:
// tracked people, per-person notification preferences, the recurring-date
// calculator, and the targeting query used by the reminder scheduler.
//
// Nothing in this package does I/O.
package birthday
