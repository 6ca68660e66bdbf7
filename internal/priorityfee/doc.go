// Package priorityfee keeps a locally cached, periodically refreshed view of
// per-market priority fee levels.
//
// A SubscriberMap performs one synchronous load when Subscribe is called, then
// refreshes from a background ticker loop. Readers call GetPriorityFees at any
// time; a read never waits on network I/O.
//
// Lifecycle:
//
//	Idle --Subscribe--> Starting --initial load ok--> Polling --Close--> Closed
//	                       |
//	                       +--initial load failed--> Idle
package priorityfee
