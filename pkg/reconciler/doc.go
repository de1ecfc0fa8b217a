// Package reconciler runs periodic housekeeping: it expires idle sessions
// and refreshes the gauges that are cheaper to recompute than to track.
package reconciler
