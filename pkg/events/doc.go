/*
Package events provides the in-process change feed for forkful.

Every mutation made through the backend is published as an Event naming
the table, the operation and the record. Subscribers pick what they want
with a Filter and receive matching events on a buffered channel.

# Architecture

	  backend mutation
	        │
	        ▼
	  Broker.Publish ──► event channel (buffer: 100)
	                          │
	                          ▼
	                   broadcast loop
	                          │
	        ┌─────────────────┼─────────────────┐
	        ▼                 ▼                 ▼
	  notify worker     SSE stream /events   tests
	  (tables filter)   (audience filter)

Publish blocks while the main channel is full and returns immediately once
the broker is stopped. Delivery to subscribers never blocks: a subscriber
whose buffer (50 events) is full misses the event and EventsDropped is
incremented.

# Filters

Filter.Tables restricts delivery to a set of tables. Filter.UserID
restricts delivery to events whose Audience contains that user. Empty
fields match everything.

	sub := broker.Subscribe(events.Filter{
		Tables: []events.Table{events.TableNotifications},
		UserID: user.ID,
	})
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		// ...
	}

Unsubscribe closes the channel, so a range loop over it terminates.
*/
package events
