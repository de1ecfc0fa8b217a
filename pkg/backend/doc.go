/*
Package backend is the data-access facade the web layer talks to.

It combines storage, sessions, media, the change feed, the summary cache
and message sealing behind one type so HTTP handlers stay thin. Handlers
pass user input in; the backend sanitises it, checks ownership, persists
it and publishes a change event.

# Components

	┌──────────────────────── Backend ────────────────────────┐
	│                                                          │
	│  storage.Store        users, recipes, ratings, comments, │
	│                       follows, messages, notifications   │
	│  SessionManager       login tokens with expiry           │
	│  MessageSealer        AES-GCM for message bodies         │
	│  media.Store          recipe images and avatars          │
	│  cache.TTL            rating summaries per recipe        │
	│  events.Broker        change feed                        │
	│  bluemonday           strips markup from user text       │
	└──────────────────────────────────────────────────────────┘

# Errors

Operations return ErrUnauthorized, ErrForbidden, ErrInvalid or
storage.ErrNotFound wrapped with context. Callers compare with errors.Is;
the web package maps them to 401, 403, 400 and 404.

# Change events

Each successful mutation publishes one event. A rating is published as an
insert the first time and as an update afterwards. The Audience carries the
users a change concerns, which the notify worker and the SSE stream use:

	Operation        Table      Op      Audience
	───────────────  ─────────  ──────  ────────────────
	CreateRecipe     recipes    insert  (none)
	ForkRecipe       recipes    insert  original author
	RateRecipe       ratings    upsert  recipe author
	AddComment       comments   insert  recipe author
	Follow           follows    insert  followee
	SendMessage      messages   insert  recipient

Messages are sealed before they reach storage. Only SendMessage,
Conversation and Inbox ever see the plaintext.
*/
package backend
